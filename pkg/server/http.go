package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/qieqieplus/meeting-bot/pkg/bot"
	"github.com/qieqieplus/meeting-bot/pkg/log"
)

// Controller performs meeting actions for the HTTP API. *bot.Bot serves a
// single in-process bot; the supervisor runs one child process per meeting.
type Controller interface {
	StartMeeting(ctx context.Context) error
	JoinMeeting(ctx context.Context, req bot.JoinRequest) error
	// LeaveMeeting leaves the session with the given id, or every session
	// when sessionID is empty.
	LeaveMeeting(ctx context.Context, sessionID string) error
	Snapshots(ctx context.Context) []bot.Snapshot
}

// HTTPServer handles REST API requests
type HTTPServer struct {
	controller Controller
	wsServer   *WebSocketServer
	router     *ParamRouter
}

// NewHTTPServer creates a new HTTP server. wsServer may be nil when audio
// is not streamed from this process.
func NewHTTPServer(controller Controller, wsServer *WebSocketServer) *HTTPServer {
	server := &HTTPServer{
		controller: controller,
		wsServer:   wsServer,
		router:     NewParamRouter(),
	}
	server.registerRoutes()
	return server
}

// ServeHTTP implements the http.Handler interface
func (s *HTTPServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Infof("Received request: %s %s", r.Method, r.URL.Path)
	s.router.ServeHTTP(w, r)
}

// registerRoutes sets up the API routes
func (s *HTTPServer) registerRoutes() {
	s.router.Handle("/health", s.handleHealth, http.MethodGet)
	s.router.Handle("/status", s.handleStatus, http.MethodGet)
	s.router.Handle("/start", s.handleStart, http.MethodGet, http.MethodPost)
	s.router.Handle("/join", s.handleJoin, http.MethodPost)
	s.router.Handle("/leave", s.handleLeave, http.MethodGet, http.MethodPost)

	if s.wsServer != nil {
		s.router.Handle("/ws/audio/{meeting_id}", s.wsServer.HandleConnection, http.MethodGet)
	}
}

// JoinMeetingRequest is the request body for /join
type JoinMeetingRequest struct {
	MeetingNumber    string `json:"meetingNumber"`
	UserName         string `json:"userName"`
	Password         string `json:"password"`
	ZAK              string `json:"zak,omitempty"`
	JoinToken        string `json:"joinToken,omitempty"`
	LeaveTimeMinutes int    `json:"leaveTimeMinutes,omitempty"`
}

func writeText(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(msg))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

func failureCode(err error) int {
	switch {
	case errors.Is(err, bot.ErrNotAuthenticated):
		return http.StatusServiceUnavailable
	case errors.Is(err, bot.ErrUnknownSession):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *HTTPServer) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.StartMeeting(r.Context()); err != nil {
		log.Errorf("Failed to start meeting: %v", err)
		writeText(w, failureCode(err), "Failed to start meeting")
		return
	}
	writeText(w, http.StatusOK, "Meeting started successfully")
}

func (s *HTTPServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req JoinMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	err := s.controller.JoinMeeting(r.Context(), bot.JoinRequest{
		MeetingID:        req.MeetingNumber,
		DisplayName:      req.UserName,
		Password:         req.Password,
		ZAK:              req.ZAK,
		JoinToken:        req.JoinToken,
		LeaveTimeMinutes: req.LeaveTimeMinutes,
	})
	if err != nil {
		log.Errorf("Failed to join meeting %s: %v", req.MeetingNumber, err)
		writeText(w, failureCode(err), "Failed to join meeting")
		return
	}
	writeText(w, http.StatusOK, "Joined meeting successfully")
}

func (s *HTTPServer) handleLeave(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if err := s.controller.LeaveMeeting(r.Context(), sessionID); err != nil {
		log.Errorf("Failed to leave meeting: %v", err)
		writeText(w, failureCode(err), "Failed to leave meeting")
		return
	}
	writeText(w, http.StatusOK, "Left meeting successfully")
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"bots": s.controller.Snapshots(r.Context()),
	})
}

// handleHealth returns health status for load balancers and the supervisor
func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":    "ok",
		"bot_count": len(s.controller.Snapshots(r.Context())),
	}
	if s.wsServer != nil {
		resp["ws_clients"] = s.wsServer.ClientCount()
		resp["audio"] = s.wsServer.AudioStats()
	}
	writeJSON(w, resp)
}
