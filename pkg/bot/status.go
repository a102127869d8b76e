package bot

import (
	"context"
	"time"

	"github.com/qieqieplus/meeting-bot/pkg/config"
	"github.com/qieqieplus/meeting-bot/pkg/zoomsdk"
)

// Snapshot is a point-in-time view of a bot, served by the HTTP API.
type Snapshot struct {
	SessionID      string     `json:"session_id"`
	MeetingID      string     `json:"meeting_id,omitempty"`
	Status         string     `json:"status"`
	Authenticated  bool       `json:"authenticated"`
	JoinedAt       *time.Time `json:"joined_at,omitempty"`
	LeaveAt        *time.Time `json:"leave_at,omitempty"`
	RecordingAudio bool       `json:"recording_audio"`
	RecordingVideo bool       `json:"recording_video"`
	Uploaded       []string   `json:"uploaded,omitempty"`
	LastError      string     `json:"last_error,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (b *Bot) Status() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		SessionID:      b.sessionID,
		MeetingID:      b.cfg.Meeting.MeetingID,
		Status:         b.status.String(),
		Authenticated:  b.authenticated,
		JoinedAt:       timePtr(b.joinedAt),
		LeaveAt:        timePtr(b.leaveAt),
		RecordingAudio: b.recording && b.audioSink != nil,
		RecordingVideo: b.recording && b.videoSink != nil,
		Uploaded:       append([]string(nil), b.uploaded...),
	}
	if b.lastErr != nil {
		s.LastError = b.lastErr.Error()
	}
	return s
}

// JoinRequest overrides the configured meeting for one join. Empty fields
// keep the configured value.
type JoinRequest struct {
	MeetingID        string
	DisplayName      string
	Password         string
	ZAK              string
	JoinToken        string
	LeaveTimeMinutes int
}

// Apply copies the non-empty fields of r onto m.
func (r JoinRequest) Apply(m *config.MeetingConfig) {
	if r.MeetingID != "" {
		m.MeetingID = r.MeetingID
	}
	if r.DisplayName != "" {
		m.DisplayName = r.DisplayName
	}
	if r.Password != "" {
		m.Password = r.Password
	}
	if r.ZAK != "" {
		m.ZAK = r.ZAK
	}
	if r.JoinToken != "" {
		m.JoinToken = r.JoinToken
	}
	if r.LeaveTimeMinutes > 0 {
		m.LeaveTimeMinutes = r.LeaveTimeMinutes
	}
}

func (b *Bot) requireAuth() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.authenticated {
		return ErrNotAuthenticated
	}
	return nil
}

// StartMeeting starts the configured meeting on request of the HTTP API.
func (b *Bot) StartMeeting(context.Context) error {
	if err := b.requireAuth(); err != nil {
		return err
	}
	b.mu.Lock()
	b.cfg.Meeting.Start = true
	b.mu.Unlock()
	return b.Start()
}

// JoinMeeting joins the meeting described by req on request of the HTTP API.
func (b *Bot) JoinMeeting(_ context.Context, req JoinRequest) error {
	if err := b.requireAuth(); err != nil {
		return err
	}
	b.mu.Lock()
	req.Apply(&b.cfg.Meeting)
	b.cfg.Meeting.Start = false
	b.mu.Unlock()
	return b.Join()
}

// LeaveMeeting leaves on request of the HTTP API. sessionID may be empty.
func (b *Bot) LeaveMeeting(_ context.Context, sessionID string) error {
	b.mu.Lock()
	own := sessionID == "" || sessionID == b.sessionID
	b.mu.Unlock()
	if !own {
		return ErrUnknownSession
	}
	return b.Leave()
}

// Snapshots reports this bot as the only one in the process.
func (b *Bot) Snapshots(context.Context) []Snapshot {
	return []Snapshot{b.Status()}
}

// MeetingStatus returns the last status reported by the SDK.
func (b *Bot) MeetingStatus() zoomsdk.MeetingStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}
