package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/qieqieplus/meeting-bot/pkg/audio"
	"github.com/qieqieplus/meeting-bot/pkg/config"
	"github.com/qieqieplus/meeting-bot/pkg/log"
	"github.com/sirupsen/logrus"
)

// WebSocketServer streams audio published on the bus to WebSocket clients.
// Each client gets a JSON audio_format message, then binary frames with PCM
// aggregated per speaker and audio type every AudioFlushInterval. The first
// audio_format carries the configured format; another one precedes any
// frame whose sample rate or channel count differs from the last one sent.
type WebSocketServer struct {
	upgrader websocket.Upgrader
	bus      *audio.Bus
	cfg      config.WebSocketConfig
	format   formatInfo

	mu      sync.RWMutex
	clients map[string]*wsClient
}

type formatInfo struct {
	sampleRate int
	channels   int
}

// NewWebSocketServer creates a server fanning out frames from bus.
func NewWebSocketServer(bus *audio.Bus, cfg *config.Config) *WebSocketServer {
	return &WebSocketServer{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		bus:     bus,
		cfg:     cfg.WebSocket,
		format:  formatInfo{sampleRate: cfg.AudioSampleRate, channels: cfg.AudioChannels},
		clients: make(map[string]*wsClient),
	}
}

// ClientCount returns the number of connected clients.
func (s *WebSocketServer) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// AudioStats reports the bus counters behind the connected clients.
func (s *WebSocketServer) AudioStats() audio.BusStats {
	return s.bus.Stats()
}

// CleanupLoop drops bus subscribers whose clients stopped answering pings,
// until ctx is done.
func (s *WebSocketServer) CleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReadTimeout)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.bus.CleanupInactive(s.cfg.ReadTimeout); n > 0 {
				log.Infof("Cleaned up %d inactive audio subscribers", n)
			}
		}
	}
}

// HandleConnection serves /ws/audio/{meeting_id}. Query parameters narrow
// the stream, see ParseConnectionConfig.
func (s *WebSocketServer) HandleConnection(w http.ResponseWriter, r *http.Request) {
	meetingID := GetPathParam(r, "meeting_id")
	if meetingID == "" {
		http.Error(w, "missing meeting_id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("Failed to upgrade WebSocket connection: %v", err)
		return
	}

	cc := ParseConnectionConfig(meetingID, r.URL.Query())
	c := &wsClient{
		id:   uuid.NewString(),
		conn: conn,
		cfg:  s.cfg,
		stop: make(chan struct{}),
	}
	c.sub = audio.NewSubscriber(c.id, cc.QueueSize, cc.Filter)
	c.log = log.WithFields(logrus.Fields{
		"client_id":  c.id,
		"remote":     conn.RemoteAddr().String(),
		"meeting_id": meetingID,
	})

	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.bus.Subscribe(c.sub)
	c.log.Info("WebSocket client connected")

	c.run(s.format)

	s.bus.Unsubscribe(c.id)
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	c.log.Info("WebSocket client disconnected")
}

// wsClient is one connection. After the format message only writeLoop
// writes to conn.
type wsClient struct {
	id   string
	conn *websocket.Conn
	cfg  config.WebSocketConfig
	sub  *audio.Subscriber
	log  *logrus.Entry

	format formatInfo // last advertised

	stop     chan struct{}
	stopOnce sync.Once
}

func (c *wsClient) close() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.conn.Close()
	})
}

func (c *wsClient) run(format formatInfo) {
	defer c.close()

	if !c.sendFormat(format) {
		return
	}

	go c.readLoop()
	c.writeLoop()
}

func (c *wsClient) sendFormat(format formatInfo) bool {
	msg, err := CreateAudioFormatMessage(c.sub.Filter.MeetingID, format.sampleRate, format.channels)
	if err != nil {
		c.log.Errorf("Failed to encode audio format message: %v", err)
		return false
	}
	if !c.write(websocket.TextMessage, msg) {
		return false
	}
	c.format = format
	return true
}

// readLoop discards client messages and keeps the subscriber alive while
// pongs arrive.
func (c *wsClient) readLoop() {
	defer c.close()

	c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.sub.Touch()
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Errorf("WebSocket read error: %v", err)
			}
			return
		}
		c.sub.Touch()
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}

func (c *wsClient) writeLoop() {
	flush := time.NewTicker(c.cfg.AudioFlushInterval)
	defer flush.Stop()
	ping := time.NewTicker(c.cfg.PingInterval)
	defer ping.Stop()

	var agg aggregator
	for {
		select {
		case <-c.stop:
			return

		case frame, ok := <-c.sub.Channel:
			if !ok {
				// unsubscribed or replaced; send what is buffered and hang up
				agg.flush(c.writeFrame)
				c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if f := (formatInfo{sampleRate: frame.SampleRate, channels: frame.Channels}); f.sampleRate > 0 && f.channels > 0 && f != c.format {
				// buffered PCM belongs to the previous format
				if !agg.flush(c.writeFrame) || !c.sendFormat(f) {
					return
				}
			}
			agg.add(frame)

		case <-flush.C:
			if !agg.flush(c.writeFrame) {
				return
			}

		case now := <-ping.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
			// browsers never surface pings, so a heartbeat follows
			if hb, err := CreateHeartbeatMessage(now); err == nil && !c.write(websocket.TextMessage, hb) {
				return
			}
		}
	}
}

func (c *wsClient) write(messageType int, data []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.log.Errorf("Error writing to WebSocket: %v", err)
		return false
	}
	return true
}

func (c *wsClient) writeFrame(f *audio.Frame) bool {
	buf := audio.GetBuffer(f.EncodedSize())
	defer audio.PutBuffer(buf)
	n := f.EncodeTo(buf)
	return c.write(websocket.BinaryMessage, buf[:n])
}

type streamKey struct {
	userID uint64
	typ    audio.AudioType
}

// aggregator concatenates PCM per speaker and audio type between flushes,
// keeping first-seen order.
type aggregator struct {
	order   []streamKey
	pending map[streamKey][]byte
}

func (a *aggregator) add(f *audio.Frame) {
	if a.pending == nil {
		a.pending = make(map[streamKey][]byte)
	}
	k := streamKey{userID: f.UserID, typ: f.Type}
	buf, seen := a.pending[k]
	if !seen {
		a.order = append(a.order, k)
	}
	a.pending[k] = append(buf, f.Data...)
}

// flush emits one frame per stream with pending data. It stops at the
// first emit failure and returns false.
func (a *aggregator) flush(emit func(*audio.Frame) bool) bool {
	for _, k := range a.order {
		data := a.pending[k]
		if len(data) == 0 {
			continue
		}
		if !emit(&audio.Frame{UserID: k.userID, Type: k.typ, Data: data}) {
			return false
		}
		a.pending[k] = data[:0]
	}
	return true
}
