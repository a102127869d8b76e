package audio

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qieqieplus/meeting-bot/pkg/log"
)

// dropLogEvery rate-limits the "subscriber is full" warning per subscriber.
const dropLogEvery = 100

// Filter selects the frames a subscriber receives. Zero values match
// everything.
type Filter struct {
	MeetingID string
	Types     []AudioType
	UserIDs   []uint64
}

// Match reports whether a frame published for meetingID passes f.
func (f Filter) Match(meetingID string, frame *Frame) bool {
	if f.MeetingID != "" && f.MeetingID != meetingID {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, frame.Type) {
		return false
	}
	if len(f.UserIDs) > 0 && !slices.Contains(f.UserIDs, frame.UserID) {
		return false
	}
	return true
}

// Subscriber receives matching frames on Channel until it is closed.
type Subscriber struct {
	ID      string
	Filter  Filter
	Channel chan *Frame

	delivered  atomic.Uint64
	dropped    atomic.Uint64
	lastActive atomic.Int64 // unix nanos

	mu     sync.Mutex
	closed bool
}

// SubscriberStats counts what one subscriber was sent.
type SubscriberStats struct {
	ID         string    `json:"id"`
	Delivered  uint64    `json:"delivered"`
	Dropped    uint64    `json:"dropped"`
	LastActive time.Time `json:"last_active"`
}

// NewSubscriber creates a subscriber buffering up to bufferSize frames.
func NewSubscriber(id string, bufferSize int, filter Filter) *Subscriber {
	s := &Subscriber{
		ID:      id,
		Filter:  filter,
		Channel: make(chan *Frame, bufferSize),
	}
	s.Touch()
	return s
}

// Touch marks the subscriber active, e.g. when its consumer answers a ping.
func (s *Subscriber) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive is when the subscriber last took a frame or was touched.
func (s *Subscriber) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// send hands frame to the subscriber without blocking. It returns false
// when the subscriber is closed or its buffer is full.
func (s *Subscriber) send(frame *Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}

	select {
	case s.Channel <- frame:
		s.delivered.Add(1)
		s.Touch()
		return true
	default:
		if n := s.dropped.Add(1); n%dropLogEvery == 1 {
			log.Warnf("Dropping frames for subscriber %s (channel full, %d dropped)", s.ID, n)
		}
		return false
	}
}

// Close closes Channel. It is safe to call more than once.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.Channel)
	}
}

// Closed reports whether Close has been called.
func (s *Subscriber) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Stats returns the subscriber's counters.
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{
		ID:         s.ID,
		Delivered:  s.delivered.Load(),
		Dropped:    s.dropped.Load(),
		LastActive: s.LastActive(),
	}
}

// Bus fans audio frames out to subscribers. Publish is called from SDK
// callback threads and never blocks.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber

	published atomic.Uint64
	dropped   atomic.Uint64
	lastFrame atomic.Int64 // unix nanos
}

// BusStats is a snapshot of the bus counters.
type BusStats struct {
	Published     uint64            `json:"published"`
	Dropped       uint64            `json:"dropped"`
	LastFrameTime time.Time         `json:"last_frame_time"`
	Subscribers   []SubscriberStats `json:"subscribers"`
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe adds s, closing any subscriber already registered under its ID.
func (b *Bus) Subscribe(s *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if old, ok := b.subscribers[s.ID]; ok && old != s {
		old.Close()
	}
	b.subscribers[s.ID] = s

	log.Infof("Added subscriber: %s (total: %d)", s.ID, len(b.subscribers))
}

// Unsubscribe closes and removes the subscriber with the given ID.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s, ok := b.subscribers[id]; ok {
		s.Close()
		delete(b.subscribers, id)
		log.Infof("Removed subscriber: %s (total: %d)", id, len(b.subscribers))
	}
}

// Publish offers frame to every subscriber whose filter matches. It
// returns false only when at least one subscriber matched and none could
// take the frame.
func (b *Bus) Publish(meetingID string, frame *Frame) bool {
	b.published.Add(1)
	b.lastFrame.Store(time.Now().UnixNano())

	b.mu.RLock()
	defer b.mu.RUnlock()

	matched, sent := 0, 0
	for _, s := range b.subscribers {
		if !s.Filter.Match(meetingID, frame) || s.Closed() {
			continue
		}
		matched++
		if s.send(frame) {
			sent++
		} else {
			b.dropped.Add(1)
		}
	}
	return matched == 0 || sent > 0
}

// Stats returns the bus counters and per-subscriber stats ordered by ID.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	subs := make([]SubscriberStats, 0, len(b.subscribers))
	for _, s := range b.subscribers {
		subs = append(subs, s.Stats())
	}
	b.mu.RUnlock()

	slices.SortFunc(subs, func(a, c SubscriberStats) int {
		switch {
		case a.ID < c.ID:
			return -1
		case a.ID > c.ID:
			return 1
		}
		return 0
	})

	stats := BusStats{
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
		Subscribers: subs,
	}
	if ns := b.lastFrame.Load(); ns != 0 {
		stats.LastFrameTime = time.Unix(0, ns)
	}
	return stats
}

// SubscriberCount returns the number of registered subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// CleanupInactive removes subscribers that are closed or have not taken a
// frame within timeout, and returns how many were removed.
func (b *Bus) CleanupInactive(timeout time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := time.Now().Add(-timeout)
	removed := 0
	for id, s := range b.subscribers {
		if s.Closed() || s.LastActive().Before(cutoff) {
			s.Close()
			delete(b.subscribers, id)
			removed++
			log.Infof("Cleaned up inactive subscriber: %s", id)
		}
	}
	return removed
}

// Shutdown closes and removes every subscriber.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	log.Info("Shutting down audio bus")
	for _, s := range b.subscribers {
		s.Close()
	}
	clear(b.subscribers)
}
