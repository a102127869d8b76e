package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/qieqieplus/meeting-bot/pkg/log"
)

const (
	defaultQueueSize = 200
	deliveryTimeout  = 30 * time.Second
)

var ErrClosed = errors.New("events: notifier closed")

// Async queues events and delivers them from one goroutine, so Notify
// never blocks. Events are dropped when the queue is full.
type Async struct {
	next    Notifier
	queue   chan Event
	done    chan struct{}
	dropped atomic.Int32

	mu     sync.RWMutex
	closed bool
}

func NewAsync(next Notifier, size int) *Async {
	if size <= 0 {
		size = defaultQueueSize
	}
	a := &Async{
		next:  next,
		queue: make(chan Event, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for e := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		if err := a.next.Notify(ctx, e); err != nil {
			log.Errorf("failed to deliver %s event for session %s: %v", e.Type, e.SessionID, err)
		}
		cancel()
	}
}

func (a *Async) Notify(_ context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}

	select {
	case a.queue <- e:
	default:
		l := a.dropped.Add(1)
		log.Warnf("Total dropped events: %d", l)
	}
	return nil
}

// Dropped returns how many events were discarded because the queue was full.
func (a *Async) Dropped() int {
	return int(a.dropped.Load())
}

// Close delivers what is already queued, then closes the wrapped notifier.
func (a *Async) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	return a.next.Close()
}
