package zoomsdk

import (
	"runtime"
	"sync"

	"github.com/qieqieplus/meeting-bot/pkg/log"
)

// OSThread runs functions on a single goroutine locked to one OS thread.
// The SDK keeps thread-affine state, so every call is funneled through it.
type OSThread struct {
	done     chan struct{}
	commands chan func()
	once     sync.Once
}

// NewOSThread creates a new OS thread
func NewOSThread() *OSThread {
	return &OSThread{
		done:     make(chan struct{}),
		commands: make(chan func()),
	}
}

// Start starts the OS thread and locks it
func (t *OSThread) Start() {
	go func() {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		log.Debug("OS thread started and locked")

		for {
			select {
			case cmd := <-t.commands:
				cmd()
			case <-t.done:
				log.Debug("OS thread stopping")
				return
			}
		}
	}()
}

// Execute runs fn on the OS thread and waits for it to return. It returns
// false without running fn once the thread has been stopped.
func (t *OSThread) Execute(fn func()) bool {
	finished := make(chan struct{})
	select {
	case t.commands <- func() {
		defer close(finished)
		fn()
	}:
	case <-t.done:
		return false
	}
	// the thread took the command, so it runs to completion
	<-finished
	return true
}

// Stop stops the OS thread
func (t *OSThread) Stop() {
	t.once.Do(func() { close(t.done) })
}
