package bot

import (
	"errors"
	"fmt"

	"github.com/qieqieplus/meeting-bot/pkg/events"
	"github.com/qieqieplus/meeting-bot/pkg/log"
	"github.com/qieqieplus/meeting-bot/pkg/zoomsdk"
	"github.com/sirupsen/logrus"
)

type eventKind int

const (
	eventAuth eventKind = iota
	eventStatus
	eventPrivilege
	eventLeaveTime
)

type event struct {
	kind    eventKind
	auth    zoomsdk.AuthResult
	status  zoomsdk.MeetingStatus
	code    int
	granted bool
	gen     uint64
}

var _ zoomsdk.EventHandler = (*Bot)(nil)

// post queues e for Run. It drops e once Run's event loop has exited.
func (b *Bot) post(e event) {
	select {
	case b.events <- e:
	case <-b.stopped:
	}
}

func (b *Bot) OnAuth(result zoomsdk.AuthResult) {
	b.post(event{kind: eventAuth, auth: result})
}

func (b *Bot) OnMeetingStatus(status zoomsdk.MeetingStatus, code int) {
	b.post(event{kind: eventStatus, status: status, code: code})
}

func (b *Bot) OnRecordingPrivilege(granted bool) {
	b.post(event{kind: eventPrivilege, granted: granted})
}

// OnAudio and OnVideo run on SDK threads and only touch the sinks.
func (b *Bot) OnAudio(data *zoomsdk.AudioData) {
	b.mu.Lock()
	sink := b.audioSink
	b.mu.Unlock()
	if sink == nil {
		return
	}
	if err := sink.Write(data); err != nil {
		b.sinkErrOnce.Do(func() { log.Errorf("failed to write raw audio: %v", err) })
	}
}

func (b *Bot) OnVideo(frame *zoomsdk.VideoFrame) {
	b.mu.Lock()
	sink := b.videoSink
	b.mu.Unlock()
	if sink == nil {
		return
	}
	if err := sink.Write(frame); err != nil {
		b.sinkErrOnce.Do(func() { log.Errorf("failed to write raw video: %v", err) })
	}
}

func (b *Bot) handle(e event) {
	switch e.kind {
	case eventAuth:
		b.handleAuth(e.auth)
	case eventStatus:
		b.handleStatus(e.status, e.code)
	case eventPrivilege:
		b.handlePrivilege(e.granted)
	case eventLeaveTime:
		b.handleLeaveTime(e.gen)
	}
}

func (b *Bot) handleAuth(result zoomsdk.AuthResult) {
	if result != zoomsdk.AuthSuccess {
		err := fmt.Errorf("%w: %s", ErrAuthFailed, result)
		log.Errorf("failed to authorize with result %s", result)
		b.setError(err)
		b.notify(events.Event{Type: events.AuthFailed, Code: int(result), Error: result.String()})
		b.finish(err)
		return
	}

	log.Info("authorized")
	b.mu.Lock()
	b.authenticated = true
	start := b.cfg.Meeting.Start
	b.mu.Unlock()
	b.notify(events.Event{Type: events.Authenticated})

	if b.persistent {
		return
	}

	var err error
	if start {
		err = b.Start()
	} else {
		err = b.Join()
	}
	if err != nil {
		b.setError(err)
		b.finish(err)
	}
}

func (b *Bot) handleStatus(status zoomsdk.MeetingStatus, code int) {
	b.mu.Lock()
	b.status = status
	cfg := b.cfg
	b.mu.Unlock()

	b.logger().WithFields(logrus.Fields{
		"status": status.String(),
		"code":   code,
	}).Info("meeting status changed")
	b.notify(events.Event{Type: events.Status, Status: status.String(), Code: code})

	switch {
	case status == zoomsdk.StatusInMeeting:
		if cfg.Recording.RawAudio || cfg.Recording.RawVideo {
			if err := b.StartRawRecording(); err != nil {
				b.setError(err)
			}
		}
	case status.Terminal():
		b.stopLeaveTimer()
		b.closeRecording()
		if b.persistent {
			return
		}
		if status == zoomsdk.StatusFailed {
			err := fmt.Errorf("%w: code %d", ErrMeetingFailed, code)
			b.setError(err)
			b.finish(err)
			return
		}
		b.finish(nil)
	}
}

func (b *Bot) handlePrivilege(granted bool) {
	if !granted {
		log.Warn("local recording privilege was denied")
		return
	}
	log.Info("local recording privilege granted")

	b.mu.Lock()
	inMeeting := b.status == zoomsdk.StatusInMeeting
	b.mu.Unlock()
	if !inMeeting {
		return
	}
	if err := b.StartRawRecording(); err != nil {
		b.setError(err)
	}
}

func (b *Bot) handleLeaveTime(gen uint64) {
	b.mu.Lock()
	stale := gen != b.leaveGen || b.cleaned
	b.mu.Unlock()
	if stale {
		return
	}

	log.Info("Leave time reached")
	if err := b.Leave(); err != nil && !errors.Is(err, zoomsdk.SDKErrWrongUsage) {
		b.setError(err)
	}
	if !b.persistent {
		b.finish(nil)
	}
}
