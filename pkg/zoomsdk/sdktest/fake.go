// Package sdktest provides an in-memory zoomsdk.SDK for tests.
package sdktest

import (
	"sync"

	"github.com/qieqieplus/meeting-bot/pkg/zoomsdk"
)

// Fake records every call and returns scripted results. Events are
// delivered synchronously by the Fire* helpers.
type Fake struct {
	mu      sync.Mutex
	handler zoomsdk.EventHandler
	calls   []string
	errs    map[string]error
	hooks   map[string]func()
	status  zoomsdk.MeetingStatus

	Participant uint32

	InitParams  zoomsdk.InitParams
	JoinParams  zoomsdk.JoinParams
	StartParams zoomsdk.StartParams
	JWT         string
	VideoUserID uint32
	VideoRes    zoomsdk.Resolution
	AutoAudio   bool
}

var _ zoomsdk.SDK = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		errs:        make(map[string]error),
		hooks:       make(map[string]func()),
		Participant: 16778240,
	}
}

// SetHook runs fn, outside the fake's lock, whenever method is called.
// It lets tests fire callbacks from inside an SDK call.
func (f *Fake) SetHook(method string, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks[method] = fn
}

// SetError makes the named method return err until cleared with nil.
func (f *Fake) SetError(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, method)
		return
	}
	f.errs[method] = err
}

// SetStatus changes what MeetingStatus returns without firing an event.
func (f *Fake) SetStatus(s zoomsdk.MeetingStatus) {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
}

// Calls returns the method names invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called reports whether method was invoked at least once.
func (f *Fake) Called(method string) bool {
	return f.CallCount(method) > 0
}

func (f *Fake) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *Fake) record(method string) error {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	err, hook := f.errs[method], f.hooks[method]
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return err
}

func (f *Fake) eventHandler() zoomsdk.EventHandler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler
}

func (f *Fake) FireAuth(result zoomsdk.AuthResult) {
	if h := f.eventHandler(); h != nil {
		h.OnAuth(result)
	}
}

// FireStatus updates the meeting status and delivers the event.
func (f *Fake) FireStatus(status zoomsdk.MeetingStatus, code int) {
	f.SetStatus(status)
	if h := f.eventHandler(); h != nil {
		h.OnMeetingStatus(status, code)
	}
}

func (f *Fake) FirePrivilege(granted bool) {
	if h := f.eventHandler(); h != nil {
		h.OnRecordingPrivilege(granted)
	}
}

func (f *Fake) FireAudio(data *zoomsdk.AudioData) {
	if h := f.eventHandler(); h != nil {
		h.OnAudio(data)
	}
}

func (f *Fake) FireVideo(frame *zoomsdk.VideoFrame) {
	if h := f.eventHandler(); h != nil {
		h.OnVideo(frame)
	}
}

func (f *Fake) Init(p zoomsdk.InitParams) error {
	f.mu.Lock()
	f.InitParams = p
	f.mu.Unlock()
	return f.record("Init")
}

func (f *Fake) CreateServices() error { return f.record("CreateServices") }

func (f *Fake) SetEventHandler(h zoomsdk.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *Fake) Auth(jwt string) error {
	f.mu.Lock()
	f.JWT = jwt
	f.mu.Unlock()
	return f.record("Auth")
}

func (f *Fake) Join(p zoomsdk.JoinParams) error {
	f.mu.Lock()
	f.JoinParams = p
	f.mu.Unlock()
	return f.record("Join")
}

func (f *Fake) Start(p zoomsdk.StartParams) error {
	f.mu.Lock()
	f.StartParams = p
	f.mu.Unlock()
	return f.record("Start")
}

func (f *Fake) Leave() error { return f.record("Leave") }

func (f *Fake) MeetingStatus() zoomsdk.MeetingStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *Fake) EnableAutoJoinAudio(enable bool) error {
	f.mu.Lock()
	f.AutoAudio = enable
	f.mu.Unlock()
	return f.record("EnableAutoJoinAudio")
}

func (f *Fake) CanStartRawRecording() error { return f.record("CanStartRawRecording") }

func (f *Fake) RequestLocalRecordingPrivilege() error {
	return f.record("RequestLocalRecordingPrivilege")
}

func (f *Fake) StartRawRecording() error { return f.record("StartRawRecording") }
func (f *Fake) StopRawRecording() error  { return f.record("StopRawRecording") }
func (f *Fake) SubscribeAudio() error    { return f.record("SubscribeAudio") }
func (f *Fake) UnsubscribeAudio() error  { return f.record("UnsubscribeAudio") }

func (f *Fake) SubscribeVideo(userID uint32, res zoomsdk.Resolution) error {
	f.mu.Lock()
	f.VideoUserID = userID
	f.VideoRes = res
	f.mu.Unlock()
	return f.record("SubscribeVideo")
}

func (f *Fake) UnsubscribeVideo() error { return f.record("UnsubscribeVideo") }

func (f *Fake) FirstParticipant() (uint32, error) {
	err := f.record("FirstParticipant")
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Participant, err
}

func (f *Fake) Cleanup() error { return f.record("Cleanup") }
