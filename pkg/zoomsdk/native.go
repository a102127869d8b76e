package zoomsdk

import (
	"errors"
	"fmt"
	"sync"

	"github.com/qieqieplus/meeting-bot/pkg/log"
)

// shim is the C ABI declared in include/zoom_sdk_c.h. It is implemented
// by bridge_purego.go (default) and bridge_cgo.go (zoomsdk_cgo tag).
type shim interface {
	setCallbacks() int
	init(webDomain, supportURL string, language int, enableLog, enableDump bool) int
	createServices() int
	auth(jwt string) int
	cleanup() int
	runLoop()
	stopLoop()

	join(p JoinParams) int
	start(p StartParams) int
	leave() int
	meetingStatus() int

	enableAutoJoinAudio(enable bool) int

	canStartRawRecording() int
	requestLocalRecordingPrivilege() int
	startRawRecording() int
	stopRawRecording() int

	subscribeAudio() int
	unsubscribeAudio() int
	subscribeVideo(userID uint32, res int) int
	unsubscribeVideo() int
	firstParticipant() (uint32, int)
}

// ErrSDKInUse is returned when a second Native is opened in one process.
var ErrSDKInUse = errors.New("zoomsdk: the SDK is already open in this process")

// The SDK is a process-wide singleton, so callbacks from native threads are
// routed to the one open Native.
var (
	activeMutex  sync.RWMutex
	activeNative *Native
)

func registerNative(n *Native) error {
	activeMutex.Lock()
	defer activeMutex.Unlock()
	if activeNative != nil {
		return ErrSDKInUse
	}
	activeNative = n
	return nil
}

func unregisterNative(n *Native) {
	activeMutex.Lock()
	defer activeMutex.Unlock()
	if activeNative == n {
		activeNative = nil
	}
}

func currentHandler() EventHandler {
	activeMutex.RLock()
	n := activeNative
	activeMutex.RUnlock()
	if n == nil {
		return nil
	}
	return n.eventHandler()
}

func dispatchAuth(result int) {
	if h := currentHandler(); h != nil {
		h.OnAuth(AuthResult(result))
	}
}

func dispatchStatus(status, code int) {
	if h := currentHandler(); h != nil {
		h.OnMeetingStatus(MeetingStatus(status), code)
	}
}

func dispatchPrivilege(granted bool) {
	if h := currentHandler(); h != nil {
		h.OnRecordingPrivilege(granted)
	}
}

func dispatchAudio(data *AudioData) {
	if h := currentHandler(); h != nil {
		h.OnAudio(data)
		return
	}
	log.Warnf("Received audio data for node %d with no handler", data.NodeID)
}

func dispatchVideo(frame *VideoFrame) {
	if h := currentHandler(); h != nil {
		h.OnVideo(frame)
	}
}

// Native drives the real SDK through the C shim.
type Native struct {
	lib    shim
	thread *OSThread

	handlerMutex sync.RWMutex
	handler      EventHandler

	loopOnce sync.Once
	loopDone chan struct{}
	closed   bool
}

// OpenNative loads the shim library and prepares the calling thread.
// libPath may be empty to search the default locations.
func OpenNative(libPath string) (*Native, error) {
	lib, err := openShim(libPath)
	if err != nil {
		return nil, err
	}

	n := &Native{
		lib:      lib,
		thread:   NewOSThread(),
		loopDone: make(chan struct{}),
	}
	if err := registerNative(n); err != nil {
		return nil, err
	}
	n.thread.Start()

	if err := n.call(func() int { return n.lib.setCallbacks() }); err != nil {
		n.thread.Stop()
		unregisterNative(n)
		return nil, fmt.Errorf("failed to register SDK callbacks: %w", err)
	}

	log.Debug("Opened native SDK shim")
	return n, nil
}

var _ SDK = (*Native)(nil)

func (n *Native) eventHandler() EventHandler {
	n.handlerMutex.RLock()
	defer n.handlerMutex.RUnlock()
	return n.handler
}

// call runs fn on the SDK thread and converts its result.
func (n *Native) call(fn func() int) error {
	code := int(SDKErrUninitialize)
	n.thread.Execute(func() {
		code = fn()
	})
	return Err(code)
}

func (n *Native) SetEventHandler(h EventHandler) {
	n.handlerMutex.Lock()
	defer n.handlerMutex.Unlock()
	n.handler = h
}

func (n *Native) Init(p InitParams) error {
	err := n.call(func() int {
		return n.lib.init(p.WebDomain, p.SupportURL, int(p.Language), p.EnableLogByDefault, p.EnableGenerateDump)
	})
	if err != nil {
		return err
	}

	// Callbacks are delivered from the shim's main loop.
	n.loopOnce.Do(func() {
		loop := NewOSThread()
		loop.Start()
		go func() {
			defer close(n.loopDone)
			defer loop.Stop()
			log.Debug("Starting SDK event loop")
			loop.Execute(n.lib.runLoop)
			log.Debug("SDK event loop stopped")
		}()
	})
	return nil
}

func (n *Native) CreateServices() error {
	return n.call(n.lib.createServices)
}

func (n *Native) Auth(jwt string) error {
	return n.call(func() int { return n.lib.auth(jwt) })
}

func (n *Native) Join(p JoinParams) error {
	return n.call(func() int { return n.lib.join(p) })
}

func (n *Native) Start(p StartParams) error {
	return n.call(func() int { return n.lib.start(p) })
}

func (n *Native) Leave() error {
	return n.call(n.lib.leave)
}

func (n *Native) MeetingStatus() MeetingStatus {
	status := StatusIdle
	n.thread.Execute(func() {
		status = MeetingStatus(n.lib.meetingStatus())
	})
	return status
}

func (n *Native) EnableAutoJoinAudio(enable bool) error {
	return n.call(func() int { return n.lib.enableAutoJoinAudio(enable) })
}

func (n *Native) CanStartRawRecording() error {
	return n.call(n.lib.canStartRawRecording)
}

func (n *Native) RequestLocalRecordingPrivilege() error {
	return n.call(n.lib.requestLocalRecordingPrivilege)
}

func (n *Native) StartRawRecording() error {
	return n.call(n.lib.startRawRecording)
}

func (n *Native) StopRawRecording() error {
	return n.call(n.lib.stopRawRecording)
}

func (n *Native) SubscribeAudio() error {
	return n.call(n.lib.subscribeAudio)
}

func (n *Native) UnsubscribeAudio() error {
	return n.call(n.lib.unsubscribeAudio)
}

func (n *Native) SubscribeVideo(userID uint32, res Resolution) error {
	return n.call(func() int { return n.lib.subscribeVideo(userID, int(res)) })
}

func (n *Native) UnsubscribeVideo() error {
	return n.call(n.lib.unsubscribeVideo)
}

func (n *Native) FirstParticipant() (uint32, error) {
	var id uint32
	err := n.call(func() int {
		var code int
		id, code = n.lib.firstParticipant()
		return code
	})
	return id, err
}

// Cleanup destroys the services, stops the event loop and releases the
// SDK thread. The Native cannot be used afterwards.
func (n *Native) Cleanup() error {
	if n.closed {
		return nil
	}
	n.closed = true

	err := n.call(n.lib.cleanup)

	started := false
	n.loopOnce.Do(func() { close(n.loopDone) })
	select {
	case <-n.loopDone:
	default:
		started = true
	}
	if started {
		log.Debug("Requesting SDK event loop to stop")
		n.lib.stopLoop()
		<-n.loopDone
	}

	n.thread.Stop()
	unregisterNative(n)
	return err
}
