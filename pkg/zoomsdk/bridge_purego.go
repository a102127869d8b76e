//go:build (linux || darwin) && !zoomsdk_cgo

package zoomsdk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/qieqieplus/meeting-bot/pkg/log"
)

// puregoShim calls libzoombot_sdk through function pointers resolved at
// runtime, so the binary builds without cgo or the vendor headers.
type puregoShim struct {
	handle uintptr

	fnSetCallbacks      func(onAuth, onStatus, onPrivilege, onAudio, onVideo uintptr) int32
	fnInit              func(webDomain, supportURL string, language, enableLog, enableDump int32) int32
	fnCreateServices    func() int32
	fnAuth              func(jwt string) int32
	fnCleanup           func() int32
	fnRunLoop           func()
	fnStopLoop          func()
	fnJoin              func(userType int32, number uint64, userName, password, zak, token string, videoOff, audioOff int32) int32
	fnStart             func(userType int32, zak string, videoOff, audioOff int32) int32
	fnLeave             func() int32
	fnGetStatus         func() int32
	fnAutoJoinAudio     func(enable int32) int32
	fnCanStartRaw       func() int32
	fnRequestPrivilege  func() int32
	fnStartRaw          func() int32
	fnStopRaw           func() int32
	fnAudioSubscribe    func() int32
	fnAudioUnsubscribe  func() int32
	fnVideoSubscribe    func(userID uint32, resolution int32) int32
	fnVideoUnsubscribe  func() int32
	fnParticipantsFirst func(userID *uint32) int32
}

// Callback trampolines are created once per process; purego caps how many
// may exist.
var (
	callbacksOnce     sync.Once
	authCallback      uintptr
	statusCallback    uintptr
	privilegeCallback uintptr
	audioCallback     uintptr
	videoCallback     uintptr
)

func makeCallbacks() {
	callbacksOnce.Do(func() {
		authCallback = purego.NewCallback(func(result uintptr) {
			dispatchAuth(int(int32(result)))
		})
		statusCallback = purego.NewCallback(func(status, code uintptr) {
			dispatchStatus(int(int32(status)), int(int32(code)))
		})
		privilegeCallback = purego.NewCallback(func(granted uintptr) {
			dispatchPrivilege(int32(granted) != 0)
		})
		audioCallback = purego.NewCallback(onAudioTrampoline)
		videoCallback = purego.NewCallback(onVideoTrampoline)
	})
}

func onAudioTrampoline(data, length, nodeID, sampleRate, channels, mixed uintptr) {
	n := int(int32(length))
	if data == 0 || n <= 0 {
		return
	}
	dispatchAudio(&AudioData{
		NodeID:     uint32(nodeID),
		SampleRate: int(int32(sampleRate)),
		Channels:   int(int32(channels)),
		Mixed:      int32(mixed) != 0,
		Data:       copyNative(data, n),
	})
}

func onVideoTrampoline(data, length, width, height, nodeID uintptr) {
	n := int(int32(length))
	if data == 0 || n <= 0 {
		return
	}
	dispatchVideo(&VideoFrame{
		NodeID: uint32(nodeID),
		Width:  int(int32(width)),
		Height: int(int32(height)),
		Data:   copyNative(data, n),
	})
}

// copyNative copies n bytes owned by the SDK; the pointer is only valid for
// the duration of the callback.
func copyNative(ptr uintptr, n int) []byte {
	src := unsafe.Slice((*byte)(unsafe.Pointer(ptr)), n)
	out := make([]byte, n)
	copy(out, src)
	return out
}

func openShim(libPath string) (shim, error) {
	var lastErr error
	for _, path := range shimLibPaths(libPath) {
		handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err != nil {
			lastErr = err
			continue
		}

		s := &puregoShim{handle: handle}
		if err := s.loadSymbols(); err != nil {
			purego.Dlclose(handle)
			lastErr = err
			continue
		}
		log.Infof("Loaded SDK shim: %s", path)
		return s, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("failed to load %s: %w", shimLibName(), lastErr)
	}
	return nil, errors.New(shimLibName() + " not found in any standard location")
}

func shimLibName() string {
	if runtime.GOOS == "darwin" {
		return "libzoombot_sdk.dylib"
	}
	return "libzoombot_sdk.so"
}

func shimLibPaths(explicit string) []string {
	libName := shimLibName()
	var paths []string

	if explicit != "" {
		paths = append(paths, explicit)
	}
	if envPath := os.Getenv("ZOOM_SDK_LIB_PATH"); envPath != "" && envPath != explicit {
		paths = append(paths, envPath)
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, libName),
			filepath.Join(exeDir, "lib", libName),
			filepath.Join(exeDir, "..", "lib", libName),
		)
	}

	if wd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(wd, "lib", libName),
			filepath.Join(wd, "build", libName),
		)
	}

	// The vendor SDK is conventionally unpacked under /lib/zoomsdk.
	paths = append(paths,
		filepath.Join("/lib/zoomsdk", libName),
		filepath.Join("/usr/local/lib", libName),
		libName,
	)
	return paths
}

func (s *puregoShim) loadSymbols() error {
	symbols := []struct {
		name string
		fptr any
	}{
		{"zoom_sdk_set_callbacks", &s.fnSetCallbacks},
		{"zoom_sdk_init", &s.fnInit},
		{"zoom_sdk_create_services", &s.fnCreateServices},
		{"zoom_sdk_auth", &s.fnAuth},
		{"zoom_sdk_cleanup", &s.fnCleanup},
		{"zoom_sdk_run_loop", &s.fnRunLoop},
		{"zoom_sdk_stop_loop", &s.fnStopLoop},
		{"zoom_meeting_join", &s.fnJoin},
		{"zoom_meeting_start", &s.fnStart},
		{"zoom_meeting_leave", &s.fnLeave},
		{"zoom_meeting_get_status", &s.fnGetStatus},
		{"zoom_setting_enable_auto_join_audio", &s.fnAutoJoinAudio},
		{"zoom_recording_can_start_raw", &s.fnCanStartRaw},
		{"zoom_recording_request_local_privilege", &s.fnRequestPrivilege},
		{"zoom_recording_start_raw", &s.fnStartRaw},
		{"zoom_recording_stop_raw", &s.fnStopRaw},
		{"zoom_audio_subscribe", &s.fnAudioSubscribe},
		{"zoom_audio_unsubscribe", &s.fnAudioUnsubscribe},
		{"zoom_video_subscribe", &s.fnVideoSubscribe},
		{"zoom_video_unsubscribe", &s.fnVideoUnsubscribe},
		{"zoom_participants_first", &s.fnParticipantsFirst},
	}

	for _, sym := range symbols {
		ptr, err := purego.Dlsym(s.handle, sym.name)
		if err != nil {
			return fmt.Errorf("missing symbol %s: %w", sym.name, err)
		}
		purego.RegisterFunc(sym.fptr, ptr)
	}
	return nil
}

func cBool(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func (s *puregoShim) setCallbacks() int {
	makeCallbacks()
	return int(s.fnSetCallbacks(authCallback, statusCallback, privilegeCallback, audioCallback, videoCallback))
}

func (s *puregoShim) init(webDomain, supportURL string, language int, enableLog, enableDump bool) int {
	return int(s.fnInit(webDomain, supportURL, int32(language), cBool(enableLog), cBool(enableDump)))
}

func (s *puregoShim) createServices() int { return int(s.fnCreateServices()) }
func (s *puregoShim) auth(jwt string) int { return int(s.fnAuth(jwt)) }
func (s *puregoShim) cleanup() int        { return int(s.fnCleanup()) }
func (s *puregoShim) runLoop()            { s.fnRunLoop() }
func (s *puregoShim) stopLoop()           { s.fnStopLoop() }

func (s *puregoShim) join(p JoinParams) int {
	return int(s.fnJoin(int32(p.UserType), p.MeetingNumber, p.UserName, p.Password,
		p.UserZAK, p.AppPrivilegeToken, cBool(p.IsVideoOff), cBool(p.IsAudioOff)))
}

func (s *puregoShim) start(p StartParams) int {
	return int(s.fnStart(int32(p.UserType), p.UserZAK, cBool(p.IsVideoOff), cBool(p.IsAudioOff)))
}

func (s *puregoShim) leave() int         { return int(s.fnLeave()) }
func (s *puregoShim) meetingStatus() int { return int(s.fnGetStatus()) }

func (s *puregoShim) enableAutoJoinAudio(enable bool) int {
	return int(s.fnAutoJoinAudio(cBool(enable)))
}

func (s *puregoShim) canStartRawRecording() int           { return int(s.fnCanStartRaw()) }
func (s *puregoShim) requestLocalRecordingPrivilege() int { return int(s.fnRequestPrivilege()) }
func (s *puregoShim) startRawRecording() int              { return int(s.fnStartRaw()) }
func (s *puregoShim) stopRawRecording() int               { return int(s.fnStopRaw()) }
func (s *puregoShim) subscribeAudio() int                 { return int(s.fnAudioSubscribe()) }
func (s *puregoShim) unsubscribeAudio() int               { return int(s.fnAudioUnsubscribe()) }
func (s *puregoShim) unsubscribeVideo() int               { return int(s.fnVideoUnsubscribe()) }

func (s *puregoShim) subscribeVideo(userID uint32, res int) int {
	return int(s.fnVideoSubscribe(userID, int32(res)))
}

func (s *puregoShim) firstParticipant() (uint32, int) {
	var id uint32
	code := s.fnParticipantsFirst(&id)
	return id, int(code)
}
