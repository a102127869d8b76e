//go:build zoomsdk_cgo && cgo

package zoomsdk

/*
#cgo CFLAGS: -I${SRCDIR}/include
#cgo LDFLAGS: -lzoombot_sdk
#include <stdlib.h>
#include "zoom_sdk_c.h"

// Forward declarations for Go callbacks
extern void goOnAuth(int result);
extern void goOnMeetingStatus(int status, int code);
extern void goOnRecordingPrivilege(int granted);
extern void goOnAudioData(void* data, int length, unsigned int node_id, int sample_rate, int channels, int mixed);
extern void goOnVideoFrame(void* data, int length, int width, int height, unsigned int node_id);

static void cAudioCallback(const void* data, int length, unsigned int node_id, int sample_rate, int channels, int mixed) {
    goOnAudioData((void*)data, length, node_id, sample_rate, channels, mixed);
}

static void cVideoCallback(const void* data, int length, int width, int height, unsigned int node_id) {
    goOnVideoFrame((void*)data, length, width, height, node_id);
}

static int registerCallbacks() {
    return zoom_sdk_set_callbacks(goOnAuth, goOnMeetingStatus, goOnRecordingPrivilege, cAudioCallback, cVideoCallback);
}
*/
import "C"
import (
	"unsafe"

	"github.com/qieqieplus/meeting-bot/pkg/log"
)

// cgoShim links libzoombot_sdk at build time.
type cgoShim struct{}

func openShim(libPath string) (shim, error) {
	if libPath != "" {
		log.Debugf("Ignoring SDK library path %s: shim is linked at build time", libPath)
	}
	return cgoShim{}, nil
}

// cString copies s to C memory. Optional parameters are passed as "",
// never NULL, matching the purego bridge.
func cString(s string) *C.char {
	return C.CString(s)
}

func freeString(p *C.char) {
	C.free(unsafe.Pointer(p))
}

func cBool(b bool) C.int {
	if b {
		return 1
	}
	return 0
}

func (cgoShim) setCallbacks() int {
	return int(C.registerCallbacks())
}

func (cgoShim) init(webDomain, supportURL string, language int, enableLog, enableDump bool) int {
	cDomain := cString(webDomain)
	defer freeString(cDomain)
	cSupport := cString(supportURL)
	defer freeString(cSupport)

	return int(C.zoom_sdk_init(cDomain, cSupport, C.int(language), cBool(enableLog), cBool(enableDump)))
}

func (cgoShim) createServices() int { return int(C.zoom_sdk_create_services()) }

func (cgoShim) auth(jwt string) int {
	cJWT := cString(jwt)
	defer freeString(cJWT)
	return int(C.zoom_sdk_auth(cJWT))
}

func (cgoShim) cleanup() int { return int(C.zoom_sdk_cleanup()) }

// runLoop runs the main SDK event loop (blocking)
func (cgoShim) runLoop() { C.zoom_sdk_run_loop() }

// stopLoop requests the SDK event loop to stop
func (cgoShim) stopLoop() { C.zoom_sdk_stop_loop() }

func (cgoShim) join(p JoinParams) int {
	cName := cString(p.UserName)
	defer freeString(cName)
	cPassword := cString(p.Password)
	defer freeString(cPassword)
	cZAK := cString(p.UserZAK)
	defer freeString(cZAK)
	cToken := cString(p.AppPrivilegeToken)
	defer freeString(cToken)

	return int(C.zoom_meeting_join(C.int(p.UserType), C.ulonglong(p.MeetingNumber),
		cName, cPassword, cZAK, cToken, cBool(p.IsVideoOff), cBool(p.IsAudioOff)))
}

func (cgoShim) start(p StartParams) int {
	cZAK := cString(p.UserZAK)
	defer freeString(cZAK)
	return int(C.zoom_meeting_start(C.int(p.UserType), cZAK, cBool(p.IsVideoOff), cBool(p.IsAudioOff)))
}

func (cgoShim) leave() int         { return int(C.zoom_meeting_leave()) }
func (cgoShim) meetingStatus() int { return int(C.zoom_meeting_get_status()) }

func (cgoShim) enableAutoJoinAudio(enable bool) int {
	return int(C.zoom_setting_enable_auto_join_audio(cBool(enable)))
}

func (cgoShim) canStartRawRecording() int           { return int(C.zoom_recording_can_start_raw()) }
func (cgoShim) requestLocalRecordingPrivilege() int { return int(C.zoom_recording_request_local_privilege()) }
func (cgoShim) startRawRecording() int              { return int(C.zoom_recording_start_raw()) }
func (cgoShim) stopRawRecording() int               { return int(C.zoom_recording_stop_raw()) }
func (cgoShim) subscribeAudio() int                 { return int(C.zoom_audio_subscribe()) }
func (cgoShim) unsubscribeAudio() int               { return int(C.zoom_audio_unsubscribe()) }
func (cgoShim) unsubscribeVideo() int               { return int(C.zoom_video_unsubscribe()) }

func (cgoShim) subscribeVideo(userID uint32, res int) int {
	return int(C.zoom_video_subscribe(C.uint(userID), C.int(res)))
}

func (cgoShim) firstParticipant() (uint32, int) {
	var id C.uint
	code := C.zoom_participants_first(&id)
	return uint32(id), int(code)
}

//export goOnAuth
func goOnAuth(result C.int) {
	dispatchAuth(int(result))
}

//export goOnMeetingStatus
func goOnMeetingStatus(status C.int, code C.int) {
	dispatchStatus(int(status), int(code))
}

//export goOnRecordingPrivilege
func goOnRecordingPrivilege(granted C.int) {
	dispatchPrivilege(granted != 0)
}

//export goOnAudioData
func goOnAudioData(data unsafe.Pointer, length C.int, nodeID C.uint, sampleRate C.int, channels C.int, mixed C.int) {
	if data == nil || length <= 0 {
		return
	}
	dispatchAudio(&AudioData{
		NodeID:     uint32(nodeID),
		SampleRate: int(sampleRate),
		Channels:   int(channels),
		Mixed:      mixed != 0,
		Data:       C.GoBytes(data, length),
	})
}

//export goOnVideoFrame
func goOnVideoFrame(data unsafe.Pointer, length C.int, width C.int, height C.int, nodeID C.uint) {
	if data == nil || length <= 0 {
		return
	}
	dispatchVideo(&VideoFrame{
		NodeID: uint32(nodeID),
		Width:  int(width),
		Height: int(height),
		Data:   C.GoBytes(data, length),
	})
}
