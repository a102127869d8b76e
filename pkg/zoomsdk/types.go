package zoomsdk

import "fmt"

// SDKError is a result code returned by the Meeting SDK (SDKError in
// zoom_sdk_def.h). SDKErrSuccess is never returned as an error value.
type SDKError int

const (
	SDKErrSuccess SDKError = iota
	SDKErrNoImpl
	SDKErrWrongUsage
	SDKErrInvalidParameter
	SDKErrModuleLoadFailed
	SDKErrMemoryFailed
	SDKErrServiceFailed
	SDKErrUninitialize
	SDKErrUnauthentication
	SDKErrNoRecordingInProcess
	SDKErrTranscoderNotFound
	SDKErrVideoNotReady
	SDKErrNoPermission
	SDKErrUnknown
	SDKErrOtherSDKInstanceRunning
	SDKErrInternalError
	SDKErrNoAudioDeviceFound
	SDKErrNoVideoDeviceFound
	SDKErrTooFrequentCall
	SDKErrFailAssignUserPrivilege
	SDKErrMeetingDontSupportFeature
)

var sdkErrorNames = map[SDKError]string{
	SDKErrSuccess:                   "success",
	SDKErrNoImpl:                    "not implemented",
	SDKErrWrongUsage:                "wrong usage",
	SDKErrInvalidParameter:          "invalid parameter",
	SDKErrModuleLoadFailed:          "module load failed",
	SDKErrMemoryFailed:              "memory failed",
	SDKErrServiceFailed:             "service failed",
	SDKErrUninitialize:              "uninitialized",
	SDKErrUnauthentication:          "unauthenticated",
	SDKErrNoRecordingInProcess:      "no recording in process",
	SDKErrTranscoderNotFound:        "transcoder not found",
	SDKErrVideoNotReady:             "video not ready",
	SDKErrNoPermission:              "no permission",
	SDKErrUnknown:                   "unknown",
	SDKErrOtherSDKInstanceRunning:   "other SDK instance running",
	SDKErrInternalError:             "internal error",
	SDKErrNoAudioDeviceFound:        "no audio device found",
	SDKErrNoVideoDeviceFound:        "no video device found",
	SDKErrTooFrequentCall:           "too frequent call",
	SDKErrFailAssignUserPrivilege:   "failed to assign user privilege",
	SDKErrMeetingDontSupportFeature: "meeting does not support feature",
}

func (e SDKError) Error() string {
	if name, ok := sdkErrorNames[e]; ok {
		return fmt.Sprintf("%s (%d)", name, int(e))
	}
	return fmt.Sprintf("unknown SDK error code: %d", int(e))
}

// Err converts a raw SDK result into a Go error; success becomes nil.
func Err(code int) error {
	if SDKError(code) == SDKErrSuccess {
		return nil
	}
	return SDKError(code)
}

// AuthResult is the outcome delivered to the auth service event.
type AuthResult int

const (
	AuthSuccess AuthResult = iota
	AuthKeyOrSecretEmpty
	AuthKeyOrSecretWrong
	AuthAccountNotSupport
	AuthAccountNotEnableSDK
	AuthUnknown
	AuthServiceBusy
	AuthNone
	AuthOvertime
	AuthNetworkIssue
	AuthClientIncompatible
	AuthJWTTokenWrong
)

func (r AuthResult) String() string {
	switch r {
	case AuthSuccess:
		return "success"
	case AuthKeyOrSecretEmpty:
		return "key or secret empty"
	case AuthKeyOrSecretWrong:
		return "key or secret wrong"
	case AuthAccountNotSupport:
		return "account not supported"
	case AuthAccountNotEnableSDK:
		return "account has not enabled the SDK"
	case AuthServiceBusy:
		return "service busy"
	case AuthNone:
		return "none"
	case AuthOvertime:
		return "timed out"
	case AuthNetworkIssue:
		return "network issue"
	case AuthClientIncompatible:
		return "client incompatible"
	case AuthJWTTokenWrong:
		return "jwt token wrong"
	default:
		return "unknown"
	}
}

// MeetingStatus represents the meeting status from Zoom SDK
type MeetingStatus int

// Status constants (from MeetingStatus in meeting_service_interface.h)
const (
	StatusIdle              MeetingStatus = 0
	StatusConnecting        MeetingStatus = 1
	StatusWaitingForHost    MeetingStatus = 2
	StatusInMeeting         MeetingStatus = 3
	StatusDisconnecting     MeetingStatus = 4
	StatusReconnecting      MeetingStatus = 5
	StatusFailed            MeetingStatus = 6
	StatusEnded             MeetingStatus = 7
	StatusUnknown           MeetingStatus = 8
	StatusLocked            MeetingStatus = 9
	StatusUnlocked          MeetingStatus = 10
	StatusInWaitingRoom     MeetingStatus = 11
	StatusWebinarPromote    MeetingStatus = 12
	StatusWebinarDepromote  MeetingStatus = 13
	StatusJoinBreakoutRoom  MeetingStatus = 14
	StatusLeaveBreakoutRoom MeetingStatus = 15
)

func (s MeetingStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusConnecting:
		return "connecting"
	case StatusWaitingForHost:
		return "waiting_for_host"
	case StatusInMeeting:
		return "in_meeting"
	case StatusDisconnecting:
		return "disconnecting"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	case StatusEnded:
		return "ended"
	case StatusLocked:
		return "locked"
	case StatusUnlocked:
		return "unlocked"
	case StatusInWaitingRoom:
		return "in_waiting_room"
	case StatusWebinarPromote:
		return "webinar_promote"
	case StatusWebinarDepromote:
		return "webinar_depromote"
	case StatusJoinBreakoutRoom:
		return "join_breakout_room"
	case StatusLeaveBreakoutRoom:
		return "leave_breakout_room"
	default:
		return "unknown"
	}
}

// Terminal reports whether the meeting is over from the bot's point of view.
func (s MeetingStatus) Terminal() bool {
	return s == StatusEnded || s == StatusFailed
}

// Resolution is the raw video subscription resolution.
type Resolution int

const (
	Resolution90P Resolution = iota
	Resolution180P
	Resolution360P
	Resolution720P
	Resolution1080P
)

// Language is the SDK UI language id.
type Language int

const (
	LanguageUnknown Language = iota
	LanguageEnglish
)

// UserType selects how a meeting is joined or started.
type UserType int

const (
	UserTypeNormal       UserType = 1 // SDK_UT_NORMALUSER
	UserTypeWithoutLogin UserType = 2 // SDK_UT_WITHOUT_LOGIN
)

// InitParams mirrors InitParam.
type InitParams struct {
	WebDomain          string
	SupportURL         string
	Language           Language
	EnableLogByDefault bool
	EnableGenerateDump bool
}

// JoinParams mirrors JoinParam4WithoutLogin.
type JoinParams struct {
	UserType          UserType
	MeetingNumber     uint64
	UserName          string
	Password          string
	UserZAK           string
	AppPrivilegeToken string
	IsVideoOff        bool
	IsAudioOff        bool
}

// StartParams mirrors StartParam4NormalUser.
type StartParams struct {
	UserType   UserType
	UserZAK    string
	IsVideoOff bool
	IsAudioOff bool
}

// AudioData is one raw audio callback. Data is owned by the receiver.
type AudioData struct {
	NodeID     uint32
	SampleRate int
	Channels   int
	Mixed      bool
	Data       []byte
}

// VideoFrame is one raw I420 video frame. Data is owned by the receiver.
type VideoFrame struct {
	NodeID uint32
	Width  int
	Height int
	Data   []byte
}
