package zoomsdk

// SDK is the subset of the Meeting SDK the bot drives. Methods return nil
// or an SDKError. Native implements it over the C shim; sdktest.Fake
// implements it in memory.
type SDK interface {
	Init(params InitParams) error
	// CreateServices creates the meeting, setting and auth services and wires
	// their events to the registered handler.
	CreateServices() error
	SetEventHandler(h EventHandler)
	Auth(jwt string) error

	Join(params JoinParams) error
	Start(params StartParams) error
	Leave() error
	MeetingStatus() MeetingStatus

	EnableAutoJoinAudio(enable bool) error

	CanStartRawRecording() error
	RequestLocalRecordingPrivilege() error
	StartRawRecording() error
	StopRawRecording() error

	SubscribeAudio() error
	UnsubscribeAudio() error
	SubscribeVideo(userID uint32, res Resolution) error
	UnsubscribeVideo() error
	FirstParticipant() (uint32, error)

	Cleanup() error
}

// EventHandler receives SDK callbacks. Calls may arrive on SDK-owned
// threads; implementations must not block.
type EventHandler interface {
	OnAuth(result AuthResult)
	OnMeetingStatus(status MeetingStatus, code int)
	OnRecordingPrivilege(granted bool)
	OnAudio(data *AudioData)
	OnVideo(frame *VideoFrame)
}

// NopHandler ignores every event. Embed it to implement a subset.
type NopHandler struct{}

func (NopHandler) OnAuth(AuthResult)                  {}
func (NopHandler) OnMeetingStatus(MeetingStatus, int) {}
func (NopHandler) OnRecordingPrivilege(bool)          {}
func (NopHandler) OnAudio(*AudioData)                 {}
func (NopHandler) OnVideo(*VideoFrame)                {}
