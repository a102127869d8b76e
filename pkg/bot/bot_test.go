package bot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/qieqieplus/meeting-bot/pkg/auth"
	"github.com/qieqieplus/meeting-bot/pkg/config"
	"github.com/qieqieplus/meeting-bot/pkg/events"
	"github.com/qieqieplus/meeting-bot/pkg/storage"
	"github.com/qieqieplus/meeting-bot/pkg/zoomsdk"
	"github.com/qieqieplus/meeting-bot/pkg/zoomsdk/sdktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu      sync.Mutex
	after   time.Duration
	fn      func()
	armed   int
	stopped int
}

type fakeTimer struct{ c *fakeClock }

func (t fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	t.c.stopped++
	return true
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.after = d
	c.fn = f
	c.armed++
	return fakeTimer{c}
}

func (c *fakeClock) fire() {
	c.mu.Lock()
	f := c.fn
	c.mu.Unlock()
	f()
}

type eventLog struct {
	mu     sync.Mutex
	events []events.Event
}

func (l *eventLog) Notify(_ context.Context, e events.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
	return nil
}

func (l *eventLog) Close() error { return nil }

func (l *eventLog) types() []events.Type {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []events.Type
	for _, e := range l.events {
		out = append(out, e.Type)
	}
	return out
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.SDK.ClientID = "client-id"
	cfg.SDK.ClientSecret = "client-secret"
	cfg.Meeting.MeetingID = "881 0446 5816"
	cfg.Meeting.Password = "secret"
	cfg.Meeting.DisplayName = "Recorder"
	cfg.Meeting.LeaveTimeMinutes = 30
	cfg.Recording.AudioDir = t.TempDir()
	cfg.Recording.VideoDir = cfg.Recording.AudioDir
	return cfg
}

type harness struct {
	bot    *Bot
	sdk    *sdktest.Fake
	clock  *fakeClock
	events *eventLog
}

func newHarness(t *testing.T, cfg *config.Config, opts ...Option) *harness {
	h := &harness{sdk: sdktest.New(), clock: &fakeClock{}, events: &eventLog{}}
	opts = append([]Option{
		WithAfterFunc(h.clock.AfterFunc),
		WithClock(func() time.Time { return testNow }),
		WithNotifier(h.events),
		WithSessionID("session-1"),
	}, opts...)
	h.bot = New(cfg, h.sdk, opts...)
	return h
}

func (h *harness) init(t *testing.T) {
	t.Helper()
	require.NoError(t, h.bot.Init())
}

func TestInit(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.init(t)

	assert.Equal(t, zoomsdk.InitParams{
		WebDomain:          config.DefaultZoomHost,
		SupportURL:         config.DefaultZoomHost,
		Language:           zoomsdk.LanguageEnglish,
		EnableLogByDefault: true,
		EnableGenerateDump: true,
	}, h.sdk.InitParams)
	assert.Equal(t, []string{"Init", "CreateServices"}, h.sdk.Calls())
}

func TestInitFailure(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.sdk.SetError("Init", zoomsdk.SDKErrModuleLoadFailed)

	err := h.bot.Init()
	assert.ErrorIs(t, err, zoomsdk.SDKErrModuleLoadFailed)
	assert.False(t, h.sdk.Called("CreateServices"))
	assert.ErrorIs(t, h.bot.Leave(), zoomsdk.SDKErrUninitialize)
}

func TestAuth(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.init(t)
	require.NoError(t, h.bot.Auth())

	claims, err := auth.ParseJWT(h.sdk.JWT, "client-secret", testNow)
	require.NoError(t, err)
	assert.Equal(t, "client-id", claims.AppKey)
}

func TestAuthRequiresCredentials(t *testing.T) {
	for _, mutate := range []func(*config.Config){
		func(c *config.Config) { c.SDK.ClientID = "" },
		func(c *config.Config) { c.SDK.ClientSecret = "" },
	} {
		cfg := testConfig(t)
		mutate(cfg)
		h := newHarness(t, cfg)
		h.init(t)

		assert.ErrorIs(t, h.bot.Auth(), zoomsdk.SDKErrUninitialize)
		assert.False(t, h.sdk.Called("Auth"))
	}
}

func TestJoinValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.MeetingConfig)
		want   zoomsdk.SDKError
	}{
		{"blank meeting id", func(m *config.MeetingConfig) { m.MeetingID = "" }, zoomsdk.SDKErrUninitialize},
		{"blank password", func(m *config.MeetingConfig) { m.Password = "" }, zoomsdk.SDKErrUninitialize},
		{"blank display name", func(m *config.MeetingConfig) { m.DisplayName = "" }, zoomsdk.SDKErrUninitialize},
		{"zero leave time", func(m *config.MeetingConfig) { m.LeaveTimeMinutes = 0 }, zoomsdk.SDKErrInvalidParameter},
		{"non numeric id", func(m *config.MeetingConfig) { m.MeetingID = "abc" }, zoomsdk.SDKErrInvalidParameter},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := testConfig(t)
			test.mutate(&cfg.Meeting)
			h := newHarness(t, cfg)
			h.init(t)

			assert.ErrorIs(t, h.bot.Join(), test.want)
			assert.False(t, h.sdk.Called("Join"))
			assert.Zero(t, h.clock.armed)
		})
	}
}

func TestJoin(t *testing.T) {
	cfg := testConfig(t)
	cfg.Meeting.ZAK = "zak-token"
	cfg.Meeting.JoinToken = "app-token"
	cfg.Recording.RawAudio = true
	h := newHarness(t, cfg)
	h.init(t)

	require.NoError(t, h.bot.Join())

	assert.Equal(t, zoomsdk.JoinParams{
		UserType:          zoomsdk.UserTypeWithoutLogin,
		MeetingNumber:     88104465816,
		UserName:          "Recorder",
		Password:          "secret",
		UserZAK:           "zak-token",
		AppPrivilegeToken: "app-token",
	}, h.sdk.JoinParams)
	assert.Equal(t, []string{"Init", "CreateServices", "EnableAutoJoinAudio", "Join"}, h.sdk.Calls())
	assert.True(t, h.sdk.AutoAudio)

	assert.Equal(t, 1, h.clock.armed)
	assert.Equal(t, 30*time.Minute, h.clock.after)
	assert.Equal(t, []events.Type{events.Joined}, h.events.types())

	snap := h.bot.Status()
	require.NotNil(t, snap.LeaveAt)
	assert.Equal(t, testNow.Add(30*time.Minute), *snap.LeaveAt)
}

func TestJoinAutoAudioFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.RawAudio = true
	h := newHarness(t, cfg)
	h.init(t)
	h.sdk.SetError("EnableAutoJoinAudio", zoomsdk.SDKErrInternalError)

	assert.ErrorIs(t, h.bot.Join(), zoomsdk.SDKErrInternalError)
	assert.False(t, h.sdk.Called("Join"))
}

func TestJoinFailureDoesNotArmTimer(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.init(t)
	h.sdk.SetError("Join", zoomsdk.SDKErrNoPermission)

	assert.ErrorIs(t, h.bot.Join(), zoomsdk.SDKErrNoPermission)
	assert.Zero(t, h.clock.armed)
	assert.Contains(t, h.bot.Status().LastError, "no permission")
}

func TestStart(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.init(t)

	require.NoError(t, h.bot.Start())
	assert.Equal(t, zoomsdk.StartParams{UserType: zoomsdk.UserTypeNormal}, h.sdk.StartParams)
	assert.Equal(t, 1, h.clock.armed)
	assert.Equal(t, []events.Type{events.Started}, h.events.types())
}

func TestLeave(t *testing.T) {
	h := newHarness(t, testConfig(t))
	assert.ErrorIs(t, h.bot.Leave(), zoomsdk.SDKErrUninitialize)

	h.init(t)
	assert.ErrorIs(t, h.bot.Leave(), zoomsdk.SDKErrWrongUsage)
	assert.False(t, h.sdk.Called("Leave"))

	require.NoError(t, h.bot.Join())
	h.sdk.SetStatus(zoomsdk.StatusInMeeting)
	require.NoError(t, h.bot.Leave())
	assert.Equal(t, 1, h.sdk.CallCount("Leave"))
	assert.Equal(t, 1, h.clock.stopped)
	assert.Contains(t, h.events.types(), events.Left)
}

func TestStaleLeaveTimerIsIgnored(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.init(t)
	require.NoError(t, h.bot.Join())
	h.sdk.SetStatus(zoomsdk.StatusInMeeting)
	require.NoError(t, h.bot.Leave())

	// the timer fired concurrently with Leave and its event is still queued
	h.clock.fire()
	h.bot.handle(<-h.bot.events)

	assert.Equal(t, 1, h.sdk.CallCount("Leave"))
	select {
	case <-h.bot.Done():
		t.Fatal("stale timer should not finish the bot")
	default:
	}
}

func TestStartRawRecordingRequestsPrivilege(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.RawAudio = true
	h := newHarness(t, cfg)
	h.init(t)
	h.sdk.SetError("CanStartRawRecording", zoomsdk.SDKErrNoPermission)

	require.NoError(t, h.bot.StartRawRecording())
	assert.True(t, h.sdk.Called("RequestLocalRecordingPrivilege"))
	assert.False(t, h.sdk.Called("StartRawRecording"))
	assert.Equal(t, []events.Type{events.RecordingPrivilegeRequested}, h.events.types())

	// granted while in the meeting: recording starts
	h.sdk.SetError("CanStartRawRecording", nil)
	h.bot.handleStatus(zoomsdk.StatusInMeeting, 0)
	h.bot.handlePrivilege(true)
	assert.True(t, h.sdk.Called("StartRawRecording"))
}

func TestStartRawRecording(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.RawAudio = true
	cfg.Recording.RawVideo = true
	h := newHarness(t, cfg)
	h.init(t)
	h.sdk.Participant = 4242

	require.NoError(t, h.bot.StartRawRecording())
	assert.Equal(t, []string{
		"Init", "CreateServices",
		"CanStartRawRecording", "StartRawRecording",
		"FirstParticipant", "SubscribeVideo", "SubscribeAudio",
	}, h.sdk.Calls())
	assert.Equal(t, uint32(4242), h.sdk.VideoUserID)
	assert.Equal(t, zoomsdk.Resolution720P, h.sdk.VideoRes)

	snap := h.bot.Status()
	assert.True(t, snap.RecordingAudio)
	assert.True(t, snap.RecordingVideo)

	h.sdk.FireAudio(&zoomsdk.AudioData{Mixed: true, Data: []byte{1, 2, 3, 4}})
	h.sdk.FireVideo(&zoomsdk.VideoFrame{Width: 2, Height: 2, Data: make([]byte, 6)})

	data, err := os.ReadFile(filepath.Join(cfg.Recording.AudioDir, cfg.Recording.AudioFile))
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4}, data)

	require.NoError(t, h.bot.Clean())
	assert.True(t, h.sdk.Called("UnsubscribeAudio"))
	assert.True(t, h.sdk.Called("UnsubscribeVideo"))
}

func TestStartRawRecordingSubscribeFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.RawVideo = true
	h := newHarness(t, cfg)
	h.init(t)
	h.sdk.SetError("SubscribeVideo", zoomsdk.SDKErrVideoNotReady)

	assert.ErrorIs(t, h.bot.StartRawRecording(), zoomsdk.SDKErrVideoNotReady)
	assert.False(t, h.bot.Status().RecordingVideo)
}

func TestMeetingEndUploadsRecordings(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.RawAudio = true
	cfg.Recording.SeparateParticipantAudio = true

	root := t.TempDir()
	store, err := storage.NewLocal(root)
	require.NoError(t, err)

	h := newHarness(t, cfg, WithStore(store))
	h.init(t)
	require.NoError(t, h.bot.Join())

	h.bot.handleStatus(zoomsdk.StatusInMeeting, 0)
	h.sdk.FireAudio(&zoomsdk.AudioData{NodeID: 7, Data: []byte{9, 9}})
	h.bot.handleStatus(zoomsdk.StatusEnded, 0)

	data, err := os.ReadFile(filepath.Join(root, "session-1", "meeting-audio-7.pcm"))
	require.NoError(t, err)
	assert.Equal(t, []byte{9, 9}, data)

	snap := h.bot.Status()
	assert.Equal(t, []string{"session-1/meeting-audio-7.pcm"}, snap.Uploaded)
	assert.False(t, snap.RecordingAudio)
	assert.Contains(t, h.events.types(), events.Uploaded)

	<-h.bot.Done()
	assert.NoError(t, h.bot.doneErr)
}

func TestMeetingFailedFinishesWithError(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.init(t)
	h.bot.handleStatus(zoomsdk.StatusFailed, 12)

	<-h.bot.Done()
	assert.ErrorIs(t, h.bot.doneErr, ErrMeetingFailed)
}

func TestCleanIsIdempotent(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.init(t)
	require.NoError(t, h.bot.Join())

	require.NoError(t, h.bot.Clean())
	require.NoError(t, h.bot.Clean())
	assert.Equal(t, 1, h.sdk.CallCount("Cleanup"))

	// auto-leave never fires after Clean
	h.clock.fire()
	h.bot.handle(<-h.bot.events)
	assert.False(t, h.sdk.Called("Leave"))
}

func runBot(t *testing.T, h *harness) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.bot.Run(ctx) }()

	require.Eventually(t, func() bool { return h.sdk.Called("Auth") }, time.Second, time.Millisecond)
	return cancel, errc
}

func waitErr(t *testing.T, errc <-chan error) error {
	t.Helper()
	select {
	case err := <-errc:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestRunJoinsAndLeavesOnTime(t *testing.T) {
	h := newHarness(t, testConfig(t))
	cancel, errc := runBot(t, h)
	defer cancel()

	h.sdk.FireAuth(zoomsdk.AuthSuccess)
	require.Eventually(t, func() bool { return h.sdk.Called("Join") }, time.Second, time.Millisecond)

	h.sdk.FireStatus(zoomsdk.StatusInMeeting, 0)
	require.Eventually(t, func() bool { return h.bot.MeetingStatus() == zoomsdk.StatusInMeeting }, time.Second, time.Millisecond)

	h.clock.fire()
	require.NoError(t, waitErr(t, errc))

	assert.Equal(t, 1, h.sdk.CallCount("Leave"))
	assert.Equal(t, 1, h.sdk.CallCount("Cleanup"))
	assert.Equal(t, []events.Type{
		events.Authenticated, events.Joined, events.Status, events.Left,
	}, h.events.types())
}

func TestRunStartsWhenConfigured(t *testing.T) {
	cfg := testConfig(t)
	cfg.Meeting.Start = true
	h := newHarness(t, cfg)
	cancel, errc := runBot(t, h)

	h.sdk.FireAuth(zoomsdk.AuthSuccess)
	require.Eventually(t, func() bool { return h.sdk.Called("Start") }, time.Second, time.Millisecond)
	assert.False(t, h.sdk.Called("Join"))

	h.sdk.SetStatus(zoomsdk.StatusInMeeting)
	cancel()
	require.NoError(t, waitErr(t, errc))
	assert.Equal(t, 1, h.sdk.CallCount("Leave"))
}

func TestRunAuthFailure(t *testing.T) {
	h := newHarness(t, testConfig(t))
	cancel, errc := runBot(t, h)
	defer cancel()

	h.sdk.FireAuth(zoomsdk.AuthJWTTokenWrong)
	err := waitErr(t, errc)

	assert.ErrorIs(t, err, ErrAuthFailed)
	assert.False(t, h.sdk.Called("Join"))
	assert.False(t, h.sdk.Called("Leave"))
	assert.Equal(t, 1, h.sdk.CallCount("Cleanup"))
	assert.Equal(t, []events.Type{events.AuthFailed}, h.events.types())
}

func TestRunInitFailure(t *testing.T) {
	h := newHarness(t, testConfig(t))
	h.sdk.SetError("Init", zoomsdk.SDKErrModuleLoadFailed)

	err := h.bot.Run(context.Background())
	assert.True(t, errors.Is(err, zoomsdk.SDKErrModuleLoadFailed))
	assert.Equal(t, 1, h.sdk.CallCount("Cleanup"))
}

func TestPersistentJoinMeeting(t *testing.T) {
	cfg := testConfig(t)
	cfg.Meeting = config.MeetingConfig{DisplayName: "Bot", LeaveTimeMinutes: 10}
	h := newHarness(t, cfg, WithPersistent())
	cancel, errc := runBot(t, h)

	assert.ErrorIs(t, h.bot.JoinMeeting(context.Background(), JoinRequest{MeetingID: "123"}), ErrNotAuthenticated)

	h.sdk.FireAuth(zoomsdk.AuthSuccess)
	require.Eventually(t, func() bool { return h.bot.Status().Authenticated }, time.Second, time.Millisecond)
	assert.False(t, h.sdk.Called("Join"), "persistent bots wait for a request")

	require.NoError(t, h.bot.JoinMeeting(context.Background(), JoinRequest{MeetingID: "123456789", Password: "pw"}))
	assert.Equal(t, uint64(123456789), h.sdk.JoinParams.MeetingNumber)
	assert.Equal(t, "Bot", h.sdk.JoinParams.UserName)

	h.sdk.FireStatus(zoomsdk.StatusEnded, 0)
	require.Eventually(t, func() bool { return h.bot.MeetingStatus() == zoomsdk.StatusEnded }, time.Second, time.Millisecond)
	select {
	case <-h.bot.Done():
		t.Fatal("persistent bot should keep running after a meeting ends")
	default:
	}

	assert.ErrorIs(t, h.bot.LeaveMeeting(context.Background(), "other"), ErrUnknownSession)

	cancel()
	require.NoError(t, waitErr(t, errc))
}

func TestMeetingEndUnsubscribesHelpers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.RawAudio = true
	cfg.Recording.RawVideo = true
	h := newHarness(t, cfg)
	h.init(t)
	require.NoError(t, h.bot.Join())

	h.bot.handleStatus(zoomsdk.StatusInMeeting, 0)
	require.True(t, h.bot.Status().RecordingAudio)

	h.bot.handleStatus(zoomsdk.StatusEnded, 0)
	require.NoError(t, h.bot.Clean())

	assert.Equal(t, 1, h.sdk.CallCount("UnsubscribeAudio"))
	assert.Equal(t, 1, h.sdk.CallCount("UnsubscribeVideo"))
	assert.Equal(t, 1, h.sdk.CallCount("Cleanup"))
}

func TestCleanUnsubscribesAfterPartialStart(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.RawAudio = true
	cfg.Recording.RawVideo = true
	h := newHarness(t, cfg)
	h.init(t)
	h.sdk.SetError("SubscribeAudio", zoomsdk.SDKErrNoAudioDeviceFound)

	require.Error(t, h.bot.StartRawRecording())
	require.NoError(t, h.bot.Clean())

	assert.True(t, h.sdk.Called("UnsubscribeVideo"), "video was subscribed before audio failed")
	assert.False(t, h.sdk.Called("UnsubscribeAudio"))
	assert.False(t, h.sdk.Called("StopRawRecording"), "recording never completed")
}

func TestStopRawRecording(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.RawAudio = true
	h := newHarness(t, cfg)
	h.init(t)

	require.NoError(t, h.bot.StartRawRecording())
	require.NoError(t, h.bot.StopRawRecording())
	assert.False(t, h.bot.Status().RecordingAudio)

	require.NoError(t, h.bot.Clean())
	assert.Equal(t, 1, h.sdk.CallCount("StopRawRecording"))
	assert.Equal(t, 1, h.sdk.CallCount("UnsubscribeAudio"))
}

func TestCleanStopsActiveRecording(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.RawAudio = true
	h := newHarness(t, cfg)
	h.init(t)

	require.NoError(t, h.bot.StartRawRecording())
	require.NoError(t, h.bot.Clean())

	calls := h.sdk.Calls()
	assert.Equal(t, []string{"StopRawRecording", "UnsubscribeAudio", "Cleanup"}, calls[len(calls)-3:])
}

func TestPersistentRecordsMeetingsSeparately(t *testing.T) {
	cfg := testConfig(t)
	cfg.Recording.RawAudio = true

	root := t.TempDir()
	store, err := storage.NewLocal(root)
	require.NoError(t, err)

	now := testNow
	h := newHarness(t, cfg, WithPersistent(), WithStore(store), WithClock(func() time.Time { return now }))
	h.init(t)
	h.bot.handleAuth(zoomsdk.AuthSuccess)

	record := func(meetingID string, pcm byte) {
		require.NoError(t, h.bot.JoinMeeting(context.Background(), JoinRequest{MeetingID: meetingID, Password: "pw"}))
		h.bot.handleStatus(zoomsdk.StatusInMeeting, 0)
		h.sdk.FireAudio(&zoomsdk.AudioData{Mixed: true, Data: []byte{pcm}})
		h.bot.handleStatus(zoomsdk.StatusEnded, 0)
	}
	record("111111111", 1)
	now = now.Add(time.Hour)
	record("222222222", 2)

	first := "session-1/111111111-20260301T120000Z/meeting-audio.pcm"
	second := "session-1/222222222-20260301T130000Z/meeting-audio.pcm"
	assert.Equal(t, []string{first, second}, h.bot.Status().Uploaded)

	for key, want := range map[string][]byte{first: {1}, second: {2}} {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(key)))
		require.NoError(t, err)
		assert.Equal(t, want, data, key)
	}

	local, err := os.ReadFile(filepath.Join(cfg.Recording.AudioDir, "111111111-20260301T120000Z", "meeting-audio.pcm"))
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, local, "the first meeting's file is left alone")
}

func TestRunDoesNotBlockOnLateCallbacks(t *testing.T) {
	h := newHarness(t, testConfig(t))
	cancel, errc := runBot(t, h)

	h.sdk.FireAuth(zoomsdk.AuthSuccess)
	require.Eventually(t, func() bool { return h.sdk.Called("Join") }, time.Second, time.Millisecond)
	h.sdk.FireStatus(zoomsdk.StatusInMeeting, 0)
	require.Eventually(t, func() bool { return h.bot.MeetingStatus() == zoomsdk.StatusInMeeting }, time.Second, time.Millisecond)

	// more callbacks than the queue holds, fired from inside SDK calls
	flood := func() {
		for range 2 * cap(h.bot.events) {
			h.sdk.FireStatus(zoomsdk.StatusDisconnecting, 0)
		}
	}
	h.sdk.SetHook("Leave", flood)
	h.sdk.SetHook("Cleanup", flood)

	cancel()
	require.NoError(t, waitErr(t, errc))
	assert.Equal(t, 1, h.sdk.CallCount("Leave"))
	assert.Equal(t, 1, h.sdk.CallCount("Cleanup"))
}
