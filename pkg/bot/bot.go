// Package bot sequences Meeting SDK calls: initialize, authenticate, join or
// start, record raw media, and leave when the configured time is up.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qieqieplus/meeting-bot/pkg/audio"
	"github.com/qieqieplus/meeting-bot/pkg/auth"
	"github.com/qieqieplus/meeting-bot/pkg/config"
	"github.com/qieqieplus/meeting-bot/pkg/events"
	"github.com/qieqieplus/meeting-bot/pkg/log"
	"github.com/qieqieplus/meeting-bot/pkg/recorder"
	"github.com/qieqieplus/meeting-bot/pkg/storage"
	"github.com/qieqieplus/meeting-bot/pkg/zoomsdk"
	"github.com/sirupsen/logrus"
)

var (
	ErrNotAuthenticated = errors.New("bot: SDK is not authenticated")
	ErrAuthFailed       = errors.New("bot: authentication failed")
	ErrMeetingFailed    = errors.New("bot: meeting failed")
	ErrUnknownSession   = errors.New("bot: unknown session")
)

const uploadTimeout = 5 * time.Minute

// Bot drives one SDK instance. SDK callbacks are queued and handled by Run,
// so SDK calls are never made from inside a callback.
type Bot struct {
	sdk       zoomsdk.SDK
	notifier  events.Notifier
	bus       *audio.Bus
	store     storage.FileStore
	afterFunc AfterFunc
	now       func() time.Time

	persistent bool
	events     chan event
	stopped    chan struct{}

	mu              sync.Mutex
	cfg             config.Config
	sessionID       string
	initialized     bool
	authenticated   bool
	status          zoomsdk.MeetingStatus
	joinedAt        time.Time
	leaveAt         time.Time
	leaveTimer      Timer
	leaveGen        uint64
	audioSink       *recorder.AudioSink
	videoSink       *recorder.VideoSink
	recording       bool
	recordingKey    string // per-meeting output name, persistent mode only
	audioSubscribed bool
	videoSubscribed bool
	uploaded        []string
	lastErr         error
	left            bool
	cleaned         bool

	done     chan struct{}
	doneOnce sync.Once
	doneErr  error

	cleanOnce sync.Once
	cleanErr  error

	sinkErrOnce sync.Once
}

// New creates a bot for cfg. cfg is copied; later changes to it are not
// observed.
func New(cfg *config.Config, sdk zoomsdk.SDK, opts ...Option) *Bot {
	b := &Bot{
		sdk:       sdk,
		notifier:  events.Nop{},
		afterFunc: realAfterFunc,
		now:       time.Now,
		events:    make(chan event, 64),
		stopped:   make(chan struct{}),
		cfg:       *cfg,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.sessionID == "" {
		b.sessionID = uuid.NewString()
	}
	return b
}

// hasError logs the outcome of action, when given, and reports whether err
// is set.
func hasError(err error, action string) bool {
	if action != "" {
		if err != nil {
			log.Errorf("failed to %s with status %v", action, err)
		} else {
			log.Info(action)
		}
	}
	return err != nil
}

func (b *Bot) logger() *logrus.Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return log.WithFields(logrus.Fields{
		"session_id": b.sessionID,
		"meeting_id": b.cfg.Meeting.MeetingID,
	})
}

func (b *Bot) config() config.Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

func (b *Bot) setError(err error) {
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()
}

func (b *Bot) notify(e events.Event) {
	b.mu.Lock()
	e.SessionID = b.sessionID
	e.MeetingID = b.cfg.Meeting.MeetingID
	b.mu.Unlock()
	e.Time = b.now().UTC()

	if err := b.notifier.Notify(context.Background(), e); err != nil {
		log.Warnf("failed to publish %s event: %v", e.Type, err)
	}
}

// Init initializes the SDK against the configured web domain and creates
// the meeting, setting and auth services.
func (b *Bot) Init() error {
	host := b.config().SDK.ZoomHost

	err := b.sdk.Init(zoomsdk.InitParams{
		WebDomain:          host,
		SupportURL:         host,
		Language:           zoomsdk.LanguageEnglish,
		EnableLogByDefault: true,
		EnableGenerateDump: true,
	})
	if hasError(err, "") {
		log.Error("InitSDK failed")
		return err
	}

	b.sdk.SetEventHandler(b)
	if err := b.sdk.CreateServices(); hasError(err, "create services") {
		return err
	}

	b.mu.Lock()
	b.initialized = true
	b.mu.Unlock()
	return nil
}

func (b *Bot) isInitialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// Auth signs a fresh JWT with the app credentials and submits it. The
// result arrives through OnAuth.
func (b *Bot) Auth() error {
	sdkCfg := b.config().SDK

	if sdkCfg.ClientID == "" {
		log.Error("Client ID cannot be blank")
		return zoomsdk.SDKErrUninitialize
	}
	if sdkCfg.ClientSecret == "" {
		log.Error("Client Secret cannot be blank")
		return zoomsdk.SDKErrUninitialize
	}
	if !b.isInitialized() {
		return zoomsdk.SDKErrUninitialize
	}

	token, err := auth.GenerateJWT(sdkCfg.ClientID, sdkCfg.ClientSecret, b.now())
	if err != nil {
		return fmt.Errorf("failed to generate JWT: %w", err)
	}
	log.Debugf("Generated JWT valid until %s", token.ExpiresAt.Format(time.RFC3339))

	return b.sdk.Auth(token.Raw)
}

// Join joins the configured meeting as a participant without login.
func (b *Bot) Join() error {
	cfg := b.config()
	m := cfg.Meeting

	if m.MeetingID == "" {
		log.Error("Meeting ID cannot be blank")
		return zoomsdk.SDKErrUninitialize
	}
	if m.Password == "" {
		log.Error("Meeting Password cannot be blank")
		return zoomsdk.SDKErrUninitialize
	}
	if m.DisplayName == "" {
		log.Error("Display Name cannot be blank")
		return zoomsdk.SDKErrUninitialize
	}
	if m.LeaveTimeMinutes <= 0 {
		log.Error("Leave time must be specified and greater than zero")
		return zoomsdk.SDKErrInvalidParameter
	}

	number, err := m.MeetingNumber()
	if err != nil {
		log.Error(err)
		return zoomsdk.SDKErrInvalidParameter
	}
	if !b.isInitialized() {
		return zoomsdk.SDKErrUninitialize
	}

	params := zoomsdk.JoinParams{
		UserType:      zoomsdk.UserTypeWithoutLogin,
		MeetingNumber: number,
		UserName:      m.DisplayName,
		Password:      m.Password,
		IsVideoOff:    false,
		IsAudioOff:    false,
	}
	if m.ZAK != "" {
		log.Info("used ZAK token")
		params.UserZAK = m.ZAK
	}
	if m.JoinToken != "" {
		log.Info("used App Privilege token")
		params.AppPrivilegeToken = m.JoinToken
	}

	if cfg.Recording.RawAudio {
		if err := b.sdk.EnableAutoJoinAudio(true); hasError(err, "") {
			log.Errorf("failed to enable auto join audio: %v", err)
			return err
		}
	}

	if err := b.sdk.Join(params); hasError(err, "join meeting") {
		b.setError(err)
		return err
	}

	b.beginMeeting(cfg.LeaveAfter())
	b.notify(events.Event{Type: events.Joined})
	return nil
}

// Start starts the configured meeting as its host.
func (b *Bot) Start() error {
	cfg := b.config()
	if !b.isInitialized() {
		return zoomsdk.SDKErrUninitialize
	}

	err := b.sdk.Start(zoomsdk.StartParams{
		UserType:   zoomsdk.UserTypeNormal,
		UserZAK:    cfg.Meeting.ZAK,
		IsVideoOff: false,
		IsAudioOff: false,
	})
	if hasError(err, "start meeting") {
		b.setError(err)
		return err
	}

	b.beginMeeting(cfg.LeaveAfter())
	b.notify(events.Event{Type: events.Started})
	return nil
}

// Leave leaves the current meeting. It returns SDKErrWrongUsage when the
// bot is not in a meeting.
func (b *Bot) Leave() error {
	if !b.isInitialized() {
		return zoomsdk.SDKErrUninitialize
	}
	b.stopLeaveTimer()

	if b.sdk.MeetingStatus() == zoomsdk.StatusIdle {
		return zoomsdk.SDKErrWrongUsage
	}

	err := b.sdk.Leave()
	if !hasError(err, "leave meeting") {
		b.mu.Lock()
		b.left = true
		b.mu.Unlock()
		log.Info("Meeting ended successfully")
		b.notify(events.Event{Type: events.Left})
	}
	return err
}

// Clean releases every SDK resource. Only the first call has any effect.
func (b *Bot) Clean() error {
	b.cleanOnce.Do(func() {
		b.mu.Lock()
		b.cleaned = true
		recording := b.recording
		b.mu.Unlock()
		b.stopLeaveTimer()

		if recording {
			_ = b.StopRawRecording()
		}
		b.closeRecording()

		b.cleanErr = b.sdk.Cleanup()
		hasError(b.cleanErr, "clean up SDK")
	})
	return b.cleanErr
}

// Run initializes and authenticates the SDK, then handles SDK events until
// ctx is cancelled or the meeting is over. It always leaves and cleans up
// before returning. Run must be called at most once.
func (b *Bot) Run(ctx context.Context) error {
	stopEvents := sync.OnceFunc(func() { close(b.stopped) })
	defer b.Clean()
	defer stopEvents()

	if err := b.Init(); hasError(err, "initialize") {
		return err
	}
	if err := b.Auth(); hasError(err, "authorize") {
		return err
	}

	err := b.loop(ctx)
	// callbacks fired while leaving or cleaning up are dropped
	stopEvents()

	if b.inMeeting() {
		if lerr := b.Leave(); lerr != nil && !errors.Is(lerr, zoomsdk.SDKErrWrongUsage) {
			log.Warnf("failed to leave meeting on exit: %v", lerr)
		}
	}
	return err
}

// inMeeting reports whether a join or start succeeded and the meeting has
// neither been left nor ended since.
func (b *Bot) inMeeting() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.joinedAt.IsZero() && !b.left && !b.status.Terminal()
}

func (b *Bot) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down meeting bot")
			return nil
		case <-b.done:
			return b.doneErr
		case e := <-b.events:
			b.handle(e)
		}
	}
}

// finish ends Run. Only the first reason is kept.
func (b *Bot) finish(err error) {
	b.doneOnce.Do(func() {
		b.doneErr = err
		close(b.done)
	})
}

// Done is closed once the bot has decided to stop.
func (b *Bot) Done() <-chan struct{} {
	return b.done
}

// beginMeeting records the join time and arms the auto-leave timer.
func (b *Bot) beginMeeting(after time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.joinedAt = b.now()
	b.lastErr = nil
	b.left = false
	b.status = zoomsdk.StatusConnecting
	if b.leaveTimer != nil {
		b.leaveTimer.Stop()
		b.leaveTimer = nil
	}
	b.leaveAt = time.Time{}
	if b.persistent {
		b.recordingKey = meetingKey(b.cfg.Meeting, b.joinedAt)
	}
	if after <= 0 || b.cleaned {
		return
	}

	log.Infof("Leave time is set to %d minutes", int(after/time.Minute))
	b.leaveGen++
	gen := b.leaveGen
	b.leaveAt = b.joinedAt.Add(after)
	b.leaveTimer = b.afterFunc(after, func() {
		b.post(event{kind: eventLeaveTime, gen: gen})
	})
}

func (b *Bot) stopLeaveTimer() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.leaveTimer != nil {
		b.leaveTimer.Stop()
		b.leaveTimer = nil
	}
	b.leaveAt = time.Time{}
	// invalidates a timer that already fired but is still queued
	b.leaveGen++
}

// meetingKey names one meeting's recordings. A persistent bot keeps its
// session ID across meetings, so each meeting gets its own directory and
// upload prefix.
func meetingKey(m config.MeetingConfig, joinedAt time.Time) string {
	id := "meeting"
	if n, err := m.MeetingNumber(); err == nil {
		id = strconv.FormatUint(n, 10)
	}
	return id + "-" + joinedAt.UTC().Format("20060102T150405Z")
}
