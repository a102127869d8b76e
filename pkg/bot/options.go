package bot

import (
	"time"

	"github.com/qieqieplus/meeting-bot/pkg/audio"
	"github.com/qieqieplus/meeting-bot/pkg/events"
	"github.com/qieqieplus/meeting-bot/pkg/storage"
)

// Timer is the part of *time.Timer the bot needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type Option func(*Bot)

// WithNotifier delivers lifecycle events. Notify is called from the bot's
// event loop, so it should not block; wrap slow notifiers in events.Async.
func WithNotifier(n events.Notifier) Option {
	return func(b *Bot) { b.notifier = n }
}

// WithAudioBus publishes raw audio frames when transcription is enabled.
func WithAudioBus(bus *audio.Bus) Option {
	return func(b *Bot) { b.bus = bus }
}

// WithStore uploads recordings after each meeting.
func WithStore(s storage.FileStore) Option {
	return func(b *Bot) { b.store = s }
}

func WithAfterFunc(f AfterFunc) Option {
	return func(b *Bot) { b.afterFunc = f }
}

func WithClock(now func() time.Time) Option {
	return func(b *Bot) { b.now = now }
}

func WithSessionID(id string) Option {
	return func(b *Bot) { b.sessionID = id }
}

// WithPersistent keeps Run going after a meeting ends so further meetings
// can be started through the HTTP API. Authentication does not trigger a
// join or start by itself in this mode.
func WithPersistent() Option {
	return func(b *Bot) { b.persistent = true }
}
