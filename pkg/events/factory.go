package events

import (
	"github.com/qieqieplus/meeting-bot/pkg/config"
)

// New builds the notifiers enabled in cfg behind one Async queue. It
// returns Nop when nothing is configured.
func New(cfg config.EventsConfig) (Notifier, error) {
	var notifiers Multi

	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, NewWebhook(cfg.WebhookURL, cfg.WebhookRetry))
	}

	if len(cfg.NatsURLs) > 0 {
		n, err := NewNATS(cfg.NatsURLs, cfg.NatsUser, cfg.NatsPassword, cfg.NatsSubject)
		if err != nil {
			notifiers.Close()
			return nil, err
		}
		notifiers = append(notifiers, n)
	}

	if len(notifiers) == 0 {
		return Nop{}, nil
	}
	return NewAsync(notifiers, defaultQueueSize), nil
}
