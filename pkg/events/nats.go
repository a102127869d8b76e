package events

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/qieqieplus/meeting-bot/pkg/log"
	"github.com/sirupsen/logrus"
)

// NATS publishes events on "<subject>.<event type>".
type NATS struct {
	conn    *nats.Conn
	subject string
}

func NewNATS(urls []string, user, password, subject string) (*NATS, error) {
	opts := []nats.Option{nats.Name("meeting-bot")}
	if user != "" {
		opts = append(opts, nats.UserInfo(user, password))
	}

	nc, err := nats.Connect(strings.Join(urls, ","), opts...)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"version": nc.ConnectedServerVersion(),
		"address": nc.ConnectedAddr(),
	}).Info("successfully connected to NATS server")

	return &NATS{conn: nc, subject: subject}, nil
}

func subjectFor(prefix string, t Type) string {
	if prefix == "" {
		return string(t)
	}
	return prefix + "." + string(t)
}

func (n *NATS) Notify(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return n.conn.Publish(subjectFor(n.subject, e.Type), data)
}

// Close flushes pending messages and closes the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}
