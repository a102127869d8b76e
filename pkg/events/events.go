// Package events delivers bot lifecycle notifications to external systems.
package events

import (
	"context"
	"errors"
	"time"
)

// Type names a lifecycle event.
type Type string

const (
	Authenticated               Type = "authenticated"
	AuthFailed                  Type = "auth_failed"
	Joined                      Type = "joined"
	Started                     Type = "started"
	Status                      Type = "status"
	RecordingStarted            Type = "recording_started"
	RecordingPrivilegeRequested Type = "recording_privilege_requested"
	Left                        Type = "left"
	Uploaded                    Type = "uploaded"
)

// Event is the JSON document sent to every notifier.
type Event struct {
	Type      Type      `json:"type"`
	SessionID string    `json:"session_id"`
	MeetingID string    `json:"meeting_id,omitempty"`
	Time      time.Time `json:"time"`
	Status    string    `json:"status,omitempty"`
	Code      int       `json:"code,omitempty"`
	Error     string    `json:"error,omitempty"`
	Files     []string  `json:"files,omitempty"`
}

// Notifier delivers events. Notify may block on I/O; callers on SDK
// threads should go through an Async notifier.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }
func (Nop) Close() error                        { return nil }

// Multi fans an event out to several notifiers.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, n := range m {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
