// Package notify delivers reminder texts to users over the configured
// channels.
package notify

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a notification.
type Kind string

const (
	KindEventReminder Kind = "reminder.event"
	KindClassReminder Kind = "reminder.class"
	KindOffDayDigest  Kind = "digest.off_day"
)

// Notification is one message addressed to a user.
type Notification struct {
	UserID int64
	Kind   Kind
	Text   string
}

// ErrNoRecipient is returned when a channel has nowhere to deliver a message.
var ErrNoRecipient = errors.New("no recipient connected")

// Sender delivers notifications.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, n Notification) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Multi fans a notification out to several senders. It succeeds when at
// least one sender does.
type Multi []Sender

// Send delivers n through every sender and joins the errors when all fail.
func (m Multi) Send(ctx context.Context, n Notification) error {
	if len(m) == 0 {
		return ErrNoRecipient
	}

	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) < len(m) {
		return nil
	}
	return fmt.Errorf("all %d channels failed: %w", len(m), errors.Join(errs...))
}
