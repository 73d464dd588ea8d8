package mailer

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrNoRecipient is returned when a message has no To address.
var ErrNoRecipient = errors.New("mailer: no recipient")

// Message is one outgoing email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Result is what the provider reported for a send.
type Result struct {
	MessageID string
	Simulated bool
	Message   string
}

// Sender delivers transactional email.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// New returns a Resend-backed sender when apiKey is set, otherwise a console simulator.
func New(apiKey, from string, logger *zap.Logger) Sender {
	if apiKey == "" {
		return NewConsoleSender(logger)
	}
	return NewResendSender(apiKey, from, logger)
}
