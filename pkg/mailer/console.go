package mailer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SimulatedMessage is reported when no provider key is configured.
const SimulatedMessage = "Email simulated and logged to console."

// ConsoleSender logs messages instead of delivering them.
type ConsoleSender struct {
	logger *zap.Logger
}

// NewConsoleSender creates a console simulator.
func NewConsoleSender(logger *zap.Logger) *ConsoleSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSender{logger: logger}
}

// Send logs msg and reports success.
func (s *ConsoleSender) Send(_ context.Context, msg Message) (Result, error) {
	if msg.To == "" {
		return Result{}, ErrNoRecipient
	}
	s.logger.Info("email simulated",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("html", msg.HTML),
	)
	return Result{
		MessageID: fmt.Sprintf("console-%d", time.Now().UnixNano()),
		Simulated: true,
		Message:   SimulatedMessage,
	}, nil
}
