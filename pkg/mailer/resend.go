package mailer

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ResendSender sends email through the Resend API.
type ResendSender struct {
	client *resend.Client
	from   string
	logger *zap.Logger
}

// NewResendSender creates a sender for the given API key and From header.
func NewResendSender(apiKey, from string, logger *zap.Logger) *ResendSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResendSender{client: resend.NewClient(apiKey), from: from, logger: logger}
}

// Send delivers msg and returns the provider message id.
func (s *ResendSender) Send(ctx context.Context, msg Message) (Result, error) {
	if msg.To == "" {
		return Result{}, ErrNoRecipient
	}
	sent, err := s.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		s.logger.Error("resend send failed", zap.Error(err), zap.String("to", msg.To), zap.String("subject", msg.Subject))
		return Result{}, fmt.Errorf("resend send: %w", err)
	}
	s.logger.Info("email sent", zap.String("message_id", sent.Id), zap.String("to", msg.To))
	return Result{MessageID: sent.Id, Message: "Email sent successfully."}, nil
}
