package notify

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/pkg/mailer"
)

// ErrMissingParameters is returned when a required email field is blank.
var ErrMissingParameters = errors.New("missing required parameters")

// LogStore persists one row per attempted email.
type LogStore interface {
	Create(ctx context.Context, el *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error)
}

// Outcome is the {success, message} pair reported back to callers.
type Outcome struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	LogID   uuid.UUID `json:"log_id"`
}

// CompletionEmail describes a verified contribution.
type CompletionEmail struct {
	TaskID          uuid.UUID
	VolunteerUID    uuid.UUID
	To              string
	TaskTitle       string
	CoordinatorName string
}

// Notifier renders and sends transactional email, recording each attempt.
type Notifier struct {
	sender mailer.Sender
	logs   LogStore
	logger *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(sender mailer.Sender, logs LogStore, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{sender: sender, logs: logs, logger: logger}
}

// SendCompletionEmail tells a volunteer their contribution was verified.
// A failed delivery is reported in the Outcome, not as an error.
func (n *Notifier) SendCompletionEmail(ctx context.Context, e CompletionEmail) (Outcome, error) {
	if strings.TrimSpace(e.To) == "" || strings.TrimSpace(e.TaskTitle) == "" || strings.TrimSpace(e.CoordinatorName) == "" {
		return Outcome{}, ErrMissingParameters
	}
	volunteerName, _, _ := strings.Cut(e.To, "@")
	html, err := render(completionTmpl, map[string]string{
		"VolunteerName":   volunteerName,
		"TaskTitle":       e.TaskTitle,
		"CoordinatorName": e.CoordinatorName,
	})
	if err != nil {
		return Outcome{}, err
	}
	taskID, volunteerUID := e.TaskID, e.VolunteerUID
	return n.deliver(ctx, &models.EmailLog{
		TaskID:         &taskID,
		VolunteerUID:   &volunteerUID,
		EmailType:      models.EmailTypeCompletion,
		RecipientEmail: e.To,
		Subject:        CompletionSubject(e.TaskTitle),
		HTML:           html,
	}), nil
}

// RecordUndeliverable logs a completion email that could not be attempted,
// such as when the volunteer's address is unknown. The row is written as failed.
func (n *Notifier) RecordUndeliverable(ctx context.Context, e CompletionEmail, reason string) Outcome {
	taskID, volunteerUID := e.TaskID, e.VolunteerUID
	el := &models.EmailLog{
		TaskID:         &taskID,
		VolunteerUID:   &volunteerUID,
		EmailType:      models.EmailTypeCompletion,
		RecipientEmail: e.To,
		Subject:        CompletionSubject(e.TaskTitle),
	}
	if err := n.logs.Create(ctx, el); err != nil {
		n.logger.Error("create email log failed", zap.Error(err), zap.String("email_type", el.EmailType))
		return Outcome{Success: false, Message: "Failed to send email."}
	}
	if err := n.logs.MarkFailed(ctx, el.ID, reason); err != nil {
		n.logger.Error("mark email failed", zap.Error(err))
	}
	return Outcome{Success: false, Message: "Failed to send email.", LogID: el.ID}
}

// SendVerificationEmail sends the email-address confirmation link.
func (n *Notifier) SendVerificationEmail(ctx context.Context, to, link string) (Outcome, error) {
	if to == "" || link == "" {
		return Outcome{}, ErrMissingParameters
	}
	html, err := render(verificationTmpl, map[string]string{"Link": link})
	if err != nil {
		return Outcome{}, err
	}
	return n.deliver(ctx, &models.EmailLog{
		EmailType:      models.EmailTypeEmailVerification,
		RecipientEmail: to,
		Subject:        "Verify your CosmicConnect email",
		HTML:           html,
	}), nil
}

// SendPasswordResetEmail sends an admin password recovery link.
func (n *Notifier) SendPasswordResetEmail(ctx context.Context, to, link string) (Outcome, error) {
	if to == "" || link == "" {
		return Outcome{}, ErrMissingParameters
	}
	html, err := render(resetTmpl, map[string]string{"Link": link})
	if err != nil {
		return Outcome{}, err
	}
	return n.deliver(ctx, &models.EmailLog{
		EmailType:      models.EmailTypePasswordReset,
		RecipientEmail: to,
		Subject:        "Reset your CosmicConnect admin password",
		HTML:           html,
	}), nil
}

// Redeliver sends a previously logged email again and updates its row.
// It returns an error when delivery fails so queue workers can retry.
func (n *Notifier) Redeliver(ctx context.Context, logID uuid.UUID) error {
	el, err := n.logs.GetByID(ctx, logID)
	if err != nil {
		return err
	}
	if el.Status == models.EmailLogStatusSent {
		n.logger.Info("email already sent, skipping redelivery", zap.String("email_log_id", logID.String()))
		return nil
	}
	_, err = n.send(ctx, el)
	return err
}

func (n *Notifier) deliver(ctx context.Context, el *models.EmailLog) Outcome {
	if err := n.logs.Create(ctx, el); err != nil {
		// Recording is best-effort; the email still goes out.
		n.logger.Error("create email log failed", zap.Error(err), zap.String("email_type", el.EmailType))
	}
	res, err := n.send(ctx, el)
	if err != nil {
		return Outcome{Success: false, Message: "Failed to send email.", LogID: el.ID}
	}
	return Outcome{Success: true, Message: res.Message, LogID: el.ID}
}

func (n *Notifier) send(ctx context.Context, el *models.EmailLog) (mailer.Result, error) {
	res, err := n.sender.Send(ctx, mailer.Message{To: el.RecipientEmail, Subject: el.Subject, HTML: el.HTML})
	if err != nil {
		n.logger.Warn("email delivery failed",
			zap.String("email_type", el.EmailType),
			zap.String("to", el.RecipientEmail),
			zap.Error(err))
		if el.ID != uuid.Nil {
			if mErr := n.logs.MarkFailed(ctx, el.ID, err.Error()); mErr != nil {
				n.logger.Error("mark email failed", zap.Error(mErr))
			}
		}
		return res, err
	}
	if el.ID != uuid.Nil {
		if mErr := n.logs.MarkSent(ctx, el.ID); mErr != nil {
			n.logger.Error("mark email sent", zap.Error(mErr))
		}
	}
	return res, nil
}
