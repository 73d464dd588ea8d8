package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType identifies the notification.
const (
	EmailTypeCompletion        = "completion"
	EmailTypeEmailVerification = "email_verification"
	EmailTypePasswordReset     = "password_reset"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records every attempted notification email.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	TaskID         *uuid.UUID `json:"task_id,omitempty"`
	VolunteerUID   *uuid.UUID `json:"volunteer_uid,omitempty"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	HTML           string     `json:"-"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
