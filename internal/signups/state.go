package signups

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/cosmicconnect/backend/internal/models"
)

// State is where a (volunteer, task) pair stands. AwaitingRequest is derived,
// never stored: the volunteer is signed up and the task date has passed.
type State string

const (
	StateNotSignedUp           State = "not_signed_up"
	StateSignedUp              State = "signed_up"
	StateAwaitingRequest       State = "awaiting_request"
	StateVerificationRequested State = "verification_requested"
	StateCompleted             State = "completed"
)

var (
	ErrTaskNotUpcoming          = errors.New("task is no longer open for sign-up")
	ErrOwnTask                  = errors.New("cannot sign up for your own task")
	ErrNotSignedUp              = errors.New("not signed up for this task")
	ErrTaskDatePassed           = errors.New("task date has passed")
	ErrTaskNotPast              = errors.New("task has not taken place yet")
	ErrVerificationPending      = errors.New("verification already requested")
	ErrVerificationNotRequested = errors.New("volunteer has not requested verification")
	ErrAlreadyCompleted         = errors.New("participation already verified")
	ErrNotTaskOwner             = errors.New("only the task's coordinator can do this")
)

// Derive returns the pair's state at now.
func Derive(t *models.Task, uid uuid.UUID, now time.Time) State {
	st, ok := t.StatusOf(uid)
	switch {
	case !ok:
		return StateNotSignedUp
	case st.Completed:
		return StateCompleted
	case st.VerificationRequested:
		return StateVerificationRequested
	case t.IsPast(now):
		return StateAwaitingRequest
	default:
		return StateSignedUp
	}
}

// CanSignUp checks NotSignedUp -> SignedUp.
func CanSignUp(t *models.Task, uid uuid.UUID, now time.Time) error {
	if t.IsPast(now) {
		return ErrTaskNotUpcoming
	}
	if t.CoordinatorID == uid {
		return ErrOwnTask
	}
	if _, ok := t.StatusOf(uid); ok {
		return models.ErrAlreadySignedUp
	}
	if t.IsFull() {
		return models.ErrTaskFull
	}
	return nil
}

// CanCancel checks SignedUp -> NotSignedUp.
func CanCancel(t *models.Task, uid uuid.UUID, now time.Time) error {
	switch Derive(t, uid, now) {
	case StateSignedUp:
		return nil
	case StateNotSignedUp:
		return ErrNotSignedUp
	case StateAwaitingRequest:
		return ErrTaskDatePassed
	case StateVerificationRequested:
		return ErrVerificationPending
	default:
		return ErrAlreadyCompleted
	}
}

// CanRequestVerification checks AwaitingRequest -> VerificationRequested.
func CanRequestVerification(t *models.Task, uid uuid.UUID, now time.Time) error {
	switch Derive(t, uid, now) {
	case StateAwaitingRequest:
		return nil
	case StateNotSignedUp:
		return ErrNotSignedUp
	case StateSignedUp:
		return ErrTaskNotPast
	case StateVerificationRequested:
		return ErrVerificationPending
	default:
		return ErrAlreadyCompleted
	}
}

// CanVerify checks VerificationRequested -> Completed for the acting coordinator.
func CanVerify(t *models.Task, coordinator, volunteer uuid.UUID, now time.Time) error {
	if t.CoordinatorID != coordinator {
		return ErrNotTaskOwner
	}
	switch Derive(t, volunteer, now) {
	case StateVerificationRequested:
		return nil
	case StateNotSignedUp:
		return ErrNotSignedUp
	case StateCompleted:
		return ErrAlreadyCompleted
	default:
		return ErrVerificationNotRequested
	}
}
