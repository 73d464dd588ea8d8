package signups

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/notify"
)

const topicTasks = "tasks"

// Store loads tasks and applies volunteer-status changes under a row lock.
// fn sees the current aggregate and edits its Volunteers map; the store
// persists the difference. An error from fn aborts without writing.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	Mutate(ctx context.Context, id uuid.UUID, fn func(t *models.Task) error) (*models.Task, error)
}

// Users resolves volunteer addresses for notifications.
type Users interface {
	GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error)
}

// Notifier sends the completion email and records the ones that cannot be sent.
type Notifier interface {
	SendCompletionEmail(ctx context.Context, e notify.CompletionEmail) (notify.Outcome, error)
	RecordUndeliverable(ctx context.Context, e notify.CompletionEmail, reason string) notify.Outcome
}

// Broadcaster pushes task changes to live subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, topic, event string, payload any)
}

// StatusView is the caller's standing on one task.
type StatusView struct {
	TaskID         uuid.UUID               `json:"task_id"`
	State          State                   `json:"state"`
	Status         *models.VolunteerStatus `json:"status,omitempty"`
	SlotsRemaining int                     `json:"slots_remaining"`
	FullyBooked    bool                    `json:"fully_booked"`
}

// VerifyResult reports the persisted completion and the email attempt that followed.
type VerifyResult struct {
	Task         *models.Task `json:"task"`
	VolunteerUID uuid.UUID    `json:"volunteer_uid"`
	EmailSent    bool         `json:"email_sent"`
	EmailMessage string       `json:"email_message"`
}

// Service drives (volunteer, task) pairs through sign-up, verification and completion.
type Service struct {
	store  Store
	users  Users
	mail   Notifier
	events Broadcaster
	clock  func() time.Time
	logger *zap.Logger
}

// NewService creates a signups service. Day boundaries are evaluated in loc.
func NewService(store Store, users Users, mail Notifier, events Broadcaster, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		store:  store,
		users:  users,
		mail:   mail,
		events: events,
		clock:  func() time.Time { return time.Now().In(loc) },
		logger: logger,
	}
}

// SignUp adds a fresh status for uid. Capacity is checked under the task lock.
func (s *Service) SignUp(ctx context.Context, taskID, uid uuid.UUID) (*models.Task, error) {
	now := s.clock()
	t, err := s.store.Mutate(ctx, taskID, func(t *models.Task) error {
		if err := CanSignUp(t, uid, now); err != nil {
			return err
		}
		t.Volunteers[uid] = models.VolunteerStatus{SignedUpAt: now}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("volunteer signed up", zap.String("task_id", taskID.String()), zap.String("uid", uid.String()))
	s.events.Publish(ctx, topicTasks, "task_updated", t)
	return t, nil
}

// Cancel removes uid's status while the task is still upcoming.
func (s *Service) Cancel(ctx context.Context, taskID, uid uuid.UUID) (*models.Task, error) {
	now := s.clock()
	t, err := s.store.Mutate(ctx, taskID, func(t *models.Task) error {
		if err := CanCancel(t, uid, now); err != nil {
			return err
		}
		delete(t.Volunteers, uid)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("volunteer cancelled", zap.String("task_id", taskID.String()), zap.String("uid", uid.String()))
	s.events.Publish(ctx, topicTasks, "task_updated", t)
	return t, nil
}

// RequestVerification flags a past task for coordinator review.
func (s *Service) RequestVerification(ctx context.Context, taskID, uid uuid.UUID) (*models.Task, error) {
	now := s.clock()
	t, err := s.store.Mutate(ctx, taskID, func(t *models.Task) error {
		if err := CanRequestVerification(t, uid, now); err != nil {
			return err
		}
		st := t.Volunteers[uid]
		st.VerificationRequested = true
		t.Volunteers[uid] = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, topicTasks, "task_updated", t)
	return t, nil
}

// Verify marks the volunteer's participation complete, then attempts the completion email.
// The status change is never undone by an email failure.
func (s *Service) Verify(ctx context.Context, taskID, coordinatorUID uuid.UUID, coordinatorEmail string, volunteerUID uuid.UUID) (*VerifyResult, error) {
	now := s.clock()
	t, err := s.store.Mutate(ctx, taskID, func(t *models.Task) error {
		if err := CanVerify(t, coordinatorUID, volunteerUID, now); err != nil {
			return err
		}
		st := t.Volunteers[volunteerUID]
		st.Completed = true
		st.VerificationRequested = false
		t.Volunteers[volunteerUID] = st
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, topicTasks, "task_updated", t)

	res := &VerifyResult{Task: t, VolunteerUID: volunteerUID}
	log := s.logger.With(zap.String("task_id", taskID.String()), zap.String("volunteer_uid", volunteerUID.String()))

	coordinator := models.User{Email: coordinatorEmail}
	email := notify.CompletionEmail{
		TaskID:          taskID,
		VolunteerUID:    volunteerUID,
		TaskTitle:       t.Title,
		CoordinatorName: coordinator.DisplayName(),
	}
	volunteer, err := s.users.GetByID(ctx, volunteerUID)
	if err != nil {
		log.Warn("completion email not sent: volunteer lookup failed", zap.Error(err))
		s.mail.RecordUndeliverable(ctx, email, "volunteer lookup failed: "+err.Error())
		res.EmailMessage = "Volunteer verified, but their email address could not be found."
		return res, nil
	}
	email.To = volunteer.Email
	out, err := s.mail.SendCompletionEmail(ctx, email)
	if err != nil {
		log.Warn("completion email not sent", zap.Error(err))
		res.EmailMessage = "Volunteer verified, but the email could not be sent: " + err.Error()
		return res, nil
	}
	res.EmailSent = out.Success
	res.EmailMessage = out.Message
	return res, nil
}

// Status returns the caller's derived state on a task.
func (s *Service) Status(ctx context.Context, taskID, uid uuid.UUID) (*StatusView, error) {
	t, err := s.store.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	v := &StatusView{
		TaskID:         t.ID,
		State:          Derive(t, uid, s.clock()),
		SlotsRemaining: t.SlotsRemaining(),
		FullyBooked:    t.IsFull(),
	}
	if st, ok := t.StatusOf(uid); ok {
		v.Status = &st
	}
	return v, nil
}
