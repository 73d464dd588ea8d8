package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
)

var (
	ErrSelfDelete     = errors.New("admins cannot delete their own account")
	ErrSelfRoleChange = errors.New("admins cannot change their own role")
	ErrInvalidRole    = errors.New("invalid role")
)

// TopicUsers carries user list changes.
const TopicUsers = "users"

const topicTasks = "tasks"

// Store is the users table.
type Store interface {
	GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	UpdateRole(ctx context.Context, uid uuid.UUID, role models.Role) (*models.User, error)
	Delete(ctx context.Context, uid uuid.UUID) error
}

// TaskCleaner strips a volunteer from every task in one statement.
type TaskCleaner interface {
	RemoveVolunteerEverywhere(ctx context.Context, uid uuid.UUID) (int64, error)
}

// CredentialRemover finds and deletes the identity record.
type CredentialRemover interface {
	GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error)
	DeleteCredential(ctx context.Context, id uuid.UUID) error
}

// Provisioner creates accounts.
type Provisioner interface {
	Provision(ctx context.Context, email, password string, role models.Role, verified bool) (*models.User, error)
}

// Broadcaster pushes changes to live subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, topic, event string, payload any)
	RevalidateUser(ctx context.Context, uid uuid.UUID)
}

// DeletionResult reports how far a user deletion got. Steps run in order and
// a failed step stops the sequence without undoing earlier ones.
type DeletionResult struct {
	UID                uuid.UUID `json:"uid"`
	TaskEntriesRemoved int64     `json:"task_entries_removed"`
	TasksCleaned       bool      `json:"tasks_cleaned"`
	UserRemoved        bool      `json:"user_removed"`
	CredentialRemoved  bool      `json:"credential_removed"`
	FailedStep         string    `json:"failed_step,omitempty"`
}

// Service implements admin user management.
type Service struct {
	store  Store
	tasks  TaskCleaner
	creds  CredentialRemover
	prov   Provisioner
	events Broadcaster
	logger *zap.Logger
}

// NewService creates a users service.
func NewService(store Store, tasks TaskCleaner, creds CredentialRemover, prov Provisioner, events Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, tasks: tasks, creds: creds, prov: prov, events: events, logger: logger}
}

// List returns every user.
func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	return s.store.List(ctx)
}

// Create provisions a pre-verified account with any role.
func (s *Service) Create(ctx context.Context, email, password string, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	u, err := s.prov.Provision(ctx, email, password, role, true)
	if err != nil {
		return nil, err
	}
	s.events.Publish(ctx, TopicUsers, "user_created", u)
	return u, nil
}

// ChangeRole sets uid's role and forces its live sessions to re-resolve.
func (s *Service) ChangeRole(ctx context.Context, actor, uid uuid.UUID, role models.Role) (*models.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	if actor == uid {
		return nil, ErrSelfRoleChange
	}
	u, err := s.store.UpdateRole(ctx, uid, role)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user role changed", zap.String("uid", uid.String()), zap.String("role", string(role)), zap.String("by", actor.String()))
	s.events.Publish(ctx, TopicUsers, "user_updated", u)
	s.events.RevalidateUser(ctx, uid)
	return u, nil
}

// Delete removes uid: task entries first, then the users row, then the credential.
// Every step is idempotent, so a deletion that stopped part way can be run again
// while either record is left.
func (s *Service) Delete(ctx context.Context, actor, uid uuid.UUID) (*DeletionResult, error) {
	if actor == uid {
		return nil, ErrSelfDelete
	}
	if err := s.exists(ctx, uid); err != nil {
		return nil, err
	}
	res := &DeletionResult{UID: uid}
	log := s.logger.With(zap.String("uid", uid.String()), zap.String("by", actor.String()))

	n, err := s.tasks.RemoveVolunteerEverywhere(ctx, uid)
	if err != nil {
		res.FailedStep = "tasks"
		log.Error("user deletion: strip task entries failed", zap.Error(err))
		return res, fmt.Errorf("strip task entries: %w", err)
	}
	res.TaskEntriesRemoved, res.TasksCleaned = n, true

	if err := s.store.Delete(ctx, uid); err != nil {
		res.FailedStep = "user"
		log.Error("user deletion: delete user record failed", zap.Error(err))
		s.announceDeletion(ctx, uid)
		return res, fmt.Errorf("delete user record: %w", err)
	}
	res.UserRemoved = true

	if err := s.creds.DeleteCredential(ctx, uid); err != nil {
		res.FailedStep = "credential"
		log.Error("user deletion: delete credential failed", zap.Error(err))
		s.announceDeletion(ctx, uid)
		return res, fmt.Errorf("delete credential: %w", err)
	}
	res.CredentialRemoved = true

	log.Info("user deleted", zap.Int64("task_entries_removed", n))
	s.announceDeletion(ctx, uid)
	return res, nil
}

// exists reports models.ErrNotFound only when neither the users row nor the
// credential remains.
func (s *Service) exists(ctx context.Context, uid uuid.UUID) error {
	_, err := s.store.GetByID(ctx, uid)
	if err == nil || !errors.Is(err, models.ErrNotFound) {
		return err
	}
	if _, err := s.creds.GetCredential(ctx, uid); err != nil {
		return err
	}
	s.logger.Info("resuming deletion of user with leftover credential", zap.String("uid", uid.String()))
	return nil
}

func (s *Service) announceDeletion(ctx context.Context, uid uuid.UUID) {
	s.events.Publish(ctx, TopicUsers, "user_deleted", map[string]any{"uid": uid})
	s.events.Publish(ctx, topicTasks, "volunteer_removed", map[string]any{"uid": uid})
	s.events.RevalidateUser(ctx, uid)
}
