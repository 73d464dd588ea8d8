// Package analytics builds the admin aggregation views over users and tasks.
package analytics

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/tasks"
)

const (
	StatusUpcoming  = "upcoming"
	StatusCompleted = "completed"
)

// Users loads the user collection.
type Users interface {
	List(ctx context.Context) ([]*models.User, error)
	GetMany(ctx context.Context, uids []uuid.UUID) (map[uuid.UUID]*models.User, error)
}

// Tasks loads the task collection.
type Tasks interface {
	List(ctx context.Context) ([]*models.Task, error)
}

// Overview is the admin dashboard summary.
type Overview struct {
	VolunteerCount   int              `json:"volunteer_count"`
	CoordinatorCount int              `json:"coordinator_count"`
	TotalTasks       int              `json:"total_tasks"`
	TotalSignups     int              `json:"total_signups"`
	Chart            []tasks.ChartRow `json:"chart"`
}

// MonitoredTask is one row of the admin task monitor.
type MonitoredTask struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Date             time.Time `json:"date"`
	CoordinatorID    uuid.UUID `json:"coordinator_id"`
	CoordinatorEmail string    `json:"coordinator_email"`
	SignedUp         int       `json:"signed_up"`
	Slots            int       `json:"slots"`
	Status           string    `json:"status"`
}

// Service recomputes aggregates from full snapshots on every call.
type Service struct {
	users  Users
	tasks  Tasks
	clock  func() time.Time
	logger *zap.Logger
}

// NewService creates an analytics service.
func NewService(users Users, taskStore Tasks, loc *time.Location, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		users:  users,
		tasks:  taskStore,
		clock:  func() time.Time { return time.Now().In(loc) },
		logger: logger,
	}
}

// Overview counts users by role and signups across every task.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var (
		userList []*models.User
		taskList []*models.Task
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		userList, err = s.users.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		taskList, err = s.tasks.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return BuildOverview(userList, taskList), nil
}

// BuildOverview aggregates the two collections.
func BuildOverview(userList []*models.User, taskList []*models.Task) *Overview {
	o := &Overview{TotalTasks: len(taskList), Chart: make([]tasks.ChartRow, 0, len(taskList))}
	for _, u := range userList {
		switch u.Role {
		case models.RoleVolunteer:
			o.VolunteerCount++
		case models.RoleCoordinator:
			o.CoordinatorCount++
		}
	}
	for _, t := range taskList {
		o.TotalSignups += t.SignupCount()
		o.Chart = append(o.Chart, tasks.ChartRow{
			TaskID:   t.ID,
			Title:    tasks.TruncateTitle(t.Title),
			SignedUp: t.SignupCount(),
			Slots:    t.VolunteerSlots,
		})
	}
	return o
}

// Monitor lists every task newest first with its coordinator resolved.
func (s *Service) Monitor(ctx context.Context) ([]MonitoredTask, error) {
	taskList, err := s.tasks.List(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(taskList))
	for _, t := range taskList {
		ids = append(ids, t.CoordinatorID)
	}
	coordinators, err := s.users.GetMany(ctx, ids)
	if err != nil {
		s.logger.Warn("coordinator lookup failed, showing raw ids", zap.Error(err))
		coordinators = nil
	}
	return BuildMonitor(taskList, coordinators, s.clock()), nil
}

// BuildMonitor joins tasks to coordinator emails. A missing coordinator
// shows as its raw id.
func BuildMonitor(taskList []*models.Task, coordinators map[uuid.UUID]*models.User, now time.Time) []MonitoredTask {
	out := make([]MonitoredTask, 0, len(taskList))
	for _, t := range taskList {
		email := t.CoordinatorID.String()
		if u, ok := coordinators[t.CoordinatorID]; ok {
			email = u.Email
		}
		status := StatusUpcoming
		if t.Date.Before(now) {
			status = StatusCompleted
		}
		out = append(out, MonitoredTask{
			ID:               t.ID,
			Title:            t.Title,
			Date:             t.Date,
			CoordinatorID:    t.CoordinatorID,
			CoordinatorEmail: email,
			SignedUp:         t.SignupCount(),
			Slots:            t.VolunteerSlots,
			Status:           status,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}
