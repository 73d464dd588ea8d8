package emaillogs

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/session"
	"github.com/cosmicconnect/backend/pkg/queue"
	"github.com/cosmicconnect/backend/pkg/response"
)

// Store reads email logs.
type Store interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error)
	ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.EmailLog, error)
}

// Tasks resolves task ownership.
type Tasks interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

// Enqueuer schedules redelivery on the worker queue.
type Enqueuer interface {
	EnqueueEmailRedelivery(ctx context.Context, payload queue.EmailRedeliveryPayload) (string, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	logs   Store
	tasks  Tasks
	queue  Enqueuer
	logger *zap.Logger
}

// NewHandler creates an email logs handler. q may be nil when Redis is not wired.
func NewHandler(logs Store, tasks Tasks, q Enqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{logs: logs, tasks: tasks, queue: q, logger: logger}
}

// authorize loads the task and checks the caller owns it or is an admin.
func (h *Handler) authorize(c *gin.Context) (uuid.UUID, bool) {
	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return uuid.Nil, false
	}
	t, err := h.tasks.GetByID(c.Request.Context(), taskID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			response.NotFound(c, "task not found")
		} else {
			response.Internal(c, "failed to load task")
		}
		return uuid.Nil, false
	}
	s, _ := session.From(c)
	if s.Role != models.RoleAdmin && t.CoordinatorID != s.UID {
		response.Forbidden(c, "only the task's coordinator can view its emails")
		return uuid.Nil, false
	}
	return taskID, true
}

// ListByTask handles GET /tasks/:id/emails.
func (h *Handler) ListByTask(c *gin.Context) {
	taskID, ok := h.authorize(c)
	if !ok {
		return
	}
	logs, err := h.logs.ListByTask(c.Request.Context(), taskID)
	if err != nil {
		h.logger.Error("list email logs", zap.String("task_id", taskID.String()), zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}

// Resend handles POST /tasks/:id/emails/:logId/resend.
func (h *Handler) Resend(c *gin.Context) {
	taskID, ok := h.authorize(c)
	if !ok {
		return
	}
	logID, err := uuid.Parse(c.Param("logId"))
	if err != nil {
		response.BadRequest(c, "invalid email log id")
		return
	}
	el, err := h.logs.GetByID(c.Request.Context(), logID)
	if err != nil || el.TaskID == nil || *el.TaskID != taskID {
		response.NotFound(c, "email log not found")
		return
	}
	if el.Status == models.EmailLogStatusSent {
		response.Conflict(c, "email was already delivered")
		return
	}
	if h.queue == nil {
		response.ServiceUnavailable(c, "email queue is not configured")
		return
	}
	s, _ := session.From(c)
	jobID, err := h.queue.EnqueueEmailRedelivery(c.Request.Context(), queue.EmailRedeliveryPayload{EmailLogID: logID, RequestedBy: s.UID})
	if err != nil {
		h.logger.Error("enqueue redelivery", zap.String("email_log_id", logID.String()), zap.Error(err))
		response.Internal(c, "failed to queue resend")
		return
	}
	response.OK(c, gin.H{"message": "resend queued", "job_id": jobID})
}
