package tasks

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/session"
	"github.com/cosmicconnect/backend/pkg/gemini"
	"github.com/cosmicconnect/backend/pkg/response"
)

// TopicTasks carries task aggregate changes.
const TopicTasks = "tasks"

var ErrNotOwner = errors.New("only the task's coordinator can delete it")

// Broadcaster pushes task changes to live subscribers.
type Broadcaster interface {
	Publish(ctx context.Context, topic, event string, payload any)
}

// UserLookup resolves volunteer addresses in one batch.
type UserLookup interface {
	GetMany(ctx context.Context, uids []uuid.UUID) (map[uuid.UUID]*models.User, error)
}

// DraftRequest is the body for POST /tasks/draft.
type DraftRequest struct {
	Prompt string `json:"prompt"`
}

// Handler serves the task lifecycle endpoints.
type Handler struct {
	repo   *Repository
	users  UserLookup
	gen    Generator
	events Broadcaster
	loc    *time.Location
	logger *zap.Logger
}

// NewHandler creates a tasks handler. Day boundaries are evaluated in loc.
func NewHandler(repo *Repository, users UserLookup, gen Generator, events Broadcaster, loc *time.Location, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{repo: repo, users: users, gen: gen, events: events, loc: loc, logger: logger}
}

func (h *Handler) now() time.Time {
	return time.Now().In(h.loc)
}

// Create handles POST /tasks.
func (h *Handler) Create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	fields, date := in.Validate(h.now(), h.loc)
	if fields != nil {
		response.ValidationFailed(c, fields)
		return
	}
	s, _ := session.From(c)
	t := &models.Task{
		Title:          in.Title,
		Description:    in.Description,
		Date:           date,
		Time:           in.Time,
		Duration:       in.Duration,
		Location:       in.Location,
		VolunteerSlots: in.VolunteerSlots,
		CoordinatorID:  s.UID,
	}
	if err := h.repo.Create(c.Request.Context(), t); err != nil {
		h.logger.Error("create task failed", zap.Error(err))
		response.Internal(c, "failed to create task")
		return
	}
	h.logger.Info("task created", zap.String("task_id", t.ID.String()), zap.String("coordinator_id", s.UID.String()))
	h.events.Publish(c.Request.Context(), TopicTasks, "task_created", t)
	response.Created(c, t)
}

// Delete handles DELETE /tasks/:id. Only the owning coordinator may delete.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid task id")
		return
	}
	ctx := c.Request.Context()
	t, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	s, _ := session.From(c)
	if t.CoordinatorID != s.UID {
		response.Forbidden(c, ErrNotOwner.Error())
		return
	}
	if err := h.repo.Delete(ctx, id); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("task deleted", zap.String("task_id", id.String()), zap.Int("volunteers", t.SignupCount()))
	h.events.Publish(ctx, TopicTasks, "task_deleted", gin.H{"id": id})
	response.NoContent(c)
}

// List handles GET /tasks.
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, NewListing(list, h.now()))
}

// Available handles GET /tasks/available.
func (h *Handler) Available(c *gin.Context) {
	now := h.now()
	list, err := h.repo.ListFrom(c.Request.Context(), models.StartOfDay(now))
	if err != nil {
		h.fail(c, err)
		return
	}
	s, _ := session.From(c)
	response.OK(c, Available(list, s.UID, now))
}

// Mine handles GET /tasks/mine: the volunteer or coordinator dashboard.
func (h *Handler) Mine(c *gin.Context) {
	ctx := c.Request.Context()
	s, _ := session.From(c)
	now := h.now()
	switch s.Role {
	case models.RoleVolunteer:
		list, err := h.repo.ListByVolunteer(ctx, s.UID)
		if err != nil {
			h.fail(c, err)
			return
		}
		response.OK(c, BuildVolunteerDashboard(list, s.UID, now))
	case models.RoleCoordinator:
		list, err := h.repo.ListByCoordinator(ctx, s.UID)
		if err != nil {
			h.fail(c, err)
			return
		}
		users, err := h.users.GetMany(ctx, Volunteers(list))
		if err != nil {
			h.fail(c, err)
			return
		}
		response.OK(c, BuildCoordinatorDashboard(list, users, now))
	default:
		response.ForbiddenRedirect(c, "insufficient permissions", s.Dashboard())
	}
}

// Draft handles POST /tasks/draft.
func (h *Handler) Draft(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	d, err := GenerateDraft(c.Request.Context(), h.gen, req.Prompt)
	if err != nil {
		switch {
		case errors.Is(err, ErrPromptTooShort):
			response.BadRequest(c, "Invalid input: "+err.Error())
		case errors.Is(err, gemini.ErrNotConfigured):
			response.Internal(c, err.Error())
		default:
			h.logger.Error("task draft failed", zap.Error(err))
			response.Internal(c, ErrDraftFailed.Error())
		}
		return
	}
	response.OK(c, d)
}

func (h *Handler) fail(c *gin.Context, err error) {
	if errors.Is(err, models.ErrNotFound) {
		response.NotFound(c, "task not found")
		return
	}
	h.logger.Error("task request failed", zap.String("path", c.FullPath()), zap.Error(err))
	response.Internal(c, "internal error")
}
