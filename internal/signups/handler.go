package signups

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/session"
	"github.com/cosmicconnect/backend/pkg/response"
)

// Handler serves the sign-up and verification endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a signups handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// SignUp handles POST /tasks/:id/signup.
func (h *Handler) SignUp(c *gin.Context) {
	h.volunteerAction(c, h.svc.SignUp)
}

// Cancel handles DELETE /tasks/:id/signup.
func (h *Handler) Cancel(c *gin.Context) {
	h.volunteerAction(c, h.svc.Cancel)
}

// RequestVerification handles POST /tasks/:id/verification-request.
func (h *Handler) RequestVerification(c *gin.Context) {
	h.volunteerAction(c, h.svc.RequestVerification)
}

// Verify handles POST /tasks/:id/volunteers/:uid/verify.
func (h *Handler) Verify(c *gin.Context) {
	taskID, ok := parseID(c, "id", "invalid task id")
	if !ok {
		return
	}
	volunteerUID, ok := parseID(c, "uid", "invalid volunteer id")
	if !ok {
		return
	}
	s, _ := session.From(c)
	res, err := h.svc.Verify(c.Request.Context(), taskID, s.UID, s.Email, volunteerUID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, res)
}

// Status handles GET /tasks/:id/status.
func (h *Handler) Status(c *gin.Context) {
	taskID, ok := parseID(c, "id", "invalid task id")
	if !ok {
		return
	}
	s, _ := session.From(c)
	v, err := h.svc.Status(c.Request.Context(), taskID, s.UID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, v)
}

func (h *Handler) volunteerAction(c *gin.Context, fn func(ctx context.Context, taskID, uid uuid.UUID) (*models.Task, error)) {
	taskID, ok := parseID(c, "id", "invalid task id")
	if !ok {
		return
	}
	s, _ := session.From(c)
	t, err := fn(c.Request.Context(), taskID, s.UID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, t)
}

func parseID(c *gin.Context, param, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, msg)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "task not found")
	case errors.Is(err, ErrNotTaskOwner):
		response.Forbidden(c, err.Error())
	case errors.Is(err, models.ErrTaskFull),
		errors.Is(err, models.ErrAlreadySignedUp),
		errors.Is(err, ErrTaskNotUpcoming),
		errors.Is(err, ErrOwnTask),
		errors.Is(err, ErrNotSignedUp),
		errors.Is(err, ErrTaskDatePassed),
		errors.Is(err, ErrTaskNotPast),
		errors.Is(err, ErrVerificationPending),
		errors.Is(err, ErrVerificationNotRequested),
		errors.Is(err, ErrAlreadyCompleted):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("signup request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}
