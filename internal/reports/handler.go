package reports

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/session"
	"github.com/cosmicconnect/backend/pkg/gemini"
	"github.com/cosmicconnect/backend/pkg/response"
)

// GenerateRequest is the body for POST /reports.
type GenerateRequest struct {
	VolunteerUID string `json:"volunteer_uid" binding:"required,uuid"`
	TaskID       string `json:"task_id" binding:"required,uuid"`
}

// Handler serves the report endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a reports handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Generate handles POST /reports.
func (h *Handler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid input: "+err.Error())
		return
	}
	s, _ := session.From(c)
	rep, err := h.svc.Generate(c.Request.Context(), s.UID, uuid.MustParse(req.VolunteerUID), uuid.MustParse(req.TaskID))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, rep)
}

// List handles GET /reports.
func (h *Handler) List(c *gin.Context) {
	s, _ := session.From(c)
	list, err := h.svc.List(c.Request.Context(), s)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, list)
}

// Latest handles GET /reports/latest?volunteer_uid=&task_id=.
func (h *Handler) Latest(c *gin.Context) {
	volunteerUID, err := uuid.Parse(c.Query("volunteer_uid"))
	if err != nil {
		response.BadRequest(c, "invalid volunteer_uid")
		return
	}
	taskID, err := uuid.Parse(c.Query("task_id"))
	if err != nil {
		response.BadRequest(c, "invalid task_id")
		return
	}
	s, _ := session.From(c)
	rep, err := h.svc.Latest(c.Request.Context(), s, volunteerUID, taskID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, rep)
}

// DownloadURL handles GET /reports/:id/download-url.
func (h *Handler) DownloadURL(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid report id")
		return
	}
	s, _ := session.From(c)
	url, err := h.svc.DownloadURL(c.Request.Context(), s, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"url": url})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "not found")
	case errors.Is(err, ErrNotTaskOwner), errors.Is(err, ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrNotCompleted), errors.Is(err, ErrNotArchived):
		response.Conflict(c, err.Error())
	case errors.Is(err, gemini.ErrNotConfigured):
		response.Internal(c, err.Error())
	case errors.Is(err, ErrGenerationFailed):
		h.logger.Error("report generation failed", zap.Error(err))
		response.Internal(c, ErrGenerationFailed.Error())
	default:
		h.logger.Error("report request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}
