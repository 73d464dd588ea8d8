package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/auth"
	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/session"
	"github.com/cosmicconnect/backend/pkg/response"
)

// CreateRequest is the body for POST /admin/users.
type CreateRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=volunteer coordinator admin"`
}

// RoleRequest is the body for PATCH /admin/users/:uid/role.
type RoleRequest struct {
	Role string `json:"role" binding:"required,oneof=volunteer coordinator admin"`
}

// Handler serves the admin user management endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// List handles GET /admin/users.
func (h *Handler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}

// Create handles POST /admin/users.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	u, err := h.svc.Create(c.Request.Context(), req.Email, req.Password, models.Role(req.Role))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, u)
}

// ChangeRole handles PATCH /admin/users/:uid/role.
func (h *Handler) ChangeRole(c *gin.Context) {
	uid, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actor, _ := session.From(c)
	u, err := h.svc.ChangeRole(c.Request.Context(), actor.UID, uid, models.Role(req.Role))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, u)
}

// Delete handles DELETE /admin/users/:uid.
func (h *Handler) Delete(c *gin.Context) {
	uid, err := uuid.Parse(c.Param("uid"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	actor, _ := session.From(c)
	res, err := h.svc.Delete(c.Request.Context(), actor.UID, uid)
	if err != nil {
		if res != nil {
			// Partial deletion: report what was done alongside the error.
			c.JSON(http.StatusInternalServerError, response.Body{Success: false, Data: res, Error: "failed to delete user: " + err.Error()})
			return
		}
		h.fail(c, err)
		return
	}
	response.OK(c, res)
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "user not found")
	case errors.Is(err, ErrSelfDelete), errors.Is(err, ErrSelfRoleChange):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrInvalidRole), errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrRoleNotAllowed):
		response.BadRequest(c, err.Error())
	case errors.Is(err, auth.ErrEmailTaken):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("user management failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}
