package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/session"
	"github.com/cosmicconnect/backend/pkg/response"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=volunteer coordinator"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginRequest is the body for POST /admin/login.
type AdminLoginRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required"`
	EntrySecret string `json:"entry_secret"`
}

// RecoveryRequest is the body for POST /admin/password-reset.
type RecoveryRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetConfirmRequest is the body for POST /auth/password-reset/confirm.
type ResetConfirmRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=6"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Register(c.Request.Context(), req.Email, req.Password, models.Role(req.Role))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, res)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, res)
}

// AdminLogin handles POST /admin/login.
func (h *Handler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.svc.AdminLogin(c.Request.Context(), req.Email, req.Password, req.EntrySecret)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, res)
}

// VerifyEmail handles GET /auth/verify-email?token=.
func (h *Handler) VerifyEmail(c *gin.Context) {
	if err := h.svc.VerifyEmail(c.Request.Context(), c.Query("token")); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Email verified."})
}

// ResendVerification handles POST /auth/verify-email/resend.
func (h *Handler) ResendVerification(c *gin.Context) {
	sess, ok := session.From(c)
	if !ok {
		response.Unauthorized(c, "not authenticated")
		return
	}
	if err := h.svc.ResendVerification(c.Request.Context(), sess.UID); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Verification email sent."})
}

// RequestAdminPasswordReset handles POST /admin/password-reset.
func (h *Handler) RequestAdminPasswordReset(c *gin.Context) {
	var req RecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.svc.RequestAdminPasswordReset(c.Request.Context(), req.Email)
	response.OK(c, gin.H{"message": AdminRecoveryMessage})
}

// ConfirmPasswordReset handles POST /auth/password-reset/confirm.
func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req ResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"message": "Password updated."})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrInvalidAdminLogin), errors.Is(err, ErrEntryDenied):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, ErrEmailTaken), errors.Is(err, ErrAlreadyVerified):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrRoleNotAllowed), errors.Is(err, ErrInvalidLink), errors.Is(err, ErrPasswordTooShort):
		response.BadRequest(c, err.Error())
	case errors.Is(err, models.ErrNotFound):
		response.NotFound(c, "account not found")
	default:
		h.logger.Error("auth request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}
