package analytics

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/pkg/response"
)

// Handler serves the admin aggregation endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an analytics handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Overview handles GET /admin/overview.
func (h *Handler) Overview(c *gin.Context) {
	o, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		h.logger.Error("load overview", zap.Error(err))
		response.Internal(c, "failed to load overview")
		return
	}
	response.OK(c, o)
}

// Tasks handles GET /admin/tasks.
func (h *Handler) Tasks(c *gin.Context) {
	list, err := h.svc.Monitor(c.Request.Context())
	if err != nil {
		h.logger.Error("load task monitor", zap.Error(err))
		response.Internal(c, "failed to load tasks")
		return
	}
	response.OK(c, list)
}
