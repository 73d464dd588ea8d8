package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cosmicconnect/backend/internal/session"
	"github.com/cosmicconnect/backend/pkg/response"
)

// SessionResolver resolves a uid to a session, failing closed.
type SessionResolver interface {
	Resolve(ctx context.Context, uid uuid.UUID) (*session.Session, error)
}

// Session resolves the authenticated identity to its current role on every request.
// Must run after JWT.
func Session(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(ContextUserID)
		uid, isUUID := v.(uuid.UUID)
		if !ok || !isUUID {
			response.UnauthorizedRedirect(c, session.ErrNotAuthorized.Error(), session.EntryPath)
			c.Abort()
			return
		}
		s, err := resolver.Resolve(c.Request.Context(), uid)
		if err != nil {
			response.UnauthorizedRedirect(c, session.ErrNotAuthorized.Error(), session.EntryPath)
			c.Abort()
			return
		}
		session.Set(c, s)
		c.Next()
	}
}
