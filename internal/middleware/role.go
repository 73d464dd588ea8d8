package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/internal/session"
	"github.com/cosmicconnect/backend/pkg/response"
)

// VerifyEmailPath is where unverified sessions are sent.
const VerifyEmailPath = "/verify-email"

// RequireRole returns a middleware that allows only the given roles.
// Callers in another role are pointed at their own dashboard.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := session.From(c)
		if !ok {
			response.UnauthorizedRedirect(c, "missing session", session.EntryPath)
			c.Abort()
			return
		}
		if !s.Is(roles...) {
			response.ForbiddenRedirect(c, "insufficient permissions", s.Dashboard())
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireVerifiedEmail rejects volunteer and coordinator sessions whose address is unconfirmed.
// Admins are provisioned out of band and are exempt.
func RequireVerifiedEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := session.From(c)
		if !ok {
			response.UnauthorizedRedirect(c, "missing session", session.EntryPath)
			c.Abort()
			return
		}
		if !s.EmailVerified && s.Role != models.RoleAdmin {
			response.ForbiddenRedirect(c, "email not verified", VerifyEmailPath)
			c.Abort()
			return
		}
		c.Next()
	}
}
