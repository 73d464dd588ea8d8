package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cosmicconnect/backend/internal/auth"
	"github.com/cosmicconnect/backend/pkg/response"
)

const (
	// ContextUserID is the key for the authenticated uid in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for the authenticated email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates the bearer token and sets the identity in context.
// It establishes who the caller is, not what they may do; see Session.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
