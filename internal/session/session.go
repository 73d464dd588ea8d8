// Package session resolves an authenticated identity to its role on every request.
package session

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cosmicconnect/backend/internal/models"
)

// ErrNotAuthorized is returned for any identity that cannot be positively resolved.
var ErrNotAuthorized = errors.New("not authorized")

// EntryPath is where unauthorized clients are sent.
const EntryPath = "/"

const contextKey = "session"

// Session is the resolved, role-bearing view of the caller.
type Session struct {
	UID           uuid.UUID   `json:"uid"`
	Email         string      `json:"email"`
	Role          models.Role `json:"role"`
	EmailVerified bool        `json:"email_verified"`
}

// Dashboard is the landing page for the session's role.
func (s *Session) Dashboard() string {
	return DashboardPath(s.Role)
}

// Is reports whether the session holds any of roles.
func (s *Session) Is(roles ...models.Role) bool {
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// DashboardPath maps a role to its dashboard; unknown roles go to the entry page.
func DashboardPath(role models.Role) string {
	switch role {
	case models.RoleAdmin:
		return "/admin"
	case models.RoleCoordinator:
		return "/dashboard/coordinator"
	case models.RoleVolunteer:
		return "/dashboard/volunteer"
	}
	return EntryPath
}

// Users looks up the role-bearing record.
type Users interface {
	GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error)
}

// Credentials looks up the identity record.
type Credentials interface {
	GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error)
}

// Resolver builds a Session from the stored records. It never caches.
type Resolver struct {
	users  Users
	creds  Credentials
	logger *zap.Logger
}

// NewResolver creates a resolver.
func NewResolver(users Users, creds Credentials, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{users: users, creds: creds, logger: logger}
}

// Resolve returns the caller's session. Missing records, unknown roles and
// lookup failures all yield ErrNotAuthorized.
func (r *Resolver) Resolve(ctx context.Context, uid uuid.UUID) (*Session, error) {
	user, err := r.users.GetByID(ctx, uid)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			r.logger.Warn("session user lookup failed", zap.String("uid", uid.String()), zap.Error(err))
		}
		return nil, ErrNotAuthorized
	}
	if !user.Role.Valid() {
		r.logger.Warn("session has unrecognized role", zap.String("uid", uid.String()), zap.String("role", string(user.Role)))
		return nil, ErrNotAuthorized
	}
	cred, err := r.creds.GetCredential(ctx, uid)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			r.logger.Warn("session credential lookup failed", zap.String("uid", uid.String()), zap.Error(err))
		}
		return nil, ErrNotAuthorized
	}
	return &Session{
		UID:           user.UID,
		Email:         user.Email,
		Role:          user.Role,
		EmailVerified: cred.EmailVerified,
	}, nil
}

// Set stores s on the request context.
func Set(c *gin.Context, s *Session) {
	c.Set(contextKey, s)
}

// From returns the session stored by the Session middleware.
func From(c *gin.Context) (*Session, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok && s != nil
}
