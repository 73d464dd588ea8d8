package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleVolunteer   Role = "volunteer"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleVolunteer, RoleCoordinator, RoleAdmin:
		return true
	}
	return false
}

// ParseRole returns the Role for s, or false if s is not a known role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// User is the /users/{uid} record: the role-bearing profile of an identity.
type User struct {
	UID       uuid.UUID `json:"uid"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName is the local part of the user's email, used in notifications.
func (u *User) DisplayName() string {
	name, _, _ := strings.Cut(u.Email, "@")
	return name
}

// Credential is the identity-provider record behind a user.
type Credential struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}
