package auth

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService("0123456789abcdef", 1)
	uid := uuid.New()

	token, err := svc.Generate(uid, "v@example.com")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, uid, claims.UserID)
	assert.Equal(t, "v@example.com", claims.Email)
	assert.Equal(t, uid.String(), claims.Subject)
}

func TestJWTService_RejectsForeignSignature(t *testing.T) {
	token, err := NewJWTService("0123456789abcdef", 1).Generate(uuid.New(), "v@example.com")
	require.NoError(t, err)

	_, err = NewJWTService("fedcba9876543210", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = NewJWTService("0123456789abcdef", 1).Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
