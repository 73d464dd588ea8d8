package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/cosmicconnect/backend/pkg/utils"
)

// Purpose scopes a one-time token.
type Purpose string

const (
	PurposeEmailVerification Purpose = "verify"
	PurposePasswordReset     Purpose = "reset"
)

// TTL returns how long a token of this purpose stays valid.
func (p Purpose) TTL() time.Duration {
	if p == PurposePasswordReset {
		return time.Hour
	}
	return 24 * time.Hour
}

// TokenStore keeps single-use tokens in Redis.
type TokenStore struct {
	client *redis.Client
}

// NewTokenStore creates a Redis-backed token store.
func NewTokenStore(client *redis.Client) *TokenStore {
	return &TokenStore{client: client}
}

func tokenKey(p Purpose, token string) string {
	return fmt.Sprintf("auth:%s:%s", p, token)
}

// Issue creates a token bound to uid.
func (s *TokenStore) Issue(ctx context.Context, p Purpose, uid uuid.UUID) (string, error) {
	token, err := utils.RandomToken()
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	if err := s.client.Set(ctx, tokenKey(p, token), uid.String(), p.TTL()).Err(); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}
	return token, nil
}

// Consume returns the uid bound to token and deletes it. Unknown or expired tokens yield ErrInvalidLink.
func (s *TokenStore) Consume(ctx context.Context, p Purpose, token string) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, ErrInvalidLink
	}
	v, err := s.client.GetDel(ctx, tokenKey(p, token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return uuid.Nil, ErrInvalidLink
		}
		return uuid.Nil, err
	}
	uid, err := uuid.Parse(v)
	if err != nil {
		return uuid.Nil, ErrInvalidLink
	}
	return uid, nil
}
