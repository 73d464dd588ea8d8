package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/pkg/database"
)

// Repository handles credential persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NormalizeEmail lower-cases and trims an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount inserts the credential and its users row in one transaction.
func (r *Repository) CreateAccount(ctx context.Context, email, passwordHash string, role models.Role, verified bool) (*models.User, error) {
	var u models.User
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		const insertCred = `INSERT INTO credentials (email, password_hash, email_verified) VALUES ($1, $2, $3) RETURNING id`
		if err := tx.QueryRow(ctx, insertCred, email, passwordHash, verified).Scan(&u.UID); err != nil {
			return err
		}
		const insertUser = `INSERT INTO users (uid, email, role) VALUES ($1, $2, $3) RETURNING email, role, created_at`
		return tx.QueryRow(ctx, insertUser, u.UID, email, string(role)).Scan(&u.Email, &u.Role, &u.CreatedAt)
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return &u, nil
}

const credentialColumns = `SELECT id, email, password_hash, email_verified, created_at FROM credentials`

func (r *Repository) getCredential(ctx context.Context, where string, arg any) (*models.Credential, error) {
	var c models.Credential
	err := r.pool.QueryRow(ctx, credentialColumns+" WHERE "+where, arg).
		Scan(&c.ID, &c.Email, &c.PasswordHash, &c.EmailVerified, &c.CreatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// GetCredentialByEmail returns the credential for an address.
func (r *Repository) GetCredentialByEmail(ctx context.Context, email string) (*models.Credential, error) {
	return r.getCredential(ctx, "email = $1", email)
}

// GetCredential returns the credential for an id.
func (r *Repository) GetCredential(ctx context.Context, id uuid.UUID) (*models.Credential, error) {
	return r.getCredential(ctx, "id = $1", id)
}

// MarkEmailVerified flags the credential's address as confirmed.
func (r *Repository) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE credentials SET email_verified = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// UpdatePassword replaces the password hash.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE credentials SET password_hash = $2 WHERE id = $1`, id, passwordHash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteCredential removes the identity record. Deleting a missing credential is not an error.
func (r *Repository) DeleteCredential(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM credentials WHERE id = $1`, id)
	return err
}
