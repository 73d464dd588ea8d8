package users

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/pkg/database"
)

// Repository handles users persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user or models.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, uid uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `SELECT uid, email, role, created_at FROM users WHERE uid = $1`, uid).
		Scan(&u.UID, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// List returns all users, newest first.
func (r *Repository) List(ctx context.Context) ([]*models.User, error) {
	return r.query(ctx, `SELECT uid, email, role, created_at FROM users ORDER BY created_at DESC`)
}

// GetMany returns the users that still exist among uids, keyed by uid.
func (r *Repository) GetMany(ctx context.Context, uids []uuid.UUID) (map[uuid.UUID]*models.User, error) {
	out := make(map[uuid.UUID]*models.User, len(uids))
	if len(uids) == 0 {
		return out, nil
	}
	list, err := r.query(ctx, `SELECT uid, email, role, created_at FROM users WHERE uid = ANY($1)`, uids)
	if err != nil {
		return nil, err
	}
	for _, u := range list {
		out[u.UID] = u
	}
	return out, nil
}

// UpdateRole sets a user's role.
func (r *Repository) UpdateRole(ctx context.Context, uid uuid.UUID, role models.Role) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx, `UPDATE users SET role = $2 WHERE uid = $1 RETURNING uid, email, role, created_at`, uid, string(role)).
		Scan(&u.UID, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// Delete removes the users row. Deleting a missing row is not an error.
func (r *Repository) Delete(ctx context.Context, uid uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM users WHERE uid = $1`, uid)
	return err
}

func (r *Repository) query(ctx context.Context, q string, args ...any) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.User{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.UID, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, &u)
	}
	return list, rows.Err()
}
