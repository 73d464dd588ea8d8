package emaillogs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/pkg/database"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `SELECT id, task_id, volunteer_uid, email_type, recipient_email, subject, html, status, sent_at, error_message, created_at
	FROM email_logs`

type scanner interface {
	Scan(dest ...any) error
}

func scanLog(row scanner) (*models.EmailLog, error) {
	var el models.EmailLog
	var subject, errMsg *string
	if err := row.Scan(&el.ID, &el.TaskID, &el.VolunteerUID, &el.EmailType, &el.RecipientEmail, &subject, &el.HTML, &el.Status, &el.SentAt, &errMsg, &el.CreatedAt); err != nil {
		return nil, err
	}
	if subject != nil {
		el.Subject = *subject
	}
	if errMsg != nil {
		el.ErrorMessage = *errMsg
	}
	return &el, nil
}

// Create inserts a pending log row and fills in its id and created_at.
func (r *Repository) Create(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs (task_id, volunteer_uid, email_type, recipient_email, subject, html, status)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6, $7)
		RETURNING id, created_at`
	if el.Status == "" {
		el.Status = models.EmailLogStatusPending
	}
	if err := r.pool.QueryRow(ctx, q, el.TaskID, el.VolunteerUID, el.EmailType, el.RecipientEmail, el.Subject, el.HTML, el.Status).
		Scan(&el.ID, &el.CreatedAt); err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, sent_at = NOW(), error_message = NULL WHERE id = $1`,
		id, models.EmailLogStatusSent)
	return err
}

// MarkFailed records a failed delivery with the provider error.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.pool.Exec(ctx, `UPDATE email_logs SET status = $2, error_message = $3 WHERE id = $1`,
		id, models.EmailLogStatusFailed, reason)
	return err
}

// GetByID returns a single log row or models.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error) {
	el, err := scanLog(r.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return el, nil
}

// ListByTask returns email logs for a task, newest first.
func (r *Repository) ListByTask(ctx context.Context, taskID uuid.UUID) ([]*models.EmailLog, error) {
	rows, err := r.pool.Query(ctx, selectColumns+` WHERE task_id = $1 ORDER BY created_at DESC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.EmailLog{}
	for rows.Next() {
		el, err := scanLog(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, el)
	}
	return list, rows.Err()
}
