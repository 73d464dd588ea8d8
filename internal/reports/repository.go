package reports

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/pkg/database"
)

// Repository handles reports persistence. Rows are never updated except to
// record where the archived copy lives.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a reports repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const reportColumns = `SELECT id, volunteer_uid, task_id, coordinator_uid, generated_at, content, COALESCE(archive_key, '') FROM reports`

func scanReport(row pgx.Row) (*models.Report, error) {
	var rep models.Report
	var content []byte
	if err := row.Scan(&rep.ID, &rep.VolunteerUID, &rep.TaskID, &rep.CoordinatorUID, &rep.GeneratedAt, &content, &rep.ArchiveKey); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(content, &rep.Content); err != nil {
		return nil, fmt.Errorf("decode report content: %w", err)
	}
	return &rep, nil
}

// Create appends a report and fills in its id and generated_at.
func (r *Repository) Create(ctx context.Context, rep *models.Report) error {
	content, err := json.Marshal(rep.Content)
	if err != nil {
		return fmt.Errorf("encode report content: %w", err)
	}
	const q = `INSERT INTO reports (volunteer_uid, task_id, coordinator_uid, content)
		VALUES ($1, $2, $3, $4) RETURNING id, generated_at`
	return r.pool.QueryRow(ctx, q, rep.VolunteerUID, rep.TaskID, rep.CoordinatorUID, content).Scan(&rep.ID, &rep.GeneratedAt)
}

// SetArchiveKey records the object key of the archived copy.
func (r *Repository) SetArchiveKey(ctx context.Context, id uuid.UUID, key string) error {
	_, err := r.pool.Exec(ctx, `UPDATE reports SET archive_key = $2 WHERE id = $1`, id, key)
	return err
}

// GetByID returns a report or models.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	rep, err := scanReport(r.pool.QueryRow(ctx, reportColumns+` WHERE id = $1`, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return rep, nil
}

// Latest returns the most recent report for a (volunteer, task) pair.
func (r *Repository) Latest(ctx context.Context, volunteerUID, taskID uuid.UUID) (*models.Report, error) {
	rep, err := scanReport(r.pool.QueryRow(ctx,
		reportColumns+` WHERE volunteer_uid = $1 AND task_id = $2 ORDER BY generated_at DESC LIMIT 1`, volunteerUID, taskID))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return rep, nil
}

// ListByCoordinator returns reports a coordinator generated, newest first.
func (r *Repository) ListByCoordinator(ctx context.Context, uid uuid.UUID) ([]*models.Report, error) {
	return r.list(ctx, reportColumns+` WHERE coordinator_uid = $1 ORDER BY generated_at DESC`, uid)
}

// ListByVolunteer returns reports about a volunteer, newest first.
func (r *Repository) ListByVolunteer(ctx context.Context, uid uuid.UUID) ([]*models.Report, error) {
	return r.list(ctx, reportColumns+` WHERE volunteer_uid = $1 ORDER BY generated_at DESC`, uid)
}

// List returns every report, newest first.
func (r *Repository) List(ctx context.Context) ([]*models.Report, error) {
	return r.list(ctx, reportColumns+` ORDER BY generated_at DESC`)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]*models.Report, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*models.Report{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, rep)
	}
	return list, rows.Err()
}
