package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cosmicconnect/backend/internal/models"
	"github.com/cosmicconnect/backend/pkg/database"
)

// Repository handles tasks and their volunteer statuses.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a tasks repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const taskColumns = `SELECT id, title, description, date, time, duration, location, volunteer_slots, coordinator_id, created_at FROM tasks`

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	if err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Date, &t.Time, &t.Duration, &t.Location,
		&t.VolunteerSlots, &t.CoordinatorID, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Volunteers = map[uuid.UUID]models.VolunteerStatus{}
	return &t, nil
}

// Create inserts a task owned by t.CoordinatorID and fills in id and created_at.
func (r *Repository) Create(ctx context.Context, t *models.Task) error {
	const q = `INSERT INTO tasks (title, description, date, time, duration, location, volunteer_slots, coordinator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	if err := r.pool.QueryRow(ctx, q, t.Title, t.Description, t.Date, t.Time, t.Duration, t.Location, t.VolunteerSlots, t.CoordinatorID).
		Scan(&t.ID, &t.CreatedAt); err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	if t.Volunteers == nil {
		t.Volunteers = map[uuid.UUID]models.VolunteerStatus{}
	}
	return nil
}

// GetByID returns the task aggregate or models.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return r.get(ctx, r.pool, taskColumns+` WHERE id = $1`, id)
}

func (r *Repository) get(ctx context.Context, q querier, sql string, id uuid.UUID) (*models.Task, error) {
	t, err := scanTask(q.QueryRow(ctx, sql, id))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	if err := loadVolunteers(ctx, q, []*models.Task{t}); err != nil {
		return nil, err
	}
	return t, nil
}

// Delete removes a task; its volunteer statuses go with it.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// List returns every task aggregate, newest first.
func (r *Repository) List(ctx context.Context) ([]*models.Task, error) {
	return r.list(ctx, taskColumns+` ORDER BY created_at DESC`)
}

// ListByCoordinator returns the tasks a coordinator created.
func (r *Repository) ListByCoordinator(ctx context.Context, coordinatorID uuid.UUID) ([]*models.Task, error) {
	return r.list(ctx, taskColumns+` WHERE coordinator_id = $1 ORDER BY date`, coordinatorID)
}

// ListByVolunteer returns the tasks a volunteer holds a status on.
func (r *Repository) ListByVolunteer(ctx context.Context, uid uuid.UUID) ([]*models.Task, error) {
	return r.list(ctx, taskColumns+` WHERE id IN (SELECT task_id FROM task_volunteers WHERE volunteer_uid = $1) ORDER BY date`, uid)
}

// ListFrom returns tasks dated at or after from, soonest first.
func (r *Repository) ListFrom(ctx context.Context, from time.Time) ([]*models.Task, error) {
	return r.list(ctx, taskColumns+` WHERE date >= $1 ORDER BY date`, from)
}

func (r *Repository) list(ctx context.Context, sql string, args ...any) ([]*models.Task, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	list := []*models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, t)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadVolunteers(ctx, r.pool, list); err != nil {
		return nil, err
	}
	return list, nil
}

func loadVolunteers(ctx context.Context, q querier, list []*models.Task) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*models.Task, len(list))
	ids := make([]uuid.UUID, 0, len(list))
	for _, t := range list {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}
	rows, err := q.Query(ctx, `SELECT task_id, volunteer_uid, signed_up_at, verification_requested, completed
		FROM task_volunteers WHERE task_id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("load volunteers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var taskID, uid uuid.UUID
		var st models.VolunteerStatus
		if err := rows.Scan(&taskID, &uid, &st.SignedUpAt, &st.VerificationRequested, &st.Completed); err != nil {
			return err
		}
		if t, ok := byID[taskID]; ok {
			t.Volunteers[uid] = st
		}
	}
	return rows.Err()
}

// Mutate locks the task row, lets fn edit the volunteer map, and writes the
// difference in the same transaction. Concurrent sign-ups for one task are
// serialized by the lock, so capacity checks in fn see every committed seat.
func (r *Repository) Mutate(ctx context.Context, id uuid.UUID, fn func(t *models.Task) error) (*models.Task, error) {
	var out *models.Task
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		t, err := r.get(ctx, tx, taskColumns+` WHERE id = $1 FOR UPDATE`, id)
		if err != nil {
			return err
		}
		before := make(map[uuid.UUID]models.VolunteerStatus, len(t.Volunteers))
		for k, v := range t.Volunteers {
			before[k] = v
		}
		if err := fn(t); err != nil {
			return err
		}
		if err := writeDiff(ctx, tx, id, before, t.Volunteers); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func writeDiff(ctx context.Context, tx pgx.Tx, taskID uuid.UUID, before, after map[uuid.UUID]models.VolunteerStatus) error {
	batch := &pgx.Batch{}
	for uid := range before {
		if _, ok := after[uid]; !ok {
			batch.Queue(`DELETE FROM task_volunteers WHERE task_id = $1 AND volunteer_uid = $2`, taskID, uid)
		}
	}
	for uid, st := range after {
		old, existed := before[uid]
		switch {
		case !existed:
			batch.Queue(`INSERT INTO task_volunteers (task_id, volunteer_uid, signed_up_at, verification_requested, completed)
				VALUES ($1, $2, $3, $4, $5)`, taskID, uid, st.SignedUpAt, st.VerificationRequested, st.Completed)
		case old != st:
			batch.Queue(`UPDATE task_volunteers SET signed_up_at = $3, verification_requested = $4, completed = $5
				WHERE task_id = $1 AND volunteer_uid = $2`, taskID, uid, st.SignedUpAt, st.VerificationRequested, st.Completed)
		}
	}
	if batch.Len() == 0 {
		return nil
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("write volunteer statuses: %w", err)
	}
	return nil
}

// RemoveVolunteerEverywhere strips uid from every task in one statement.
func (r *Repository) RemoveVolunteerEverywhere(ctx context.Context, uid uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM task_volunteers WHERE volunteer_uid = $1`, uid)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
