// Package persistence contains the scheduling repositories.
package persistence

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltahq/volta/internal/scheduling/domain"
	sharedDomain "github.com/voltahq/volta/internal/shared/domain"
	sharedPersistence "github.com/voltahq/volta/internal/shared/infrastructure/persistence"
)

// PostgresTaskRepository implements domain.TaskRepository using PostgreSQL.
type PostgresTaskRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresTaskRepository(pool *pgxpool.Pool) *PostgresTaskRepository {
	return &PostgresTaskRepository{pool: pool}
}

const pgTaskColumns = `id, user_id, title, description, estimated_minutes, priority, tag, is_auto_schedule, status, start_time, end_time, needs_attention, created_at, updated_at`

func (r *PostgresTaskRepository) Save(ctx context.Context, task *domain.Task) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	_, err := exec.Exec(ctx, `
		INSERT INTO tasks (id, user_id, title, description, estimated_minutes, priority, tag, is_auto_schedule, status, start_time, end_time, needs_attention, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			estimated_minutes = EXCLUDED.estimated_minutes,
			priority = EXCLUDED.priority,
			tag = EXCLUDED.tag,
			is_auto_schedule = EXCLUDED.is_auto_schedule,
			status = EXCLUDED.status,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			needs_attention = EXCLUDED.needs_attention,
			updated_at = EXCLUDED.updated_at`,
		task.ID(), task.UserID(), task.Title(), task.Description(),
		task.EstimatedMinutes(), task.Priority(), string(task.Tag()),
		task.IsAutoSchedule(), string(task.Status()),
		task.StartTime(), task.EndTime(), task.NeedsAttention(),
		task.CreatedAt(), task.UpdatedAt(),
	)
	return err
}

func (r *PostgresTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+pgTaskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

func (r *PostgresTaskRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter domain.TaskFilter) ([]*domain.Task, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	query := `SELECT ` + pgTaskColumns + ` FROM tasks WHERE user_id = $1`
	args := []any{userID}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		query += ` AND (start_time IS NULL OR start_time >= $` + strconv.Itoa(len(args)) + `)`
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		query += ` AND (start_time IS NULL OR start_time < $` + strconv.Itoa(len(args)) + `)`
	}
	query += ` ORDER BY start_time NULLS LAST, created_at`

	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *PostgresTaskRepository) ListPendingAuto(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	rows, err := exec.Query(ctx, `
		SELECT `+pgTaskColumns+`
		FROM tasks
		WHERE user_id = $1 AND status = 'pending' AND is_auto_schedule
		ORDER BY created_at`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *PostgresTaskRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	rows, err := exec.Query(ctx, `
		SELECT `+pgTaskColumns+`
		FROM tasks
		WHERE status = 'pending' AND end_time >= $1 AND end_time < $2
		ORDER BY end_time`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *PostgresTaskRepository) ListPlacedPendingAuto(ctx context.Context) ([]*domain.Task, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	rows, err := exec.Query(ctx, `
		SELECT `+pgTaskColumns+`
		FROM tasks
		WHERE status = 'pending' AND is_auto_schedule
		  AND start_time IS NOT NULL AND end_time IS NOT NULL
		ORDER BY user_id, start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func (r *PostgresTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func collectTasks(rows pgx.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		id, userID           uuid.UUID
		title                string
		description          *string
		estimatedMinutes     int
		priority             int
		tag, status          string
		isAuto, needsAttn    bool
		startTime, endTime   *time.Time
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&id, &userID, &title, &description, &estimatedMinutes, &priority, &tag, &isAuto, &status, &startTime, &endTime, &needsAttn, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}
	desc := ""
	if description != nil {
		desc = *description
	}
	return domain.RehydrateTask(
		sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		userID, title, desc, estimatedMinutes, priority,
		domain.Tag(tag), isAuto, domain.Status(status),
		startTime, endTime, needsAttn,
	), nil
}
