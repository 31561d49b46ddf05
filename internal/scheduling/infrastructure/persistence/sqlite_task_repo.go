package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/scheduling/domain"
	sharedDomain "github.com/voltahq/volta/internal/shared/domain"
	sharedPersistence "github.com/voltahq/volta/internal/shared/infrastructure/persistence"
)

// SQLiteTaskRepository implements domain.TaskRepository using SQLite.
type SQLiteTaskRepository struct {
	db *sql.DB
}

func NewSQLiteTaskRepository(db *sql.DB) *SQLiteTaskRepository {
	return &SQLiteTaskRepository{db: db}
}

func (r *SQLiteTaskRepository) querier(ctx context.Context) sharedPersistence.SQLiteQuerier {
	return sharedPersistence.SQLiteExecutor(ctx, r.db)
}

const sqliteTaskColumns = `id, user_id, title, description, estimated_minutes, priority, tag, is_auto_schedule, status, start_time, end_time, needs_attention, created_at, updated_at`

func (r *SQLiteTaskRepository) Save(ctx context.Context, task *domain.Task) error {
	_, err := r.querier(ctx).ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, title, description, estimated_minutes, priority, tag, is_auto_schedule, status, start_time, end_time, needs_attention, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			estimated_minutes = excluded.estimated_minutes,
			priority = excluded.priority,
			tag = excluded.tag,
			is_auto_schedule = excluded.is_auto_schedule,
			status = excluded.status,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			needs_attention = excluded.needs_attention,
			updated_at = excluded.updated_at`,
		task.ID().String(), task.UserID().String(), task.Title(), task.Description(),
		task.EstimatedMinutes(), task.Priority(), string(task.Tag()),
		task.IsAutoSchedule(), string(task.Status()),
		formatNullableTime(task.StartTime()), formatNullableTime(task.EndTime()),
		task.NeedsAttention(),
		task.CreatedAt().Format(time.RFC3339), task.UpdatedAt().Format(time.RFC3339),
	)
	return err
}

func (r *SQLiteTaskRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	row := r.querier(ctx).QueryRowContext(ctx, `SELECT `+sqliteTaskColumns+` FROM tasks WHERE id = ?`, id.String())
	return scanSQLiteTask(row)
}

func (r *SQLiteTaskRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter domain.TaskFilter) ([]*domain.Task, error) {
	query := `SELECT ` + sqliteTaskColumns + ` FROM tasks WHERE user_id = ?`
	args := []any{userID.String()}
	if filter.Status != nil {
		query += ` AND status = ?`
		args = append(args, string(*filter.Status))
	}
	if filter.StartDate != nil {
		query += ` AND (start_time IS NULL OR start_time >= ?)`
		args = append(args, filter.StartDate.UTC().Format(time.RFC3339))
	}
	if filter.EndDate != nil {
		query += ` AND (start_time IS NULL OR start_time < ?)`
		args = append(args, filter.EndDate.UTC().Format(time.RFC3339))
	}
	query += ` ORDER BY start_time IS NULL, start_time, created_at`

	rows, err := r.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteTasks(rows)
}

func (r *SQLiteTaskRepository) ListPendingAuto(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT `+sqliteTaskColumns+`
		FROM tasks
		WHERE user_id = ? AND status = 'pending' AND is_auto_schedule = 1
		ORDER BY created_at`,
		userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteTasks(rows)
}

func (r *SQLiteTaskRepository) ListDueBetween(ctx context.Context, from, to time.Time) ([]*domain.Task, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT `+sqliteTaskColumns+`
		FROM tasks
		WHERE status = 'pending' AND end_time >= ? AND end_time < ?
		ORDER BY end_time`,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteTasks(rows)
}

func (r *SQLiteTaskRepository) ListPlacedPendingAuto(ctx context.Context) ([]*domain.Task, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT `+sqliteTaskColumns+`
		FROM tasks
		WHERE status = 'pending' AND is_auto_schedule = 1
		  AND start_time IS NOT NULL AND end_time IS NOT NULL
		ORDER BY user_id, start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteTasks(rows)
}

func (r *SQLiteTaskRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.querier(ctx).ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func collectSQLiteTasks(rows *sql.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanSQLiteTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

func scanSQLiteTask(row rowScanner) (*domain.Task, error) {
	var (
		idStr, userIDStr           string
		title                      string
		description                sql.NullString
		estimatedMinutes, priority int
		tag, status                string
		isAuto, needsAttn          bool
		startStr, endStr           sql.NullString
		createdAtStr, updatedAtStr string
	)
	err := row.Scan(&idStr, &userIDStr, &title, &description, &estimatedMinutes, &priority, &tag, &isAuto, &status, &startStr, &endStr, &needsAttn, &createdAtStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, err
	}
	createdAt, _ := time.Parse(time.RFC3339, createdAtStr)
	updatedAt, _ := time.Parse(time.RFC3339, updatedAtStr)

	return domain.RehydrateTask(
		sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		userID, title, description.String, estimatedMinutes, priority,
		domain.Tag(tag), isAuto, domain.Status(status),
		parseNullableTime(startStr), parseNullableTime(endStr), needsAttn,
	), nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

type rowScanner interface {
	Scan(dest ...any) error
}
