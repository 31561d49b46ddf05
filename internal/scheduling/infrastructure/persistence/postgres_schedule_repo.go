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

// PostgresScheduleItemRepository implements domain.ScheduleItemRepository
// using PostgreSQL.
type PostgresScheduleItemRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresScheduleItemRepository(pool *pgxpool.Pool) *PostgresScheduleItemRepository {
	return &PostgresScheduleItemRepository{pool: pool}
}

const pgItemColumns = `id, user_id, task_id, title, item_type, start_time, end_time, created_at, updated_at`

func (r *PostgresScheduleItemRepository) Save(ctx context.Context, item *domain.ScheduleItem) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	_, err := exec.Exec(ctx, `
		INSERT INTO schedule_items (id, user_id, task_id, title, item_type, start_time, end_time, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			updated_at = EXCLUDED.updated_at`,
		item.ID(), item.UserID(), item.TaskID(), item.Title(), string(item.Type()),
		item.StartTime(), item.EndTime(), item.CreatedAt(), item.UpdatedAt(),
	)
	return err
}

func (r *PostgresScheduleItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleItem, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+pgItemColumns+` FROM schedule_items WHERE id = $1`, id)
	return scanItem(row)
}

func (r *PostgresScheduleItemRepository) FindByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.ScheduleItem, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	row := exec.QueryRow(ctx, `SELECT `+pgItemColumns+` FROM schedule_items WHERE task_id = $1`, taskID)
	return scanItem(row)
}

func (r *PostgresScheduleItemRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter domain.ItemFilter) ([]*domain.ScheduleItem, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	query := `SELECT ` + pgItemColumns + ` FROM schedule_items WHERE user_id = $1`
	args := []any{userID}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		query += ` AND item_type = $` + strconv.Itoa(len(args))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		query += ` AND end_time > $` + strconv.Itoa(len(args))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		query += ` AND start_time < $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY start_time`

	rows, err := exec.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *PostgresScheduleItemRepository) ListByUserInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.ScheduleItem, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	rows, err := exec.Query(ctx, `
		SELECT `+pgItemColumns+`
		FROM schedule_items
		WHERE user_id = $1 AND end_time > $2 AND start_time < $3
		ORDER BY start_time`,
		userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *PostgresScheduleItemRepository) ListOrphanedTaskItems(ctx context.Context) ([]*domain.ScheduleItem, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	rows, err := exec.Query(ctx, `
		SELECT `+itemCols("si")+`
		FROM schedule_items si
		LEFT JOIN tasks t ON t.id = si.task_id
		WHERE si.item_type = 'task'
		  AND (si.task_id IS NULL OR t.id IS NULL OR t.status <> 'pending')`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *PostgresScheduleItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	tag, err := exec.Exec(ctx, `DELETE FROM schedule_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *PostgresScheduleItemRepository) DeleteByTaskID(ctx context.Context, taskID uuid.UUID) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	_, err := exec.Exec(ctx, `DELETE FROM schedule_items WHERE task_id = $1`, taskID)
	return err
}

func itemCols(alias string) string {
	return alias + ".id, " + alias + ".user_id, " + alias + ".task_id, " + alias + ".title, " +
		alias + ".item_type, " + alias + ".start_time, " + alias + ".end_time, " +
		alias + ".created_at, " + alias + ".updated_at"
}

func collectItems(rows pgx.Rows) ([]*domain.ScheduleItem, error) {
	var items []*domain.ScheduleItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (*domain.ScheduleItem, error) {
	var (
		id, userID           uuid.UUID
		taskID               *uuid.UUID
		title, itemType      string
		startTime, endTime   time.Time
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&id, &userID, &taskID, &title, &itemType, &startTime, &endTime, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, err
	}
	return domain.RehydrateScheduleItem(
		sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		userID, taskID, title, domain.ItemType(itemType), startTime, endTime,
	), nil
}
