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

// SQLiteScheduleItemRepository implements domain.ScheduleItemRepository using SQLite.
type SQLiteScheduleItemRepository struct {
	db *sql.DB
}

func NewSQLiteScheduleItemRepository(db *sql.DB) *SQLiteScheduleItemRepository {
	return &SQLiteScheduleItemRepository{db: db}
}

func (r *SQLiteScheduleItemRepository) querier(ctx context.Context) sharedPersistence.SQLiteQuerier {
	return sharedPersistence.SQLiteExecutor(ctx, r.db)
}

const sqliteItemColumns = `id, user_id, task_id, title, item_type, start_time, end_time, created_at, updated_at`

func (r *SQLiteScheduleItemRepository) Save(ctx context.Context, item *domain.ScheduleItem) error {
	var taskID any
	if tid := item.TaskID(); tid != nil {
		taskID = tid.String()
	}
	_, err := r.querier(ctx).ExecContext(ctx, `
		INSERT INTO schedule_items (id, user_id, task_id, title, item_type, start_time, end_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			task_id = excluded.task_id,
			title = excluded.title,
			item_type = excluded.item_type,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			updated_at = excluded.updated_at`,
		item.ID().String(), item.UserID().String(), taskID, item.Title(), string(item.Type()),
		item.StartTime().UTC().Format(time.RFC3339), item.EndTime().UTC().Format(time.RFC3339),
		item.CreatedAt().Format(time.RFC3339), item.UpdatedAt().Format(time.RFC3339),
	)
	return err
}

func (r *SQLiteScheduleItemRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.ScheduleItem, error) {
	row := r.querier(ctx).QueryRowContext(ctx, `SELECT `+sqliteItemColumns+` FROM schedule_items WHERE id = ?`, id.String())
	return scanSQLiteItem(row)
}

func (r *SQLiteScheduleItemRepository) FindByTaskID(ctx context.Context, taskID uuid.UUID) (*domain.ScheduleItem, error) {
	row := r.querier(ctx).QueryRowContext(ctx, `SELECT `+sqliteItemColumns+` FROM schedule_items WHERE task_id = ?`, taskID.String())
	return scanSQLiteItem(row)
}

func (r *SQLiteScheduleItemRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter domain.ItemFilter) ([]*domain.ScheduleItem, error) {
	query := `SELECT ` + sqliteItemColumns + ` FROM schedule_items WHERE user_id = ?`
	args := []any{userID.String()}
	if filter.Type != nil {
		query += ` AND item_type = ?`
		args = append(args, string(*filter.Type))
	}
	if filter.StartDate != nil {
		query += ` AND end_time > ?`
		args = append(args, filter.StartDate.UTC().Format(time.RFC3339))
	}
	if filter.EndDate != nil {
		query += ` AND start_time < ?`
		args = append(args, filter.EndDate.UTC().Format(time.RFC3339))
	}
	query += ` ORDER BY start_time`

	rows, err := r.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteItems(rows)
}

func (r *SQLiteScheduleItemRepository) ListByUserInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.ScheduleItem, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT `+sqliteItemColumns+`
		FROM schedule_items
		WHERE user_id = ? AND end_time > ? AND start_time < ?
		ORDER BY start_time`,
		userID.String(), from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteItems(rows)
}

func (r *SQLiteScheduleItemRepository) ListOrphanedTaskItems(ctx context.Context) ([]*domain.ScheduleItem, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT si.id, si.user_id, si.task_id, si.title, si.item_type, si.start_time, si.end_time, si.created_at, si.updated_at
		FROM schedule_items si
		LEFT JOIN tasks t ON t.id = si.task_id
		WHERE si.item_type = 'task' AND (t.id IS NULL OR t.status <> 'pending')
		ORDER BY si.start_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteItems(rows)
}

func (r *SQLiteScheduleItemRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.querier(ctx).ExecContext(ctx, `DELETE FROM schedule_items WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}

func (r *SQLiteScheduleItemRepository) DeleteByTaskID(ctx context.Context, taskID uuid.UUID) error {
	_, err := r.querier(ctx).ExecContext(ctx, `DELETE FROM schedule_items WHERE task_id = ?`, taskID.String())
	return err
}

func collectSQLiteItems(rows *sql.Rows) ([]*domain.ScheduleItem, error) {
	var items []*domain.ScheduleItem
	for rows.Next() {
		item, err := scanSQLiteItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanSQLiteItem(row rowScanner) (*domain.ScheduleItem, error) {
	var (
		idStr, userIDStr           string
		taskIDStr                  sql.NullString
		title, itemType            string
		startStr, endStr           string
		createdAtStr, updatedAtStr string
	)
	err := row.Scan(&idStr, &userIDStr, &taskIDStr, &title, &itemType, &startStr, &endStr, &createdAtStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
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
	var taskID *uuid.UUID
	if taskIDStr.Valid && taskIDStr.String != "" {
		tid, err := uuid.Parse(taskIDStr.String)
		if err != nil {
			return nil, err
		}
		taskID = &tid
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return nil, err
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return nil, err
	}
	createdAt, _ := time.Parse(time.RFC3339, createdAtStr)
	updatedAt, _ := time.Parse(time.RFC3339, updatedAtStr)

	return domain.RehydrateScheduleItem(
		sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		userID, taskID, title, domain.ItemType(itemType), start, end,
	), nil
}
