package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TaskFilter narrows task listings.
type TaskFilter struct {
	Status    *Status
	StartDate *time.Time
	EndDate   *time.Time
}

// TaskRepository stores tasks.
type TaskRepository interface {
	Save(ctx context.Context, task *Task) error
	FindByID(ctx context.Context, id uuid.UUID) (*Task, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter TaskFilter) ([]*Task, error)
	// ListPendingAuto returns the user's pending auto-scheduled tasks.
	ListPendingAuto(ctx context.Context, userID uuid.UUID) ([]*Task, error)
	// ListDueBetween returns pending tasks, across all users, whose
	// deadline falls inside [from, to). Used by the deadline sweep.
	ListDueBetween(ctx context.Context, from, to time.Time) ([]*Task, error)
	// ListPlacedPendingAuto returns every pending auto-scheduled task,
	// across all users, that holds a concrete slot. Used by the
	// reconciliation sweep.
	ListPlacedPendingAuto(ctx context.Context) ([]*Task, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ItemFilter narrows schedule listings.
type ItemFilter struct {
	Type      *ItemType
	StartDate *time.Time
	EndDate   *time.Time
}

// ScheduleItemRepository stores calendar placements.
type ScheduleItemRepository interface {
	Save(ctx context.Context, item *ScheduleItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*ScheduleItem, error)
	FindByTaskID(ctx context.Context, taskID uuid.UUID) (*ScheduleItem, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter ItemFilter) ([]*ScheduleItem, error)
	// ListByUserInRange returns items overlapping [from, to).
	ListByUserInRange(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]*ScheduleItem, error)
	// ListOrphanedTaskItems returns task-type items whose backing task
	// no longer exists or is no longer pending.
	ListOrphanedTaskItems(ctx context.Context) ([]*ScheduleItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByTaskID(ctx context.Context, taskID uuid.UUID) error
}
