// Package queries holds the scheduling context's read operations. Reads
// run outside the per-user lock.
package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/scheduling/domain"
)

// ListTasksQuery lists a user's tasks, optionally narrowed by status and
// date range.
type ListTasksQuery struct {
	UserID    uuid.UUID
	Status    *domain.Status
	StartDate *time.Time
	EndDate   *time.Time
}

type ListTasksHandler struct {
	tasks domain.TaskRepository
}

func NewListTasksHandler(tasks domain.TaskRepository) *ListTasksHandler {
	return &ListTasksHandler{tasks: tasks}
}

func (h *ListTasksHandler) Handle(ctx context.Context, q ListTasksQuery) ([]*domain.Task, error) {
	return h.tasks.ListByUser(ctx, q.UserID, domain.TaskFilter{
		Status:    q.Status,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
	})
}

// GetTaskQuery fetches one task owned by the caller.
type GetTaskQuery struct {
	UserID uuid.UUID
	TaskID uuid.UUID
}

type GetTaskHandler struct {
	tasks domain.TaskRepository
}

func NewGetTaskHandler(tasks domain.TaskRepository) *GetTaskHandler {
	return &GetTaskHandler{tasks: tasks}
}

func (h *GetTaskHandler) Handle(ctx context.Context, q GetTaskQuery) (*domain.Task, error) {
	task, err := h.tasks.FindByID(ctx, q.TaskID)
	if err != nil {
		return nil, err
	}
	if task.UserID() != q.UserID {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

// ListScheduleQuery lists a user's calendar items.
type ListScheduleQuery struct {
	UserID    uuid.UUID
	Type      *domain.ItemType
	StartDate *time.Time
	EndDate   *time.Time
}

type ListScheduleHandler struct {
	items domain.ScheduleItemRepository
}

func NewListScheduleHandler(items domain.ScheduleItemRepository) *ListScheduleHandler {
	return &ListScheduleHandler{items: items}
}

func (h *ListScheduleHandler) Handle(ctx context.Context, q ListScheduleQuery) ([]*domain.ScheduleItem, error) {
	return h.items.ListByUser(ctx, q.UserID, domain.ItemFilter{
		Type:      q.Type,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
	})
}
