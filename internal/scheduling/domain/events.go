package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/voltahq/volta/internal/shared/domain"
)

// TaskScheduled is emitted when the engine places a task.
type TaskScheduled struct {
	sharedDomain.BaseEvent
	TaskID    uuid.UUID `json:"task_id"`
	UserID    uuid.UUID `json:"user_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func NewTaskScheduled(task *Task) TaskScheduled {
	start, end := time.Time{}, time.Time{}
	if s := task.StartTime(); s != nil {
		start = *s
	}
	if e := task.EndTime(); e != nil {
		end = *e
	}
	return TaskScheduled{
		BaseEvent: sharedDomain.NewBaseEvent(task.ID(), "task", "scheduling.task.scheduled"),
		TaskID:    task.ID(),
		UserID:    task.UserID(),
		Title:     task.Title(),
		StartTime: start,
		EndTime:   end,
	}
}

// TaskRescheduledEvent is emitted when the cascade moves a task.
type TaskRescheduledEvent struct {
	sharedDomain.BaseEvent
	TaskID       uuid.UUID `json:"task_id"`
	UserID       uuid.UUID `json:"user_id"`
	OldStartTime time.Time `json:"old_start_time"`
	NewStartTime time.Time `json:"new_start_time"`
}

func NewTaskRescheduledEvent(task *Task, oldStart, newStart time.Time) TaskRescheduledEvent {
	return TaskRescheduledEvent{
		BaseEvent:    sharedDomain.NewBaseEvent(task.ID(), "task", "scheduling.task.rescheduled"),
		TaskID:       task.ID(),
		UserID:       task.UserID(),
		OldStartTime: oldStart,
		NewStartTime: newStart,
	}
}

// TaskCompletedEvent is emitted on the one-way pending → completed move.
type TaskCompletedEvent struct {
	sharedDomain.BaseEvent
	TaskID uuid.UUID `json:"task_id"`
	UserID uuid.UUID `json:"user_id"`
}

func NewTaskCompletedEvent(task *Task) TaskCompletedEvent {
	return TaskCompletedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(task.ID(), "task", "scheduling.task.completed"),
		TaskID:    task.ID(),
		UserID:    task.UserID(),
	}
}

// TaskDeletedEvent is emitted when a task and its mirror are removed.
type TaskDeletedEvent struct {
	sharedDomain.BaseEvent
	TaskID uuid.UUID `json:"task_id"`
	UserID uuid.UUID `json:"user_id"`
}

func NewTaskDeletedEvent(task *Task) TaskDeletedEvent {
	return TaskDeletedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(task.ID(), "task", "scheduling.task.deleted"),
		TaskID:    task.ID(),
		UserID:    task.UserID(),
	}
}
