// Package commands holds the scheduling context's write operations: the
// four core entry points plus deletion. Each handler serializes on the
// per-user lock before touching mutable state.
package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	identityDomain "github.com/voltahq/volta/internal/identity/domain"
	notifApp "github.com/voltahq/volta/internal/notifications/application"
	notifDomain "github.com/voltahq/volta/internal/notifications/domain"
	"github.com/voltahq/volta/internal/scheduling/application/services"
	"github.com/voltahq/volta/internal/scheduling/domain"
	"github.com/voltahq/volta/internal/shared/application"
	"github.com/voltahq/volta/internal/shared/infrastructure/outbox"
	"github.com/voltahq/volta/internal/shared/infrastructure/userlock"
)

// CreateTaskCommand submits a new task, smart-scheduled or not.
type CreateTaskCommand struct {
	UserID           uuid.UUID
	Title            string
	Description      string
	EstimatedMinutes int
	Priority         int
	Tag              string
	IsAutoSchedule   bool
	StartTime        *time.Time
	EndTime          *time.Time
}

// TaskResult pairs a task with the notifications its decision produced,
// in emission order.
type TaskResult struct {
	Task          *domain.Task
	Notifications []notifDomain.Notification
}

// CreateTaskHandler persists a task, running the decision engine first
// when the submission asks to be placed. A refusal writes nothing.
type CreateTaskHandler struct {
	users      identityDomain.UserRepository
	tasks      domain.TaskRepository
	items      domain.ScheduleItemRepository
	engine     *services.Engine
	cascade    *services.Cascade
	dispatcher *notifApp.Dispatcher
	outbox     outbox.Repository
	uow        application.UnitOfWork
	locks      *userlock.Map
	logger     *slog.Logger
	now        func() time.Time
}

func NewCreateTaskHandler(
	users identityDomain.UserRepository,
	tasks domain.TaskRepository,
	items domain.ScheduleItemRepository,
	engine *services.Engine,
	cascade *services.Cascade,
	dispatcher *notifApp.Dispatcher,
	outboxRepo outbox.Repository,
	uow application.UnitOfWork,
	locks *userlock.Map,
	logger *slog.Logger,
) *CreateTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateTaskHandler{
		users:      users,
		tasks:      tasks,
		items:      items,
		engine:     engine,
		cascade:    cascade,
		dispatcher: dispatcher,
		outbox:     outboxRepo,
		uow:        uow,
		locks:      locks,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the handler's clock, for tests.
func (h *CreateTaskHandler) WithClock(now func() time.Time) *CreateTaskHandler {
	h.now = now
	return h
}

func (h *CreateTaskHandler) Handle(ctx context.Context, cmd CreateTaskCommand) (*TaskResult, error) {
	tag, err := domain.ParseTag(cmd.Tag)
	if err != nil {
		return nil, err
	}

	var result *TaskResult
	err = h.locks.WithLock(cmd.UserID, func() error {
		user, err := h.users.FindByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		task, err := domain.NewTask(cmd.UserID, cmd.Title, cmd.Description, cmd.EstimatedMinutes, cmd.Priority, tag, cmd.IsAutoSchedule, cmd.StartTime, cmd.EndTime)
		if err != nil {
			return err
		}

		result, err = h.create(ctx, user, task)
		return err
	})
	if err != nil {
		return result, err
	}

	h.logger.Info("task created",
		"task_id", result.Task.ID(),
		"user_id", cmd.UserID,
		"auto_schedule", cmd.IsAutoSchedule,
	)
	return result, nil
}

func (h *CreateTaskHandler) create(ctx context.Context, user *identityDomain.User, task *domain.Task) (*TaskResult, error) {
	loc := user.Location()
	now := h.now().In(loc)
	collector := notifApp.NewCollector()
	engineScheduled := false

	if domain.NeedsInitialScheduling(task, loc) {
		if deadline := task.Deadline(); deadline != nil && deadline.Before(now.Add(task.Duration())) {
			return nil, domain.ErrDeadlineInfeasible
		}

		placement, err := h.engine.FindOptimalSlot(ctx, task, user, nil, true)
		if err != nil {
			return nil, err
		}
		if placement == nil {
			// Refusal: nothing is persisted, the notification is the
			// whole outcome.
			collector.Add(notifDomain.NewNoOptimalTime(taskRef(task)))
			return &TaskResult{Notifications: collector.Items()}, domain.ErrNoOptimalSlot
		}
		task.Place(placement.Start)
		engineScheduled = true
		if placement.Slot.InLateWindDown {
			collector.Add(notifDomain.NewLateWindDownConflict(taskRef(task), placement.Start))
		}
	} else if task.IsPlaced(loc) {
		if err := h.checkImmovableCollision(ctx, user, task, collector); err != nil {
			return &TaskResult{Notifications: collector.Items()}, err
		}
	}

	err := application.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := h.tasks.Save(txCtx, task); err != nil {
			return err
		}

		var mirror *domain.ScheduleItem
		if task.IsPlaced(loc) {
			var err error
			mirror, err = domain.NewTaskItem(task)
			if err != nil {
				return err
			}
			if err := h.items.Save(txCtx, mirror); err != nil {
				return err
			}
		}

		if engineScheduled {
			msg, err := outbox.NewMessage(domain.NewTaskScheduled(task))
			if err != nil {
				return err
			}
			if err := h.outbox.Save(txCtx, msg); err != nil {
				return err
			}
			if err := h.cascade.RunForTask(txCtx, user, task, collector); err != nil {
				return err
			}
		} else if mirror != nil {
			// A pinned task is immovable: overlapping auto tasks have
			// to make way for it.
			if err := h.cascade.RunForImmovable(txCtx, user, mirror, collector); err != nil {
				return err
			}
		}

		return h.dispatcher.Dispatch(txCtx, collector)
	})
	if err != nil {
		return nil, err
	}

	return &TaskResult{Task: task, Notifications: collector.Items()}, nil
}

// checkImmovableCollision refuses a pinned placement that lands on an
// event (widened by the buffer) or on another pinned task.
func (h *CreateTaskHandler) checkImmovableCollision(ctx context.Context, user *identityDomain.User, task *domain.Task, collector *notifApp.Collector) error {
	start, end := task.StartTime(), task.EndTime()
	items, err := h.items.ListByUserInRange(ctx, user.ID(), start.Add(-domain.EventBuffer), end.Add(domain.EventBuffer))
	if err != nil {
		return err
	}

	var conflicting []notifDomain.ConflictingItem
	immovableEvent := false
	for _, item := range items {
		if !item.ConflictsWith(*start, *end) {
			continue
		}
		if item.Type() == domain.ItemTypeEvent {
			immovableEvent = true
			conflicting = append(conflicting, conflictingItem(item))
			continue
		}
		backing := item.TaskID()
		if backing == nil {
			continue
		}
		existing, err := h.tasks.FindByID(ctx, *backing)
		if err != nil {
			continue
		}
		if !existing.IsDisplaceable() {
			conflicting = append(conflicting, conflictingItem(item))
		}
	}

	if len(conflicting) == 0 {
		return nil
	}
	if immovableEvent {
		collector.Add(notifDomain.NewEventConflict(user.ID(), task.Title(), conflicting))
	} else {
		collector.Add(notifDomain.NewManualTaskConflict(taskRef(task), conflicting))
	}
	return domain.ErrImmovableConflict
}

func taskRef(task *domain.Task) notifDomain.TaskRef {
	return notifDomain.TaskRef{
		ID:       task.ID(),
		UserID:   task.UserID(),
		Title:    task.Title(),
		Tag:      string(task.Tag()),
		Priority: task.Priority(),
		Deadline: task.Deadline(),
	}
}

func conflictingItem(item *domain.ScheduleItem) notifDomain.ConflictingItem {
	return notifDomain.ConflictingItem{
		ItemID:    item.ID(),
		Title:     item.Title(),
		StartTime: item.StartTime(),
		EndTime:   item.EndTime(),
	}
}
