package commands

import (
	"context"
	"errors"
	"log/slog"

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

// RescheduleTaskCommand forces a fresh engine run for one task.
type RescheduleTaskCommand struct {
	UserID uuid.UUID
	TaskID uuid.UUID
}

// RescheduleTaskHandler re-places a task on demand. When the engine
// comes back empty the task is left untouched and the caller gets a
// recoverable refusal.
type RescheduleTaskHandler struct {
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
}

func NewRescheduleTaskHandler(
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
) *RescheduleTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RescheduleTaskHandler{
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
	}
}

func (h *RescheduleTaskHandler) Handle(ctx context.Context, cmd RescheduleTaskCommand) (*TaskResult, error) {
	var result *TaskResult
	err := h.locks.WithLock(cmd.UserID, func() error {
		user, err := h.users.FindByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		task, err := h.tasks.FindByID(ctx, cmd.TaskID)
		if err != nil {
			return err
		}
		if task.UserID() != cmd.UserID {
			return domain.ErrTaskNotFound
		}
		if task.Status() != domain.StatusPending {
			return domain.ErrTaskCompleted
		}

		result, err = h.reschedule(ctx, user, task)
		return err
	})
	return result, err
}

func (h *RescheduleTaskHandler) reschedule(ctx context.Context, user *identityDomain.User, task *domain.Task) (*TaskResult, error) {
	placement, err := h.engine.FindOptimalSlot(ctx, task, user, []uuid.UUID{task.ID()}, true)
	if err != nil {
		return nil, err
	}
	if placement == nil {
		return nil, domain.ErrNoOptimalSlot
	}

	collector := notifApp.NewCollector()
	oldStart := task.StartTime()
	task.Place(placement.Start)
	collector.Add(notifDomain.NewTaskRescheduled(taskRef(task), oldStart, placement.Start))
	if placement.Slot.InLateWindDown {
		collector.Add(notifDomain.NewLateWindDownConflict(taskRef(task), placement.Start))
	}

	err = application.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := h.tasks.Save(txCtx, task); err != nil {
			return err
		}
		if err := h.syncMirrorForPlaced(txCtx, task); err != nil {
			return err
		}

		eventOld := placement.Start
		if oldStart != nil {
			eventOld = *oldStart
		}
		msg, err := outbox.NewMessage(domain.NewTaskRescheduledEvent(task, eventOld, placement.Start))
		if err != nil {
			return err
		}
		if err := h.outbox.Save(txCtx, msg); err != nil {
			return err
		}

		if err := h.cascade.RunForTask(txCtx, user, task, collector); err != nil {
			return err
		}
		return h.dispatcher.Dispatch(txCtx, collector)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("task rescheduled", "task_id", task.ID(), "start", placement.Start)
	return &TaskResult{Task: task, Notifications: collector.Items()}, nil
}

func (h *RescheduleTaskHandler) syncMirrorForPlaced(ctx context.Context, task *domain.Task) error {
	mirror, err := h.items.FindByTaskID(ctx, task.ID())
	if errors.Is(err, domain.ErrItemNotFound) {
		created, err := domain.NewTaskItem(task)
		if err != nil {
			return err
		}
		return h.items.Save(ctx, created)
	}
	if err != nil {
		return err
	}
	if err := mirror.Reschedule(*task.StartTime(), *task.EndTime()); err != nil {
		return err
	}
	return h.items.Save(ctx, mirror)
}
