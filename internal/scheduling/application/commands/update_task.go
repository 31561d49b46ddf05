package commands

import (
	"context"
	"errors"
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

// UpdateTaskCommand patches an existing task.
type UpdateTaskCommand struct {
	UserID uuid.UUID
	TaskID uuid.UUID
	Patch  domain.TaskPatch
}

// UpdateTaskHandler applies a patch and reschedules when the change is
// material. An engine run that comes back empty preserves the previous
// placement and flags the task instead of failing the update.
type UpdateTaskHandler struct {
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

func NewUpdateTaskHandler(
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
) *UpdateTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateTaskHandler{
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

func (h *UpdateTaskHandler) Handle(ctx context.Context, cmd UpdateTaskCommand) (*TaskResult, error) {
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

		result, err = h.update(ctx, user, task, cmd.Patch)
		return err
	})
	return result, err
}

func (h *UpdateTaskHandler) update(ctx context.Context, user *identityDomain.User, task *domain.Task, patch domain.TaskPatch) (*TaskResult, error) {
	loc := user.Location()
	collector := notifApp.NewCollector()
	reschedule := domain.ChangesRequireRescheduling(task, patch, loc) && task.Status() == domain.StatusPending
	completed := false

	if err := applyPatch(task, patch); err != nil {
		return nil, err
	}
	if patch.Status != nil && *patch.Status == domain.StatusCompleted {
		if err := task.Complete(); err != nil {
			return nil, err
		}
		completed = true
		reschedule = false
	}

	var placement *services.Placement
	if reschedule {
		var err error
		placement, err = h.engine.FindOptimalSlot(ctx, task, user, []uuid.UUID{task.ID()}, true)
		if err != nil {
			return nil, err
		}
		if placement == nil {
			task.MarkNeedsAttention()
			collector.Add(notifDomain.NewNoOptimalTime(taskRef(task)))
		} else {
			oldStart := task.StartTime()
			task.Place(placement.Start)
			collector.Add(notifDomain.NewTaskRescheduled(taskRef(task), oldStart, placement.Start))
			if placement.Slot.InLateWindDown {
				collector.Add(notifDomain.NewLateWindDownConflict(taskRef(task), placement.Start))
			}
		}
	}

	err := application.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := h.tasks.Save(txCtx, task); err != nil {
			return err
		}
		if err := h.syncMirror(txCtx, task, loc, completed); err != nil {
			return err
		}

		if completed {
			msg, err := outbox.NewMessage(domain.NewTaskCompletedEvent(task))
			if err != nil {
				return err
			}
			if err := h.outbox.Save(txCtx, msg); err != nil {
				return err
			}
		}

		if placement != nil {
			if err := h.cascade.RunForTask(txCtx, user, task, collector); err != nil {
				return err
			}
		}
		return h.dispatcher.Dispatch(txCtx, collector)
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("task updated", "task_id", task.ID(), "rescheduled", placement != nil)
	return &TaskResult{Task: task, Notifications: collector.Items()}, nil
}

// syncMirror keeps the schedule item aligned with the task: updated on
// placement changes, created when missing, removed on completion.
func (h *UpdateTaskHandler) syncMirror(ctx context.Context, task *domain.Task, loc *time.Location, completed bool) error {
	mirror, err := h.items.FindByTaskID(ctx, task.ID())
	if err != nil && !errors.Is(err, domain.ErrItemNotFound) {
		return err
	}

	if completed || !task.IsPlaced(loc) {
		if mirror != nil {
			return h.items.Delete(ctx, mirror.ID())
		}
		return nil
	}

	start, end := task.StartTime(), task.EndTime()
	if mirror == nil {
		created, err := domain.NewTaskItem(task)
		if err != nil {
			return err
		}
		return h.items.Save(ctx, created)
	}
	if mirror.StartTime().Equal(*start) && mirror.EndTime().Equal(*end) {
		return nil
	}
	if err := mirror.Reschedule(*start, *end); err != nil {
		return err
	}
	return h.items.Save(ctx, mirror)
}

func applyPatch(task *domain.Task, patch domain.TaskPatch) error {
	if patch.Title != nil {
		if err := task.SetTitle(*patch.Title); err != nil {
			return err
		}
	}
	if patch.Description != nil {
		task.SetDescription(*patch.Description)
	}
	if patch.EstimatedMinutes != nil {
		if err := task.SetEstimatedMinutes(*patch.EstimatedMinutes); err != nil {
			return err
		}
	}
	if patch.Priority != nil {
		if err := task.SetPriority(*patch.Priority); err != nil {
			return err
		}
	}
	if patch.Tag != nil {
		task.SetTag(*patch.Tag)
	}
	if patch.IsAutoSchedule != nil {
		task.SetAutoSchedule(*patch.IsAutoSchedule)
	}
	if patch.ClearStartTime {
		task.SetTimes(nil, patch.EndTime)
	} else if patch.StartTime != nil || patch.EndTime != nil {
		start := task.StartTime()
		end := task.EndTime()
		if patch.StartTime != nil {
			start = patch.StartTime
		}
		if patch.EndTime != nil {
			end = patch.EndTime
		}
		task.SetTimes(start, end)
	}
	return nil
}
