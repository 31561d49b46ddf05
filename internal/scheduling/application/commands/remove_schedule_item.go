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
	"github.com/voltahq/volta/internal/shared/infrastructure/userlock"
)

// RemoveScheduleItemCommand deletes a calendar item. Removing an event
// frees time, so every pending auto task gets another engine run.
type RemoveScheduleItemCommand struct {
	UserID uuid.UUID
	ItemID uuid.UUID
}

type RemoveScheduleItemHandler struct {
	users      identityDomain.UserRepository
	tasks      domain.TaskRepository
	items      domain.ScheduleItemRepository
	engine     *services.Engine
	dispatcher *notifApp.Dispatcher
	uow        application.UnitOfWork
	locks      *userlock.Map
	logger     *slog.Logger
}

func NewRemoveScheduleItemHandler(
	users identityDomain.UserRepository,
	tasks domain.TaskRepository,
	items domain.ScheduleItemRepository,
	engine *services.Engine,
	dispatcher *notifApp.Dispatcher,
	uow application.UnitOfWork,
	locks *userlock.Map,
	logger *slog.Logger,
) *RemoveScheduleItemHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoveScheduleItemHandler{
		users:      users,
		tasks:      tasks,
		items:      items,
		engine:     engine,
		dispatcher: dispatcher,
		uow:        uow,
		locks:      locks,
		logger:     logger,
	}
}

func (h *RemoveScheduleItemHandler) Handle(ctx context.Context, cmd RemoveScheduleItemCommand) ([]notifDomain.Notification, error) {
	var notifications []notifDomain.Notification
	err := h.locks.WithLock(cmd.UserID, func() error {
		user, err := h.users.FindByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		item, err := h.items.FindByID(ctx, cmd.ItemID)
		if err != nil {
			return err
		}
		if item.UserID() != cmd.UserID {
			return domain.ErrItemNotFound
		}

		collector := notifApp.NewCollector()
		err = application.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
			if err := h.items.Delete(txCtx, item.ID()); err != nil {
				return err
			}
			if item.Type() == domain.ItemTypeEvent {
				if err := h.rebalance(txCtx, user, collector); err != nil {
					return err
				}
			}
			return h.dispatcher.Dispatch(txCtx, collector)
		})
		if err != nil {
			return err
		}
		notifications = collector.Items()
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("schedule item removed", "item_id", cmd.ItemID, "user_id", cmd.UserID)
	return notifications, nil
}

// rebalance re-runs the engine for every pending auto task after an
// event removal. Stranded tasks (unplaced or flagged for attention) take
// any slot the engine offers; already-placed tasks move only when the
// freed time yields strictly better energy than their current hour.
func (h *RemoveScheduleItemHandler) rebalance(ctx context.Context, user *identityDomain.User, collector *notifApp.Collector) error {
	loc := user.Location()
	pending, err := h.tasks.ListPendingAuto(ctx, user.ID())
	if err != nil {
		return err
	}

	for _, task := range pending {
		placement, err := h.engine.FindOptimalSlot(ctx, task, user, []uuid.UUID{task.ID()}, false)
		if err != nil {
			return err
		}
		if placement == nil {
			continue
		}

		if task.IsPlaced(loc) && !task.NeedsAttention() {
			if placement.Start.Equal(*task.StartTime()) {
				continue
			}
			current, ok, err := h.engine.CurrentEnergy(ctx, task, user)
			if err != nil {
				return err
			}
			if ok && placement.Slot.EnergyLevel <= current {
				continue
			}
		}

		oldStart := task.StartTime()
		task.Place(placement.Start)
		if err := h.tasks.Save(ctx, task); err != nil {
			return err
		}
		if err := h.syncMirror(ctx, task); err != nil {
			return err
		}
		collector.Add(notifDomain.NewTaskRescheduled(taskRef(task), oldStart, placement.Start))
		if placement.Slot.InLateWindDown {
			collector.Add(notifDomain.NewLateWindDownConflict(taskRef(task), placement.Start))
		}
	}
	return nil
}

func (h *RemoveScheduleItemHandler) syncMirror(ctx context.Context, task *domain.Task) error {
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
