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
	"github.com/voltahq/volta/internal/shared/infrastructure/userlock"
)

// AddScheduleItemCommand places an item directly on the calendar. Events
// trigger the displacement cascade for auto tasks in their way.
type AddScheduleItemCommand struct {
	UserID    uuid.UUID
	Type      string
	Title     string
	StartTime time.Time
	EndTime   time.Time
	TaskID    *uuid.UUID
}

// ItemResult pairs the stored item with any notifications the cascade
// produced.
type ItemResult struct {
	Item          *domain.ScheduleItem
	Notifications []notifDomain.Notification
}

type AddScheduleItemHandler struct {
	users      identityDomain.UserRepository
	tasks      domain.TaskRepository
	items      domain.ScheduleItemRepository
	cascade    *services.Cascade
	dispatcher *notifApp.Dispatcher
	uow        application.UnitOfWork
	locks      *userlock.Map
	logger     *slog.Logger
}

func NewAddScheduleItemHandler(
	users identityDomain.UserRepository,
	tasks domain.TaskRepository,
	items domain.ScheduleItemRepository,
	cascade *services.Cascade,
	dispatcher *notifApp.Dispatcher,
	uow application.UnitOfWork,
	locks *userlock.Map,
	logger *slog.Logger,
) *AddScheduleItemHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AddScheduleItemHandler{
		users:      users,
		tasks:      tasks,
		items:      items,
		cascade:    cascade,
		dispatcher: dispatcher,
		uow:        uow,
		locks:      locks,
		logger:     logger,
	}
}

func (h *AddScheduleItemHandler) Handle(ctx context.Context, cmd AddScheduleItemCommand) (*ItemResult, error) {
	itemType, err := domain.ParseItemType(cmd.Type)
	if err != nil {
		return nil, err
	}

	var result *ItemResult
	err = h.locks.WithLock(cmd.UserID, func() error {
		user, err := h.users.FindByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		var item *domain.ScheduleItem
		collector := notifApp.NewCollector()
		err = application.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
			item, err = h.buildItem(txCtx, cmd, itemType)
			if err != nil {
				return err
			}
			if err := h.items.Save(txCtx, item); err != nil {
				return err
			}
			if itemType == domain.ItemTypeEvent {
				if err := h.cascade.RunForImmovable(txCtx, user, item, collector); err != nil {
					return err
				}
			}
			return h.dispatcher.Dispatch(txCtx, collector)
		})
		if err != nil {
			return err
		}

		result = &ItemResult{Item: item, Notifications: collector.Items()}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("schedule item added",
		"item_id", result.Item.ID(),
		"type", cmd.Type,
		"user_id", cmd.UserID,
	)
	return result, nil
}

func (h *AddScheduleItemHandler) buildItem(ctx context.Context, cmd AddScheduleItemCommand, itemType domain.ItemType) (*domain.ScheduleItem, error) {
	if itemType == domain.ItemTypeEvent {
		return domain.NewEvent(cmd.UserID, cmd.Title, cmd.StartTime, cmd.EndTime)
	}

	if cmd.TaskID == nil {
		return nil, domain.ErrTaskNotFound
	}
	task, err := h.tasks.FindByID(ctx, *cmd.TaskID)
	if err != nil {
		return nil, err
	}
	if task.UserID() != cmd.UserID {
		return nil, domain.ErrTaskNotFound
	}
	task.SetTimes(&cmd.StartTime, &cmd.EndTime)
	if err := h.tasks.Save(ctx, task); err != nil {
		return nil, err
	}
	return domain.NewTaskItem(task)
}
