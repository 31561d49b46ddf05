package commands

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/scheduling/domain"
	"github.com/voltahq/volta/internal/shared/application"
	"github.com/voltahq/volta/internal/shared/infrastructure/outbox"
	"github.com/voltahq/volta/internal/shared/infrastructure/userlock"
)

// DeleteTaskCommand removes a task and its mirror schedule item.
type DeleteTaskCommand struct {
	UserID uuid.UUID
	TaskID uuid.UUID
}

type DeleteTaskHandler struct {
	tasks  domain.TaskRepository
	items  domain.ScheduleItemRepository
	outbox outbox.Repository
	uow    application.UnitOfWork
	locks  *userlock.Map
	logger *slog.Logger
}

func NewDeleteTaskHandler(
	tasks domain.TaskRepository,
	items domain.ScheduleItemRepository,
	outboxRepo outbox.Repository,
	uow application.UnitOfWork,
	locks *userlock.Map,
	logger *slog.Logger,
) *DeleteTaskHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeleteTaskHandler{tasks: tasks, items: items, outbox: outboxRepo, uow: uow, locks: locks, logger: logger}
}

func (h *DeleteTaskHandler) Handle(ctx context.Context, cmd DeleteTaskCommand) error {
	err := h.locks.WithLock(cmd.UserID, func() error {
		task, err := h.tasks.FindByID(ctx, cmd.TaskID)
		if err != nil {
			return err
		}
		if task.UserID() != cmd.UserID {
			return domain.ErrTaskNotFound
		}

		return application.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
			if err := h.items.DeleteByTaskID(txCtx, task.ID()); err != nil {
				return err
			}
			if err := h.tasks.Delete(txCtx, task.ID()); err != nil {
				return err
			}
			msg, err := outbox.NewMessage(domain.NewTaskDeletedEvent(task))
			if err != nil {
				return err
			}
			return h.outbox.Save(txCtx, msg)
		})
	})
	if err != nil {
		return err
	}

	h.logger.Info("task deleted", "task_id", cmd.TaskID, "user_id", cmd.UserID)
	return nil
}
