package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/voltahq/volta/internal/scheduling/domain"
)

// Reconciler repairs the task/mirror invariant at startup: every placed
// pending auto-scheduled task owns exactly one task-type schedule item
// with the same times, and no task item outlives its task.
type Reconciler struct {
	tasks  domain.TaskRepository
	items  domain.ScheduleItemRepository
	logger *slog.Logger
}

func NewReconciler(tasks domain.TaskRepository, items domain.ScheduleItemRepository, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{tasks: tasks, items: items, logger: logger}
}

// Run performs one full sweep and returns how many rows were repaired.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	repaired := 0

	placed, err := r.tasks.ListPlacedPendingAuto(ctx)
	if err != nil {
		return 0, err
	}
	for _, task := range placed {
		n, err := r.repairMirror(ctx, task)
		if err != nil {
			return repaired, err
		}
		repaired += n
	}

	orphans, err := r.items.ListOrphanedTaskItems(ctx)
	if err != nil {
		return repaired, err
	}
	for _, item := range orphans {
		if err := r.items.Delete(ctx, item.ID()); err != nil {
			return repaired, err
		}
		r.logger.Warn("deleted orphaned schedule item", "item_id", item.ID(), "title", item.Title())
		repaired++
	}

	r.logger.Info("reconciliation sweep complete", "repaired", repaired)
	return repaired, nil
}

func (r *Reconciler) repairMirror(ctx context.Context, task *domain.Task) (int, error) {
	mirror, err := r.items.FindByTaskID(ctx, task.ID())
	if errors.Is(err, domain.ErrItemNotFound) {
		item, err := domain.NewTaskItem(task)
		if err != nil {
			return 0, err
		}
		if err := r.items.Save(ctx, item); err != nil {
			return 0, err
		}
		r.logger.Warn("recreated missing mirror item", "task_id", task.ID())
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	start, end := task.StartTime(), task.EndTime()
	if start == nil || end == nil {
		return 0, nil
	}
	if mirror.StartTime().Equal(*start) && mirror.EndTime().Equal(*end) {
		return 0, nil
	}
	if err := mirror.Reschedule(*start, *end); err != nil {
		return 0, err
	}
	if err := r.items.Save(ctx, mirror); err != nil {
		return 0, err
	}
	r.logger.Warn("realigned mirror item times", "task_id", task.ID())
	return 1, nil
}
