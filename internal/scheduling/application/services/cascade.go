package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	identityDomain "github.com/voltahq/volta/internal/identity/domain"
	notifApp "github.com/voltahq/volta/internal/notifications/application"
	notifDomain "github.com/voltahq/volta/internal/notifications/domain"
	"github.com/voltahq/volta/internal/scheduling/domain"
	"github.com/voltahq/volta/internal/shared/infrastructure/outbox"
)

// Cascade handles displacement after a placement lands on occupied time.
// It evaluates only the direct conflicts of the originating placement:
// a re-placed task may not displace anything further.
type Cascade struct {
	engine *Engine
	tasks  domain.TaskRepository
	items  domain.ScheduleItemRepository
	outbox outbox.Repository
	logger *slog.Logger
}

func NewCascade(engine *Engine, tasks domain.TaskRepository, items domain.ScheduleItemRepository, outboxRepo outbox.Repository, logger *slog.Logger) *Cascade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cascade{engine: engine, tasks: tasks, items: items, outbox: outboxRepo, logger: logger}
}

// RunForTask resolves conflicts created by placing origin at its current
// interval. Runs inside the caller's transaction.
func (c *Cascade) RunForTask(ctx context.Context, user *identityDomain.User, origin *domain.Task, collector *notifApp.Collector) error {
	start, end := origin.StartTime(), origin.EndTime()
	if start == nil || end == nil {
		return nil
	}

	originID := origin.ID()
	conflicts, err := c.overlappingTaskItems(ctx, user.ID(), *start, *end, &originID)
	if err != nil {
		return err
	}

	var unresolved []notifDomain.ConflictingItem
	for _, item := range conflicts {
		existing, err := c.tasks.FindByID(ctx, *item.TaskID())
		if err != nil {
			if errors.Is(err, domain.ErrTaskNotFound) {
				continue
			}
			return err
		}
		if !existing.IsDisplaceable() || !domain.Displaces(origin, existing) {
			unresolved = append(unresolved, conflictingItem(item))
			continue
		}

		moved, err := c.replace(ctx, user, existing, item, []uuid.UUID{existing.ID()}, taskRef(origin), collector)
		if err != nil {
			return err
		}
		if !moved {
			unresolved = append(unresolved, conflictingItem(item))
		}
	}

	c.reportUnresolved(origin, unresolved, collector)
	return nil
}

// RunForImmovable moves auto-scheduled tasks out of the way of an
// immovable placement: a new calendar event (interval widened by the
// buffer) or a manually pinned task (verbatim interval). Tasks that
// cannot be re-placed stay put flagged for attention; the caller is told
// via a conflict digest.
func (c *Cascade) RunForImmovable(ctx context.Context, user *identityDomain.User, immovable *domain.ScheduleItem, collector *notifApp.Collector) error {
	widenedStart, widenedEnd := immovable.ConflictInterval()

	conflicts, err := c.overlappingTaskItems(ctx, user.ID(), widenedStart, widenedEnd, immovable.TaskID())
	if err != nil {
		return err
	}

	displacer := notifDomain.TaskRef{ID: immovable.ID(), UserID: user.ID(), Title: immovable.Title()}
	if taskID := immovable.TaskID(); taskID != nil {
		displacer.ID = *taskID
	}

	var failed []notifDomain.ConflictingItem
	for _, item := range conflicts {
		existing, err := c.tasks.FindByID(ctx, *item.TaskID())
		if err != nil {
			if errors.Is(err, domain.ErrTaskNotFound) {
				continue
			}
			return err
		}
		if !existing.IsDisplaceable() {
			continue
		}

		moved, err := c.replace(ctx, user, existing, item, []uuid.UUID{existing.ID()}, displacer, collector)
		if err != nil {
			return err
		}
		if !moved {
			failed = append(failed, conflictingItem(item))
		}
	}

	if len(failed) > 0 {
		collector.Add(notifDomain.NewEventConflict(user.ID(), immovable.Title(), failed))
	}
	return nil
}

// replace searches a new slot for a displaced task. Displacement never
// chains, so the search runs with displacement disabled. Returns whether
// the task was moved; on failure the task keeps its slot and is flagged.
// Either way the evicted task's owner hears about the bump.
func (c *Cascade) replace(
	ctx context.Context,
	user *identityDomain.User,
	existing *domain.Task,
	mirror *domain.ScheduleItem,
	exclude []uuid.UUID,
	displacedBy notifDomain.TaskRef,
	collector *notifApp.Collector,
) (bool, error) {
	oldStart := existing.StartTime()
	var eventOld time.Time
	if oldStart != nil {
		eventOld = *oldStart
	}

	placement, err := c.engine.FindOptimalSlot(ctx, existing, user, exclude, false)
	if err != nil {
		return false, err
	}

	if placement == nil {
		existing.MarkNeedsAttention()
		if err := c.tasks.Save(ctx, existing); err != nil {
			return false, err
		}
		collector.Add(notifDomain.NewTaskDisplaced(taskRef(existing), displacedBy, eventOld, nil))
		return false, nil
	}

	existing.Place(placement.Start)
	if err := c.tasks.Save(ctx, existing); err != nil {
		return false, err
	}
	if err := mirror.Reschedule(placement.Start, placement.End); err != nil {
		return false, err
	}
	if err := c.items.Save(ctx, mirror); err != nil {
		return false, err
	}

	collector.Add(notifDomain.NewTaskDisplaced(taskRef(existing), displacedBy, eventOld, &placement.Start))
	if placement.Slot.InLateWindDown {
		collector.Add(notifDomain.NewLateWindDownConflict(taskRef(existing), placement.Start))
	}

	msg, err := outbox.NewMessage(domain.NewTaskRescheduledEvent(existing, eventOld, placement.Start))
	if err != nil {
		return false, err
	}
	if err := c.outbox.Save(ctx, msg); err != nil {
		return false, err
	}

	c.logger.Info("task displaced and re-placed",
		"task_id", existing.ID(),
		"new_start", placement.Start,
	)
	return true, nil
}

func (c *Cascade) overlappingTaskItems(ctx context.Context, userID uuid.UUID, start, end time.Time, excludeTaskID *uuid.UUID) ([]*domain.ScheduleItem, error) {
	items, err := c.items.ListByUserInRange(ctx, userID, start.Add(-domain.EventBuffer), end.Add(domain.EventBuffer))
	if err != nil {
		return nil, err
	}
	var conflicts []*domain.ScheduleItem
	for _, item := range items {
		if item.Type() != domain.ItemTypeTask || item.TaskID() == nil {
			continue
		}
		if excludeTaskID != nil && *item.TaskID() == *excludeTaskID {
			continue
		}
		if item.Overlaps(start, end) {
			conflicts = append(conflicts, item)
		}
	}
	return conflicts, nil
}

func (c *Cascade) reportUnresolved(origin *domain.Task, unresolved []notifDomain.ConflictingItem, collector *notifApp.Collector) {
	switch len(unresolved) {
	case 0:
	case 1:
		collector.Add(notifDomain.NewManualTaskConflict(taskRef(origin), unresolved))
	default:
		collector.Add(notifDomain.NewMultipleConflicts(origin.UserID(), unresolved))
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

// taskRef projects a task into the slice notifications need.
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
