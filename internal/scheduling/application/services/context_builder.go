// Package services holds the scheduling decision machinery: context
// building, the slot pipeline, the decision engine and the displacement
// cascade.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	energyServices "github.com/voltahq/volta/internal/energy/application/services"
	identityDomain "github.com/voltahq/volta/internal/identity/domain"
	"github.com/voltahq/volta/internal/scheduling/domain"
)

// SchedulingContext is the immutable snapshot one decision works on: the
// day's calendar, the displaceable tasks behind its items, and the
// energy provider for the target date. Built once per engine day.
type SchedulingContext struct {
	User      *identityDomain.User
	Day       time.Time // local midnight of the target date
	Strategy  domain.Strategy
	Now       time.Time
	Items     []*domain.ScheduleItem
	TasksByID map[uuid.UUID]*domain.Task
	Energy    energyServices.EnergyProvider
}

// ContextBuilder assembles scheduling contexts.
type ContextBuilder struct {
	tasks     domain.TaskRepository
	items     domain.ScheduleItemRepository
	substrate *energyServices.Substrate
	now       func() time.Time
}

func NewContextBuilder(tasks domain.TaskRepository, items domain.ScheduleItemRepository, substrate *energyServices.Substrate) *ContextBuilder {
	return &ContextBuilder{tasks: tasks, items: items, substrate: substrate, now: time.Now}
}

// WithClock overrides the builder's clock, for tests.
func (b *ContextBuilder) WithClock(now func() time.Time) *ContextBuilder {
	b.now = now
	return b
}

// Build snapshots one day for one user. Items backed by a task in
// excludeTaskIDs are left out so a task being re-placed does not
// collide with its own vacated slot.
func (b *ContextBuilder) Build(ctx context.Context, user *identityDomain.User, day time.Time, excludeTaskIDs []uuid.UUID) (*SchedulingContext, error) {
	now := b.now().In(user.Location())
	strategy := domain.DetermineStrategy(day, now)

	// A slot may start late in the day and run long, so the snapshot
	// reaches past midnight by the longest allowed duration plus the
	// event buffer.
	from := day.Add(-domain.EventBuffer)
	to := day.AddDate(0, 0, 1).Add(time.Duration(domain.MaxDurationMinutes)*time.Minute + domain.EventBuffer)

	items, err := b.items.ListByUserInRange(ctx, user.ID(), from, to)
	if err != nil {
		return nil, err
	}

	excluded := make(map[uuid.UUID]bool, len(excludeTaskIDs))
	for _, id := range excludeTaskIDs {
		excluded[id] = true
	}
	kept := items[:0]
	for _, item := range items {
		if taskID := item.TaskID(); taskID != nil && excluded[*taskID] {
			continue
		}
		kept = append(kept, item)
	}

	// Only pending auto-scheduled tasks are ever displaceable, so they
	// are the only backing tasks the pipeline needs to inspect.
	pendingAuto, err := b.tasks.ListPendingAuto(ctx, user.ID())
	if err != nil {
		return nil, err
	}
	tasksByID := make(map[uuid.UUID]*domain.Task, len(pendingAuto))
	for _, t := range pendingAuto {
		tasksByID[t.ID()] = t
	}

	return &SchedulingContext{
		User:      user,
		Day:       day,
		Strategy:  strategy,
		Now:       now,
		Items:     kept,
		TasksByID: tasksByID,
		Energy:    b.substrate.ProviderFor(ctx, user, day, strategy == domain.StrategyToday),
	}, nil
}
