package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	energyServices "github.com/voltahq/volta/internal/energy/application/services"
	identity "github.com/voltahq/volta/internal/identity/domain"
	notifApp "github.com/voltahq/volta/internal/notifications/application"
	notifDomain "github.com/voltahq/volta/internal/notifications/domain"
	"github.com/voltahq/volta/internal/scheduling/domain"
)

type cascadeHarness struct {
	user      *identity.User
	day       time.Time
	tasks     *fakeTaskRepo
	items     *fakeItemRepo
	outbox    *fakeOutbox
	cascade   *Cascade
	collector *notifApp.Collector
}

// newCascadeHarness wires a cascade over fakes with today's forecast
// peaking at 10:00 (0.9) and offering a fallback slot at 14:00 (0.8).
func newCascadeHarness(t *testing.T, extraLevels map[int]float64) *cascadeHarness {
	t.Helper()
	user := schedulingUser(t)
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	now := day.Add(8 * time.Hour)

	levels := map[int]float64{10: 0.9}
	for hour, level := range extraLevels {
		levels[hour] = level
	}

	tasks := newFakeTaskRepo()
	items := newFakeItemRepo()
	outboxRepo := &fakeOutbox{}
	substrate := energyServices.NewSubstrate(
		&stubSamples{samples: forecastFor(t, user.ID(), day, levels)},
		&stubPatterns{},
		nil,
		slog.Default(),
	)
	engine := testEngine(tasks, items, substrate, now)

	return &cascadeHarness{
		user:      user,
		day:       day,
		tasks:     tasks,
		items:     items,
		outbox:    outboxRepo,
		cascade:   NewCascade(engine, tasks, items, outboxRepo, slog.Default()),
		collector: notifApp.NewCollector(),
	}
}

// placedTask creates a pending auto task placed at the given hour, with
// its mirror saved, the way the create flow leaves them.
func (h *cascadeHarness) placedTask(t *testing.T, title string, priority, hour int) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(h.user.ID(), title, "", 60, priority, domain.TagDeep, true, nil, nil)
	require.NoError(t, err)
	task.Place(h.day.Add(time.Duration(hour) * time.Hour))
	require.NoError(t, h.tasks.Save(context.Background(), task))
	mirror, err := domain.NewTaskItem(task)
	require.NoError(t, err)
	require.NoError(t, h.items.Save(context.Background(), mirror))
	return task
}

func notificationTypes(c *notifApp.Collector) []notifDomain.Type {
	types := make([]notifDomain.Type, 0, len(c.Items()))
	for _, n := range c.Items() {
		types = append(types, n.Type)
	}
	return types
}

func TestCascade_ReplacesDisplacedTask(t *testing.T) {
	h := newCascadeHarness(t, map[int]float64{14: 0.8})
	ctx := context.Background()

	existing := h.placedTask(t, "tidy backlog", 2, 10)
	origin := h.placedTask(t, "prep board deck", 4, 10)

	require.NoError(t, h.cascade.RunForTask(ctx, h.user, origin, h.collector))

	// The incumbent moved to the next-best slot; the winner stayed put.
	moved, err := h.tasks.FindByID(ctx, existing.ID())
	require.NoError(t, err)
	require.NotNil(t, moved.StartTime())
	assert.Equal(t, h.day.Add(14*time.Hour), *moved.StartTime())

	mirror, err := h.items.FindByTaskID(ctx, existing.ID())
	require.NoError(t, err)
	assert.Equal(t, h.day.Add(14*time.Hour), mirror.StartTime())

	require.Equal(t, []notifDomain.Type{notifDomain.TypeTaskDisplaced}, notificationTypes(h.collector))
	bumped := h.collector.Items()[0]
	require.NotNil(t, bumped.Metadata.DisplacedByID)
	assert.Equal(t, origin.ID(), *bumped.Metadata.DisplacedByID)
	assert.Equal(t, "prep board deck", bumped.Metadata.DisplacedByTitle)
	require.NotNil(t, bumped.Metadata.NewStartTime)
	assert.Equal(t, h.day.Add(14*time.Hour), *bumped.Metadata.NewStartTime)
	assert.Len(t, h.outbox.msgs, 1)
}

func TestCascade_LowerPriorityCannotDisplace(t *testing.T) {
	h := newCascadeHarness(t, map[int]float64{14: 0.8})
	ctx := context.Background()

	existing := h.placedTask(t, "prep board deck", 4, 10)
	origin := h.placedTask(t, "tidy backlog", 2, 10)

	require.NoError(t, h.cascade.RunForTask(ctx, h.user, origin, h.collector))

	// The incumbent holds its slot and the caller hears about it.
	kept, err := h.tasks.FindByID(ctx, existing.ID())
	require.NoError(t, err)
	assert.Equal(t, h.day.Add(10*time.Hour), *kept.StartTime())
	assert.Equal(t, []notifDomain.Type{notifDomain.TypeManualTaskConflict}, notificationTypes(h.collector))
	assert.Empty(t, h.outbox.msgs)
}

func TestCascade_DisplacementNeverChains(t *testing.T) {
	// The fallback slot at 14:00 is already held by a lower-priority
	// task. The displaced incumbent may not push it out in turn.
	h := newCascadeHarness(t, map[int]float64{14: 0.8})
	ctx := context.Background()

	bystander := h.placedTask(t, "water plants", 1, 14)
	existing := h.placedTask(t, "tidy backlog", 2, 10)
	origin := h.placedTask(t, "prep board deck", 4, 10)

	require.NoError(t, h.cascade.RunForTask(ctx, h.user, origin, h.collector))

	// With 10:00 and 14:00 both taken the incumbent has nowhere to go:
	// it keeps its slot, flagged for attention.
	kept, err := h.tasks.FindByID(ctx, existing.ID())
	require.NoError(t, err)
	assert.Equal(t, h.day.Add(10*time.Hour), *kept.StartTime())
	assert.True(t, kept.NeedsAttention())

	untouched, err := h.tasks.FindByID(ctx, bystander.ID())
	require.NoError(t, err)
	assert.Equal(t, h.day.Add(14*time.Hour), *untouched.StartTime())

	types := notificationTypes(h.collector)
	assert.Contains(t, types, notifDomain.TypeTaskDisplaced)
	assert.Contains(t, types, notifDomain.TypeManualTaskConflict)
}

func TestCascade_RunForImmovableMovesAutoTasks(t *testing.T) {
	h := newCascadeHarness(t, map[int]float64{14: 0.8})
	ctx := context.Background()

	existing := h.placedTask(t, "tidy backlog", 2, 10)

	event, err := domain.NewEvent(h.user.ID(), "dentist", h.day.Add(10*time.Hour+30*time.Minute), h.day.Add(11*time.Hour+30*time.Minute))
	require.NoError(t, err)
	require.NoError(t, h.items.Save(ctx, event))

	require.NoError(t, h.cascade.RunForImmovable(ctx, h.user, event, h.collector))

	moved, err := h.tasks.FindByID(ctx, existing.ID())
	require.NoError(t, err)
	assert.Equal(t, h.day.Add(14*time.Hour), *moved.StartTime())
	assert.Equal(t, []notifDomain.Type{notifDomain.TypeTaskDisplaced}, notificationTypes(h.collector))
}

func TestCascade_RunForImmovableReportsUnplaceable(t *testing.T) {
	// No fallback slot anywhere: the conflicting task stays put, flagged,
	// and the event's creator gets a conflict digest.
	h := newCascadeHarness(t, nil)
	ctx := context.Background()

	existing := h.placedTask(t, "tidy backlog", 2, 10)

	event, err := domain.NewEvent(h.user.ID(), "dentist", h.day.Add(10*time.Hour+30*time.Minute), h.day.Add(11*time.Hour+30*time.Minute))
	require.NoError(t, err)
	require.NoError(t, h.items.Save(ctx, event))

	require.NoError(t, h.cascade.RunForImmovable(ctx, h.user, event, h.collector))

	stuck, err := h.tasks.FindByID(ctx, existing.ID())
	require.NoError(t, err)
	assert.Equal(t, h.day.Add(10*time.Hour), *stuck.StartTime())
	assert.True(t, stuck.NeedsAttention())

	types := notificationTypes(h.collector)
	assert.Contains(t, types, notifDomain.TypeTaskDisplaced)
	assert.Contains(t, types, notifDomain.TypeEventConflict)
}
