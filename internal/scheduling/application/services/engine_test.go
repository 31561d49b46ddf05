package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	energyServices "github.com/voltahq/volta/internal/energy/application/services"
	energyDomain "github.com/voltahq/volta/internal/energy/domain"
	identity "github.com/voltahq/volta/internal/identity/domain"
	"github.com/voltahq/volta/internal/scheduling/domain"
	"github.com/voltahq/volta/internal/shared/infrastructure/outbox"
)

type fakeTaskRepo struct {
	tasks map[uuid.UUID]*domain.Task
	saves int
}

func newFakeTaskRepo(tasks ...*domain.Task) *fakeTaskRepo {
	r := &fakeTaskRepo{tasks: make(map[uuid.UUID]*domain.Task)}
	for _, t := range tasks {
		r.tasks[t.ID()] = t
	}
	return r
}

func (r *fakeTaskRepo) Save(_ context.Context, task *domain.Task) error {
	r.tasks[task.ID()] = task
	r.saves++
	return nil
}

func (r *fakeTaskRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

func (r *fakeTaskRepo) ListByUser(_ context.Context, userID uuid.UUID, _ domain.TaskFilter) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range r.tasks {
		if t.UserID() == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) ListPendingAuto(_ context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range r.tasks {
		if t.UserID() == userID && t.IsDisplaceable() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) ListDueBetween(_ context.Context, from, to time.Time) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range r.tasks {
		if d := t.Deadline(); d != nil && t.Status() == domain.StatusPending && !d.Before(from) && d.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) ListPlacedPendingAuto(_ context.Context) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range r.tasks {
		if t.IsDisplaceable() && t.StartTime() != nil && t.EndTime() != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTaskRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

type fakeItemRepo struct {
	items map[uuid.UUID]*domain.ScheduleItem
}

func newFakeItemRepo(items ...*domain.ScheduleItem) *fakeItemRepo {
	r := &fakeItemRepo{items: make(map[uuid.UUID]*domain.ScheduleItem)}
	for _, i := range items {
		r.items[i.ID()] = i
	}
	return r
}

func (r *fakeItemRepo) Save(_ context.Context, item *domain.ScheduleItem) error {
	r.items[item.ID()] = item
	return nil
}

func (r *fakeItemRepo) FindByID(_ context.Context, id uuid.UUID) (*domain.ScheduleItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

func (r *fakeItemRepo) FindByTaskID(_ context.Context, taskID uuid.UUID) (*domain.ScheduleItem, error) {
	for _, i := range r.items {
		if tid := i.TaskID(); tid != nil && *tid == taskID {
			return i, nil
		}
	}
	return nil, domain.ErrItemNotFound
}

func (r *fakeItemRepo) ListByUser(_ context.Context, userID uuid.UUID, _ domain.ItemFilter) ([]*domain.ScheduleItem, error) {
	var out []*domain.ScheduleItem
	for _, i := range r.items {
		if i.UserID() == userID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *fakeItemRepo) ListByUserInRange(_ context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.ScheduleItem, error) {
	var out []*domain.ScheduleItem
	for _, i := range r.items {
		if i.UserID() == userID && i.Overlaps(from, to) {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *fakeItemRepo) ListOrphanedTaskItems(context.Context) ([]*domain.ScheduleItem, error) {
	return nil, nil
}

func (r *fakeItemRepo) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.items[id]; !ok {
		return domain.ErrItemNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeItemRepo) DeleteByTaskID(_ context.Context, taskID uuid.UUID) error {
	for id, i := range r.items {
		if tid := i.TaskID(); tid != nil && *tid == taskID {
			delete(r.items, id)
		}
	}
	return nil
}

type fakeOutbox struct {
	msgs []*outbox.Message
}

func (o *fakeOutbox) Save(_ context.Context, msg *outbox.Message) error {
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *fakeOutbox) SaveBatch(_ context.Context, msgs []*outbox.Message) error {
	o.msgs = append(o.msgs, msgs...)
	return nil
}

func (o *fakeOutbox) GetUnpublished(context.Context, int) ([]*outbox.Message, error) {
	return nil, nil
}
func (o *fakeOutbox) MarkPublished(context.Context, int64) error { return nil }
func (o *fakeOutbox) MarkFailed(context.Context, int64, string, time.Time) error {
	return nil
}
func (o *fakeOutbox) MarkDead(context.Context, int64, string) error { return nil }

type stubSamples struct {
	samples []*energyDomain.EnergySample
}

func (s *stubSamples) Save(context.Context, *energyDomain.EnergySample) error        { return nil }
func (s *stubSamples) SaveBatch(context.Context, []*energyDomain.EnergySample) error { return nil }
func (s *stubSamples) FindByUserDateHour(context.Context, uuid.UUID, time.Time, int) (*energyDomain.EnergySample, error) {
	return nil, energyDomain.ErrSampleNotFound
}
func (s *stubSamples) ListByUserAndDate(context.Context, uuid.UUID, time.Time) ([]*energyDomain.EnergySample, error) {
	return s.samples, nil
}
func (s *stubSamples) ListByUser(context.Context, uuid.UUID) ([]*energyDomain.EnergySample, error) {
	return s.samples, nil
}

type stubPatterns struct {
	patterns []energyDomain.HistoricalEnergyPattern
}

func (s *stubPatterns) ReplaceForUser(context.Context, uuid.UUID, []energyDomain.HistoricalEnergyPattern) error {
	return nil
}
func (s *stubPatterns) ListByUser(context.Context, uuid.UUID) ([]energyDomain.HistoricalEnergyPattern, error) {
	return s.patterns, nil
}

func schedulingUser(t *testing.T) *identity.User {
	t.Helper()
	user, err := identity.NewUser("ada@example.com", "hash", "UTC")
	require.NoError(t, err)
	return user
}

// forecastFor builds a full-day forecast with the given per-hour levels.
// Hours not named get 0.2 so they fall below every band except personal.
func forecastFor(t *testing.T, userID uuid.UUID, day time.Time, levels map[int]float64) []*energyDomain.EnergySample {
	t.Helper()
	samples := make([]*energyDomain.EnergySample, 0, 24)
	for hour := 0; hour < 24; hour++ {
		level, ok := levels[hour]
		if !ok {
			level = 0.2
		}
		s, err := energyDomain.NewEnergySample(userID, day, hour, level, energyDomain.StageMorningPeak, "", false)
		require.NoError(t, err)
		samples = append(samples, s)
	}
	return samples
}

// patternsFor builds a full day of observed historical means, same
// defaulting as forecastFor.
func patternsFor(userID uuid.UUID, levels map[int]float64) []energyDomain.HistoricalEnergyPattern {
	patterns := make([]energyDomain.HistoricalEnergyPattern, 0, 24)
	for hour := 0; hour < 24; hour++ {
		level, ok := levels[hour]
		if !ok {
			level = 0.2
		}
		patterns = append(patterns, energyDomain.HistoricalEnergyPattern{
			UserID: userID, Hour: hour, AverageEnergy: level, SampleCount: 3,
		})
	}
	return patterns
}

func testEngine(tasks domain.TaskRepository, items domain.ScheduleItemRepository, substrate *energyServices.Substrate, now time.Time) *Engine {
	clock := func() time.Time { return now }
	builder := NewContextBuilder(tasks, items, substrate).WithClock(clock)
	return NewEngine(builder, NewSlotPipeline(), slog.Default()).WithClock(clock)
}

func TestEngine_PicksHighestEnergySlot(t *testing.T) {
	user := schedulingUser(t)
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	now := day.Add(8 * time.Hour)

	substrate := energyServices.NewSubstrate(
		&stubSamples{samples: forecastFor(t, user.ID(), day, map[int]float64{9: 0.8, 10: 0.9})},
		&stubPatterns{},
		nil,
		slog.Default(),
	)
	engine := testEngine(newFakeTaskRepo(), newFakeItemRepo(), substrate, now)

	deadline := day.Add(18 * time.Hour)
	task, err := domain.NewTask(user.ID(), "write design doc", "", 60, 3, domain.TagDeep, true, nil, &deadline)
	require.NoError(t, err)

	placement, err := engine.FindOptimalSlot(context.Background(), task, user, nil, true)
	require.NoError(t, err)
	require.NotNil(t, placement)

	// 0.9 at 10:00 beats 0.8 at 09:00: a 0.1 gap is no tie.
	assert.Equal(t, day.Add(10*time.Hour), placement.Start)
	assert.Equal(t, day.Add(11*time.Hour), placement.End)
	assert.True(t, placement.Slot.IsToday)
}

func TestEngine_NearTieGoesToEarlierStart(t *testing.T) {
	user := schedulingUser(t)
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	now := day.Add(8 * time.Hour)

	substrate := energyServices.NewSubstrate(
		&stubSamples{samples: forecastFor(t, user.ID(), day, map[int]float64{9: 0.85, 10: 0.9})},
		&stubPatterns{},
		nil,
		slog.Default(),
	)
	engine := testEngine(newFakeTaskRepo(), newFakeItemRepo(), substrate, now)

	deadline := day.Add(18 * time.Hour)
	task, err := domain.NewTask(user.ID(), "write design doc", "", 60, 3, domain.TagDeep, true, nil, &deadline)
	require.NoError(t, err)

	placement, err := engine.FindOptimalSlot(context.Background(), task, user, nil, true)
	require.NoError(t, err)
	require.NotNil(t, placement)
	assert.Equal(t, day.Add(9*time.Hour), placement.Start)
}

func TestEngine_RollsToNextDayWhenTodayIsTooLow(t *testing.T) {
	user := schedulingUser(t)
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	now := day.Add(8 * time.Hour)

	// Today's forecast never reaches the deep band; tomorrow's
	// historical means peak at 10:00.
	substrate := energyServices.NewSubstrate(
		&stubSamples{samples: forecastFor(t, user.ID(), day, nil)},
		&stubPatterns{patterns: patternsFor(user.ID(), map[int]float64{10: 0.9})},
		nil,
		slog.Default(),
	)
	engine := testEngine(newFakeTaskRepo(), newFakeItemRepo(), substrate, now)

	task, err := domain.NewTask(user.ID(), "quarterly report", "", 60, 3, domain.TagDeep, true, nil, nil)
	require.NoError(t, err)

	placement, err := engine.FindOptimalSlot(context.Background(), task, user, nil, true)
	require.NoError(t, err)
	require.NotNil(t, placement)
	assert.Equal(t, day.AddDate(0, 0, 1).Add(10*time.Hour), placement.Start)
	assert.True(t, placement.Slot.IsHistorical)
}

func TestEngine_RefusesPastDeadline(t *testing.T) {
	user := schedulingUser(t)
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	now := day.Add(8 * time.Hour)

	substrate := energyServices.NewSubstrate(
		&stubSamples{samples: forecastFor(t, user.ID(), day, nil)},
		&stubPatterns{patterns: patternsFor(user.ID(), map[int]float64{10: 0.9})},
		nil,
		slog.Default(),
	)
	engine := testEngine(newFakeTaskRepo(), newFakeItemRepo(), substrate, now)

	// Deadline tonight: tomorrow's peak is out of reach, so the search
	// ends with a refusal rather than an error.
	deadline := day.Add(18 * time.Hour)
	task, err := domain.NewTask(user.ID(), "file expenses", "", 60, 3, domain.TagDeep, true, nil, &deadline)
	require.NoError(t, err)

	placement, err := engine.FindOptimalSlot(context.Background(), task, user, nil, true)
	require.NoError(t, err)
	assert.Nil(t, placement)
}

func TestEngine_WindowClipsToStartTimeWithoutDeadline(t *testing.T) {
	user := schedulingUser(t)
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	now := day.Add(8 * time.Hour)

	// Today's forecast never reaches the deep band; tomorrow's
	// historical means would fit.
	substrate := energyServices.NewSubstrate(
		&stubSamples{samples: forecastFor(t, user.ID(), day, nil)},
		&stubPatterns{patterns: patternsFor(user.ID(), map[int]float64{10: 0.9})},
		nil,
		slog.Default(),
	)
	engine := testEngine(newFakeTaskRepo(), newFakeItemRepo(), substrate, now)

	// A concrete start tonight anchors the look-ahead to today, so the
	// task is not flung into next week.
	start := day.Add(23 * time.Hour)
	task, err := domain.NewTask(user.ID(), "pack for trip", "", 60, 3, domain.TagDeep, true, &start, nil)
	require.NoError(t, err)

	placement, err := engine.FindOptimalSlot(context.Background(), task, user, nil, true)
	require.NoError(t, err)
	assert.Nil(t, placement)
}

func TestEngine_PastGuardSkipsImminentSlots(t *testing.T) {
	user := schedulingUser(t)
	day := time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)
	now := day.Add(9*time.Hour + 50*time.Minute)

	substrate := energyServices.NewSubstrate(
		&stubSamples{samples: forecastFor(t, user.ID(), day, map[int]float64{9: 0.95, 10: 0.9, 11: 0.8})},
		&stubPatterns{},
		nil,
		slog.Default(),
	)
	engine := testEngine(newFakeTaskRepo(), newFakeItemRepo(), substrate, now)

	deadline := day.Add(20 * time.Hour)
	task, err := domain.NewTask(user.ID(), "review pull requests", "", 60, 3, domain.TagDeep, true, nil, &deadline)
	require.NoError(t, err)

	placement, err := engine.FindOptimalSlot(context.Background(), task, user, nil, true)
	require.NoError(t, err)
	require.NotNil(t, placement)

	// 09:00 is past, 10:00 starts inside the guard window; 11:00 is the
	// first slot far enough out.
	assert.Equal(t, day.Add(11*time.Hour), placement.Start)
}
