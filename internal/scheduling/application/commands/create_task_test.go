package commands

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
	notifApp "github.com/voltahq/volta/internal/notifications/application"
	notifDomain "github.com/voltahq/volta/internal/notifications/domain"
	"github.com/voltahq/volta/internal/scheduling/application/services"
	"github.com/voltahq/volta/internal/scheduling/domain"
	"github.com/voltahq/volta/internal/shared/infrastructure/outbox"
	"github.com/voltahq/volta/internal/shared/infrastructure/userlock"
)

type fakeUsers struct {
	users map[uuid.UUID]*identity.User
}

func (r *fakeUsers) Save(_ context.Context, user *identity.User) error {
	r.users[user.ID()] = user
	return nil
}

func (r *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	return user, nil
}

func (r *fakeUsers) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	for _, u := range r.users {
		if u.Email() == email {
			return u, nil
		}
	}
	return nil, identity.ErrUserNotFound
}

type fakeTasks struct {
	tasks map[uuid.UUID]*domain.Task
}

func (r *fakeTasks) Save(_ context.Context, task *domain.Task) error {
	r.tasks[task.ID()] = task
	return nil
}

func (r *fakeTasks) FindByID(_ context.Context, id uuid.UUID) (*domain.Task, error) {
	task, ok := r.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return task, nil
}

func (r *fakeTasks) ListByUser(_ context.Context, userID uuid.UUID, _ domain.TaskFilter) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range r.tasks {
		if t.UserID() == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTasks) ListPendingAuto(_ context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range r.tasks {
		if t.UserID() == userID && t.IsDisplaceable() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTasks) ListDueBetween(_ context.Context, from, to time.Time) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range r.tasks {
		if d := t.Deadline(); d != nil && t.Status() == domain.StatusPending && !d.Before(from) && d.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *fakeTasks) ListPlacedPendingAuto(context.Context) ([]*domain.Task, error) {
	return nil, nil
}

func (r *fakeTasks) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.tasks[id]; !ok {
		return domain.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

type fakeItems struct {
	items map[uuid.UUID]*domain.ScheduleItem
}

func (r *fakeItems) Save(_ context.Context, item *domain.ScheduleItem) error {
	r.items[item.ID()] = item
	return nil
}

func (r *fakeItems) FindByID(_ context.Context, id uuid.UUID) (*domain.ScheduleItem, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return item, nil
}

func (r *fakeItems) FindByTaskID(_ context.Context, taskID uuid.UUID) (*domain.ScheduleItem, error) {
	for _, i := range r.items {
		if tid := i.TaskID(); tid != nil && *tid == taskID {
			return i, nil
		}
	}
	return nil, domain.ErrItemNotFound
}

func (r *fakeItems) ListByUser(_ context.Context, userID uuid.UUID, _ domain.ItemFilter) ([]*domain.ScheduleItem, error) {
	var out []*domain.ScheduleItem
	for _, i := range r.items {
		if i.UserID() == userID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *fakeItems) ListByUserInRange(_ context.Context, userID uuid.UUID, from, to time.Time) ([]*domain.ScheduleItem, error) {
	var out []*domain.ScheduleItem
	for _, i := range r.items {
		if i.UserID() == userID && i.Overlaps(from, to) {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *fakeItems) ListOrphanedTaskItems(context.Context) ([]*domain.ScheduleItem, error) {
	return nil, nil
}

func (r *fakeItems) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := r.items[id]; !ok {
		return domain.ErrItemNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeItems) DeleteByTaskID(_ context.Context, taskID uuid.UUID) error {
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

// noopUOW satisfies the unit-of-work contract without a database.
type noopUOW struct{}

func (noopUOW) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (noopUOW) Commit(context.Context) error                       { return nil }
func (noopUOW) Rollback(context.Context) error                     { return nil }

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

type stubPatterns struct{}

func (stubPatterns) ReplaceForUser(context.Context, uuid.UUID, []energyDomain.HistoricalEnergyPattern) error {
	return nil
}
func (stubPatterns) ListByUser(context.Context, uuid.UUID) ([]energyDomain.HistoricalEnergyPattern, error) {
	return nil, nil
}

// handlerEnv wires the full command stack over in-memory fakes with a
// fixed clock and a full-day forecast (unnamed hours read 0.2).
type handlerEnv struct {
	user   *identity.User
	day    time.Time
	now    time.Time
	users  *fakeUsers
	tasks  *fakeTasks
	items  *fakeItems
	outbox *fakeOutbox
	engine *services.Engine
}

func newHandlerEnv(t *testing.T, now time.Time, levels map[int]float64) *handlerEnv {
	t.Helper()
	user, err := identity.NewUser("ada@example.com", "hash", "UTC")
	require.NoError(t, err)

	day := domain.StartOfDay(now, time.UTC)
	samples := make([]*energyDomain.EnergySample, 0, 24)
	for hour := 0; hour < 24; hour++ {
		level, ok := levels[hour]
		if !ok {
			level = 0.2
		}
		sample, err := energyDomain.NewEnergySample(user.ID(), day, hour, level, energyDomain.StageMorningPeak, "", false)
		require.NoError(t, err)
		samples = append(samples, sample)
	}

	env := &handlerEnv{
		user:   user,
		day:    day,
		now:    now,
		users:  &fakeUsers{users: map[uuid.UUID]*identity.User{user.ID(): user}},
		tasks:  &fakeTasks{tasks: make(map[uuid.UUID]*domain.Task)},
		items:  &fakeItems{items: make(map[uuid.UUID]*domain.ScheduleItem)},
		outbox: &fakeOutbox{},
	}

	clock := func() time.Time { return now }
	substrate := energyServices.NewSubstrate(&stubSamples{samples: samples}, stubPatterns{}, nil, slog.Default())
	builder := services.NewContextBuilder(env.tasks, env.items, substrate).WithClock(clock)
	env.engine = services.NewEngine(builder, services.NewSlotPipeline(), slog.Default()).WithClock(clock)
	return env
}

func (env *handlerEnv) cascade() *services.Cascade {
	return services.NewCascade(env.engine, env.tasks, env.items, env.outbox, slog.Default())
}

func (env *handlerEnv) createHandler() *CreateTaskHandler {
	return NewCreateTaskHandler(
		env.users, env.tasks, env.items, env.engine, env.cascade(),
		notifApp.NewDispatcher(env.outbox), env.outbox, noopUOW{}, userlock.NewMap(), slog.Default(),
	).WithClock(func() time.Time { return env.now })
}

// placedAutoTask seeds a pending auto task placed at the given hour with
// its mirror, as the create flow would leave it.
func (env *handlerEnv) placedAutoTask(t *testing.T, title string, priority, hour int) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(env.user.ID(), title, "", 60, priority, domain.TagDeep, true, nil, nil)
	require.NoError(t, err)
	task.Place(env.day.Add(time.Duration(hour) * time.Hour))
	env.tasks.tasks[task.ID()] = task
	mirror, err := domain.NewTaskItem(task)
	require.NoError(t, err)
	env.items.items[mirror.ID()] = mirror
	return task
}

func resultTypes(notifications []notifDomain.Notification) []notifDomain.Type {
	types := make([]notifDomain.Type, 0, len(notifications))
	for _, n := range notifications {
		types = append(types, n.Type)
	}
	return types
}

func TestCreateTask_PlacesAtPeakEnergy(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, map[int]float64{9: 0.8, 10: 0.9})
	deadline := env.day.Add(18 * time.Hour)

	result, err := env.createHandler().Handle(context.Background(), CreateTaskCommand{
		UserID:           env.user.ID(),
		Title:            "write design doc",
		EstimatedMinutes: 60,
		Priority:         3,
		Tag:              "deep",
		IsAutoSchedule:   true,
		EndTime:          &deadline,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Task)

	require.NotNil(t, result.Task.StartTime())
	assert.Equal(t, env.day.Add(10*time.Hour), *result.Task.StartTime())
	assert.Empty(t, result.Notifications)

	mirror, err := env.items.FindByTaskID(context.Background(), result.Task.ID())
	require.NoError(t, err)
	assert.Equal(t, env.day.Add(10*time.Hour), mirror.StartTime())
	assert.NotEmpty(t, env.outbox.msgs)
}

func TestCreateTask_RefusalWritesNothing(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, nil)
	deadline := env.day.Add(18 * time.Hour)

	result, err := env.createHandler().Handle(context.Background(), CreateTaskCommand{
		UserID:           env.user.ID(),
		Title:            "write design doc",
		EstimatedMinutes: 60,
		Priority:         3,
		Tag:              "deep",
		IsAutoSchedule:   true,
		EndTime:          &deadline,
	})
	require.ErrorIs(t, err, domain.ErrNoOptimalSlot)

	// The refusal is reported, not persisted: no task, no mirror, no
	// outbox traffic.
	require.NotNil(t, result)
	assert.Equal(t, []notifDomain.Type{notifDomain.TypeNoOptimalTime}, resultTypes(result.Notifications))
	assert.Empty(t, env.tasks.tasks)
	assert.Empty(t, env.items.items)
	assert.Empty(t, env.outbox.msgs)
}

func TestCreateTask_InfeasibleDeadlineRejected(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, map[int]float64{10: 0.9})
	deadline := now.Add(30 * time.Minute)

	_, err := env.createHandler().Handle(context.Background(), CreateTaskCommand{
		UserID:           env.user.ID(),
		Title:            "write design doc",
		EstimatedMinutes: 60,
		Priority:         3,
		Tag:              "deep",
		IsAutoSchedule:   true,
		EndTime:          &deadline,
	})
	assert.ErrorIs(t, err, domain.ErrDeadlineInfeasible)
	assert.Empty(t, env.tasks.tasks)
}

func TestCreateTask_UrgentPersonalUsesWindDown(t *testing.T) {
	// Late evening, deadline tonight: the only hours left are the two
	// before bedtime, open to an urgent personal task alone.
	now := time.Date(2026, 8, 26, 20, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, map[int]float64{21: 0.6})
	deadline := env.day.Add(23 * time.Hour)

	result, err := env.createHandler().Handle(context.Background(), CreateTaskCommand{
		UserID:           env.user.ID(),
		Title:            "call pharmacy",
		EstimatedMinutes: 60,
		Priority:         5,
		Tag:              "personal",
		IsAutoSchedule:   true,
		EndTime:          &deadline,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Task.StartTime())
	assert.Equal(t, env.day.Add(21*time.Hour), *result.Task.StartTime())

	// Landing that close to bedtime is worth a warning.
	assert.Equal(t, []notifDomain.Type{notifDomain.TypeLateWindDownConflict}, resultTypes(result.Notifications))
}

func TestCreateTask_PinnedOnEventRefused(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, nil)

	event, err := domain.NewEvent(env.user.ID(), "dentist", env.day.Add(10*time.Hour+30*time.Minute), env.day.Add(11*time.Hour+30*time.Minute))
	require.NoError(t, err)
	env.items.items[event.ID()] = event

	start := env.day.Add(10 * time.Hour)
	end := env.day.Add(11 * time.Hour)
	result, err := env.createHandler().Handle(context.Background(), CreateTaskCommand{
		UserID:           env.user.ID(),
		Title:            "focus block",
		EstimatedMinutes: 60,
		Priority:         3,
		Tag:              "deep",
		IsAutoSchedule:   false,
		StartTime:        &start,
		EndTime:          &end,
	})
	require.ErrorIs(t, err, domain.ErrImmovableConflict)
	require.NotNil(t, result)
	assert.Equal(t, []notifDomain.Type{notifDomain.TypeEventConflict}, resultTypes(result.Notifications))
	assert.Empty(t, env.tasks.tasks)
}

func TestCreateTask_PinnedEvictsAutoTask(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, map[int]float64{10: 0.9, 14: 0.8})

	// Even a priority-5 auto task yields to a manual placement.
	existing := env.placedAutoTask(t, "quarterly report", 5, 10)

	start := env.day.Add(10 * time.Hour)
	end := env.day.Add(11 * time.Hour)
	result, err := env.createHandler().Handle(context.Background(), CreateTaskCommand{
		UserID:           env.user.ID(),
		Title:            "focus block",
		EstimatedMinutes: 60,
		Priority:         1,
		Tag:              "deep",
		IsAutoSchedule:   false,
		StartTime:        &start,
		EndTime:          &end,
	})
	require.NoError(t, err)

	moved, err := env.tasks.FindByID(context.Background(), existing.ID())
	require.NoError(t, err)
	assert.Equal(t, env.day.Add(14*time.Hour), *moved.StartTime())
	assert.Equal(t, []notifDomain.Type{notifDomain.TypeTaskDisplaced}, resultTypes(result.Notifications))
}
