package commands

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	notifApp "github.com/voltahq/volta/internal/notifications/application"
	notifDomain "github.com/voltahq/volta/internal/notifications/domain"
	"github.com/voltahq/volta/internal/scheduling/domain"
	"github.com/voltahq/volta/internal/shared/infrastructure/userlock"
)

func (env *handlerEnv) updateHandler() *UpdateTaskHandler {
	return NewUpdateTaskHandler(
		env.users, env.tasks, env.items, env.engine, env.cascade(),
		notifApp.NewDispatcher(env.outbox), env.outbox, noopUOW{}, userlock.NewMap(), slog.Default(),
	)
}

func (env *handlerEnv) rescheduleHandler() *RescheduleTaskHandler {
	return NewRescheduleTaskHandler(
		env.users, env.tasks, env.items, env.engine, env.cascade(),
		notifApp.NewDispatcher(env.outbox), env.outbox, noopUOW{}, userlock.NewMap(), slog.Default(),
	)
}

func (env *handlerEnv) removeHandler() *RemoveScheduleItemHandler {
	return NewRemoveScheduleItemHandler(
		env.users, env.tasks, env.items, env.engine,
		notifApp.NewDispatcher(env.outbox), noopUOW{}, userlock.NewMap(), slog.Default(),
	)
}

func statusPtr(s domain.Status) *domain.Status { return &s }
func intPtr(n int) *int                        { return &n }

func TestUpdateTask_CompletionRemovesMirror(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, map[int]float64{10: 0.9})
	task := env.placedAutoTask(t, "quarterly report", 3, 10)

	result, err := env.updateHandler().Handle(context.Background(), UpdateTaskCommand{
		UserID: env.user.ID(),
		TaskID: task.ID(),
		Patch:  domain.TaskPatch{Status: statusPtr(domain.StatusCompleted)},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, result.Task.Status())

	_, err = env.items.FindByTaskID(context.Background(), task.ID())
	assert.ErrorIs(t, err, domain.ErrItemNotFound)

	// Completing twice is refused.
	_, err = env.updateHandler().Handle(context.Background(), UpdateTaskCommand{
		UserID: env.user.ID(),
		TaskID: task.ID(),
		Patch:  domain.TaskPatch{Status: statusPtr(domain.StatusCompleted)},
	})
	assert.ErrorIs(t, err, domain.ErrTaskCompleted)
}

func TestUpdateTask_NoSlotKeepsPlacement(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, nil)
	task := env.placedAutoTask(t, "quarterly report", 3, 10)

	// A two-step priority bump forces an engine run; with nothing in the
	// deep band the task keeps its slot and is flagged instead.
	result, err := env.updateHandler().Handle(context.Background(), UpdateTaskCommand{
		UserID: env.user.ID(),
		TaskID: task.ID(),
		Patch:  domain.TaskPatch{Priority: intPtr(5)},
	})
	require.NoError(t, err)

	require.NotNil(t, result.Task.StartTime())
	assert.Equal(t, env.day.Add(10*time.Hour), *result.Task.StartTime())
	assert.True(t, result.Task.NeedsAttention())
	assert.Equal(t, []notifDomain.Type{notifDomain.TypeNoOptimalTime}, resultTypes(result.Notifications))
}

func TestRescheduleTask_MovesToFreshSlot(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, map[int]float64{14: 0.8})
	task := env.placedAutoTask(t, "quarterly report", 3, 10)

	result, err := env.rescheduleHandler().Handle(context.Background(), RescheduleTaskCommand{
		UserID: env.user.ID(),
		TaskID: task.ID(),
	})
	require.NoError(t, err)

	assert.Equal(t, env.day.Add(14*time.Hour), *result.Task.StartTime())
	mirror, err := env.items.FindByTaskID(context.Background(), task.ID())
	require.NoError(t, err)
	assert.Equal(t, env.day.Add(14*time.Hour), mirror.StartTime())
	assert.Equal(t, []notifDomain.Type{notifDomain.TypeTaskRescheduled}, resultTypes(result.Notifications))
	assert.NotEmpty(t, env.outbox.msgs)
}

func TestRescheduleTask_RefusesWhenNothingFits(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, nil)
	task := env.placedAutoTask(t, "quarterly report", 3, 10)

	_, err := env.rescheduleHandler().Handle(context.Background(), RescheduleTaskCommand{
		UserID: env.user.ID(),
		TaskID: task.ID(),
	})
	require.ErrorIs(t, err, domain.ErrNoOptimalSlot)

	// The task keeps its slot untouched.
	kept, err := env.tasks.FindByID(context.Background(), task.ID())
	require.NoError(t, err)
	assert.Equal(t, env.day.Add(10*time.Hour), *kept.StartTime())
	assert.False(t, kept.NeedsAttention())
}

func TestRemoveScheduleItem_EventRemovalRebalances(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, map[int]float64{10: 0.9})

	event, err := domain.NewEvent(env.user.ID(), "offsite", env.day.Add(9*time.Hour), env.day.Add(12*time.Hour))
	require.NoError(t, err)
	env.items.items[event.ID()] = event

	// A task the event kept off the calendar.
	stranded, err := domain.NewTask(env.user.ID(), "quarterly report", "", 60, 3, domain.TagDeep, true, nil, nil)
	require.NoError(t, err)
	env.tasks.tasks[stranded.ID()] = stranded

	notifications, err := env.removeHandler().Handle(context.Background(), RemoveScheduleItemCommand{
		UserID: env.user.ID(),
		ItemID: event.ID(),
	})
	require.NoError(t, err)

	placed, err := env.tasks.FindByID(context.Background(), stranded.ID())
	require.NoError(t, err)
	require.NotNil(t, placed.StartTime())
	assert.Equal(t, env.day.Add(10*time.Hour), *placed.StartTime())

	mirror, err := env.items.FindByTaskID(context.Background(), stranded.ID())
	require.NoError(t, err)
	assert.Equal(t, env.day.Add(10*time.Hour), mirror.StartTime())
	assert.Equal(t, []notifDomain.Type{notifDomain.TypeTaskRescheduled}, resultTypes(notifications))
}

func TestRemoveScheduleItem_EventRemovalMovesToStrictlyBetterSlot(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, map[int]float64{10: 0.9, 14: 0.8})

	event, err := domain.NewEvent(env.user.ID(), "standup", env.day.Add(10*time.Hour), env.day.Add(11*time.Hour))
	require.NoError(t, err)
	env.items.items[event.ID()] = event

	// Placed at a decent hour, but the event sits on a better one.
	task := env.placedAutoTask(t, "quarterly report", 3, 14)

	notifications, err := env.removeHandler().Handle(context.Background(), RemoveScheduleItemCommand{
		UserID: env.user.ID(),
		ItemID: event.ID(),
	})
	require.NoError(t, err)

	moved, err := env.tasks.FindByID(context.Background(), task.ID())
	require.NoError(t, err)
	require.NotNil(t, moved.StartTime())
	assert.Equal(t, env.day.Add(10*time.Hour), *moved.StartTime())

	mirror, err := env.items.FindByTaskID(context.Background(), task.ID())
	require.NoError(t, err)
	assert.Equal(t, env.day.Add(10*time.Hour), mirror.StartTime())
	assert.Equal(t, []notifDomain.Type{notifDomain.TypeTaskRescheduled}, resultTypes(notifications))
}

func TestRemoveScheduleItem_EventRemovalKeepsEquallyGoodSlot(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, map[int]float64{10: 0.8, 14: 0.8})

	event, err := domain.NewEvent(env.user.ID(), "standup", env.day.Add(10*time.Hour), env.day.Add(11*time.Hour))
	require.NoError(t, err)
	env.items.items[event.ID()] = event

	task := env.placedAutoTask(t, "quarterly report", 3, 14)

	notifications, err := env.removeHandler().Handle(context.Background(), RemoveScheduleItemCommand{
		UserID: env.user.ID(),
		ItemID: event.ID(),
	})
	require.NoError(t, err)

	// The freed hour is no better than the current one, so the task
	// keeps its slot and no move is announced.
	kept, err := env.tasks.FindByID(context.Background(), task.ID())
	require.NoError(t, err)
	require.NotNil(t, kept.StartTime())
	assert.Equal(t, env.day.Add(14*time.Hour), *kept.StartTime())
	assert.Empty(t, notifications)
}

func TestRemoveScheduleItem_TaskMirrorRemovalSkipsRebalance(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, map[int]float64{10: 0.9})

	task := env.placedAutoTask(t, "quarterly report", 3, 14)
	mirror, err := env.items.FindByTaskID(context.Background(), task.ID())
	require.NoError(t, err)

	stranded, err := domain.NewTask(env.user.ID(), "write notes", "", 60, 3, domain.TagDeep, true, nil, nil)
	require.NoError(t, err)
	env.tasks.tasks[stranded.ID()] = stranded

	notifications, err := env.removeHandler().Handle(context.Background(), RemoveScheduleItemCommand{
		UserID: env.user.ID(),
		ItemID: mirror.ID(),
	})
	require.NoError(t, err)
	assert.Empty(t, notifications)

	// Only event removals free time; the stranded task stays unplaced.
	unplaced, err := env.tasks.FindByID(context.Background(), stranded.ID())
	require.NoError(t, err)
	assert.Nil(t, unplaced.StartTime())
}

func TestDeadlineSweeper_WarnsAboutDueTasks(t *testing.T) {
	now := time.Date(2026, 8, 26, 8, 0, 0, 0, time.UTC)
	env := newHandlerEnv(t, now, nil)

	dueSoon := env.day.Add(13 * time.Hour) // due this evening
	task, err := domain.NewTask(env.user.ID(), "file taxes", "", 60, 3, domain.TagAdmin, true, nil, &dueSoon)
	require.NoError(t, err)
	env.tasks.tasks[task.ID()] = task

	farOut := env.day.AddDate(0, 0, 3)
	relaxed, err := domain.NewTask(env.user.ID(), "plan trip", "", 60, 3, domain.TagPersonal, true, nil, &farOut)
	require.NoError(t, err)
	env.tasks.tasks[relaxed.ID()] = relaxed

	sweeper := NewDeadlineSweeper(env.tasks, notifApp.NewDispatcher(env.outbox), noopUOW{}, slog.Default()).
		WithClock(func() time.Time { return now })

	count, err := sweeper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, env.outbox.msgs, 1)
}
