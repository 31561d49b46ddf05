package commands

import (
	"context"
	"log/slog"
	"math"
	"time"

	notifApp "github.com/voltahq/volta/internal/notifications/application"
	notifDomain "github.com/voltahq/volta/internal/notifications/domain"
	"github.com/voltahq/volta/internal/scheduling/domain"
	"github.com/voltahq/volta/internal/shared/application"
)

// deadlineHorizon is how far ahead the sweep warns about due tasks.
const deadlineHorizon = 24 * time.Hour

// DeadlineSweeper emits task_deadline_approaching notifications for
// pending tasks due within the horizon. Run periodically by the worker;
// it only writes notifications, never task state.
type DeadlineSweeper struct {
	tasks      domain.TaskRepository
	dispatcher *notifApp.Dispatcher
	uow        application.UnitOfWork
	logger     *slog.Logger
	now        func() time.Time
}

func NewDeadlineSweeper(tasks domain.TaskRepository, dispatcher *notifApp.Dispatcher, uow application.UnitOfWork, logger *slog.Logger) *DeadlineSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeadlineSweeper{tasks: tasks, dispatcher: dispatcher, uow: uow, logger: logger, now: time.Now}
}

// WithClock overrides the sweeper's clock, for tests.
func (s *DeadlineSweeper) WithClock(now func() time.Time) *DeadlineSweeper {
	s.now = now
	return s
}

// Sweep runs one pass and returns how many warnings were emitted.
func (s *DeadlineSweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.tasks.ListDueBetween(ctx, now, now.Add(deadlineHorizon))
	if err != nil {
		return 0, err
	}

	collector := notifApp.NewCollector()
	for _, task := range due {
		deadline := task.Deadline()
		if deadline == nil {
			continue
		}
		hours := int(math.Ceil(deadline.Sub(now).Hours()))
		if hours < 0 {
			continue
		}
		collector.Add(notifDomain.NewDeadlineApproaching(taskRef(task), hours))
	}
	if collector.Empty() {
		return 0, nil
	}

	err = application.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		return s.dispatcher.Dispatch(txCtx, collector)
	})
	if err != nil {
		return 0, err
	}

	count := len(collector.Items())
	s.logger.Info("deadline sweep complete", "warnings", count)
	return count, nil
}
