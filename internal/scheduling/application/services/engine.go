package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	identityDomain "github.com/voltahq/volta/internal/identity/domain"
	"github.com/voltahq/volta/internal/scheduling/domain"
)

// energyTieWindow treats slots within this much of the best energy as
// equivalent; the earliest of them wins.
const energyTieWindow = 0.1

// energyTieEpsilon absorbs float64 rounding so a gap of exactly the tie
// window (e.g. 0.9-0.8) is not treated as within it.
const energyTieEpsilon = 1e-9

// Placement is a chosen slot for a task.
type Placement struct {
	Start time.Time
	End   time.Time
	Slot  domain.CandidateSlot
}

// Engine finds the optimal slot for a task, walking forward day by day
// until the horizon or the task's deadline cuts the search off.
type Engine struct {
	builder  *ContextBuilder
	pipeline *SlotPipeline
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(builder *ContextBuilder, pipeline *SlotPipeline, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{builder: builder, pipeline: pipeline, logger: logger, now: time.Now}
}

// WithClock overrides the engine's clock, for tests. The builder's clock
// should be overridden alongside.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// FindOptimalSlot returns the best placement for the task, or nil when
// no slot satisfies its constraints anywhere in the window. A nil
// result is a refusal, not an error.
func (e *Engine) FindOptimalSlot(
	ctx context.Context,
	task *domain.Task,
	user *identityDomain.User,
	excludeTaskIDs []uuid.UUID,
	allowDisplacement bool,
) (*Placement, error) {
	loc := user.Location()
	now := e.now().In(loc)

	day := domain.StartOfDay(now, loc)
	if target := domain.DetermineTargetDate(task, now, loc); target != nil {
		day = *target
	}
	deadline := task.Deadline()

	window := domain.SchedulingWindow(task, now)
	for offset := 0; offset < window; offset++ {
		sctx, err := e.builder.Build(ctx, user, day, excludeTaskIDs)
		if err != nil {
			return nil, err
		}

		slots := e.pipeline.Candidates(sctx, task, allowDisplacement)
		if len(slots) > 0 {
			best := rankSlots(slots)
			e.logger.Debug("slot selected",
				"task_id", task.ID(),
				"start", best.Start,
				"energy", best.EnergyLevel,
				"day_offset", offset,
			)
			return &Placement{Start: best.Start, End: best.Start.Add(task.Duration()), Slot: best}, nil
		}

		nextDay := domain.StartOfDay(day.AddDate(0, 0, 1), loc)
		if deadline != nil && !nextDay.Before(*deadline) {
			break
		}
		day = nextDay
	}

	e.logger.Info("no optimal slot found", "task_id", task.ID(), "user_id", user.ID())
	return nil, nil
}

// CurrentEnergy reports the predicted energy at a placed task's current
// start hour. The second result is false when the task is unplaced or no
// prediction covers that hour.
func (e *Engine) CurrentEnergy(ctx context.Context, task *domain.Task, user *identityDomain.User) (float64, bool, error) {
	start := task.StartTime()
	if start == nil {
		return 0, false, nil
	}
	loc := user.Location()
	local := start.In(loc)

	sctx, err := e.builder.Build(ctx, user, domain.StartOfDay(local, loc), []uuid.UUID{task.ID()})
	if err != nil {
		return 0, false, err
	}
	he, ok := sctx.Energy.EnergyAt(local.Hour())
	if !ok {
		return 0, false, nil
	}
	return he.Level, true, nil
}

// rankSlots orders by descending energy, then resolves near-ties (within
// the tie window of the best) in favor of the earliest start.
func rankSlots(slots []domain.CandidateSlot) domain.CandidateSlot {
	sorted := make([]domain.CandidateSlot, len(slots))
	copy(sorted, slots)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EnergyLevel > sorted[j].EnergyLevel
	})

	top := sorted[0]
	best := top
	for _, s := range sorted[1:] {
		if top.EnergyLevel-s.EnergyLevel >= energyTieWindow-energyTieEpsilon {
			break
		}
		if s.Start.Before(best.Start) {
			best = s
		}
	}
	return best
}
