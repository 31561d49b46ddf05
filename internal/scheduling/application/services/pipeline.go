package services

import (
	"time"

	"github.com/voltahq/volta/internal/scheduling/domain"
)

// PastGuard keeps placements from landing in the immediate past: no slot
// may start sooner than this far from now.
const PastGuard = 15 * time.Minute

// SlotPipeline enumerates and filters candidate slots for one task
// against one day's context. Pure; all I/O happened at context build.
type SlotPipeline struct{}

func NewSlotPipeline() *SlotPipeline {
	return &SlotPipeline{}
}

// Candidates returns the slots that survive the filter chain, in hour
// order. When allowDisplacement is set, slots overlapping tasks the
// candidate may displace survive with HasConflict set; the cascade's own
// re-placements run with it unset so displacement never chains.
func (p *SlotPipeline) Candidates(sctx *SchedulingContext, task *domain.Task, allowDisplacement bool) []domain.CandidateSlot {
	loc := sctx.User.Location()
	schedule := sctx.User.SleepSchedule()
	duration := task.Duration()
	minEnergy, maxEnergy := task.Tag().EnergyBand()
	concession := windDownConcession(task, sctx.Now, loc)

	year, month, dayOfMonth := sctx.Day.Date()
	cutoff := sctx.Now.Add(PastGuard)

	var slots []domain.CandidateSlot
	for hour := 0; hour < 24; hour++ {
		energy, ok := sctx.Energy.EnergyAt(hour)
		if !ok {
			continue
		}
		start := time.Date(year, month, dayOfMonth, hour, 0, 0, 0, loc)
		end := start.Add(duration)

		if start.Before(cutoff) {
			continue
		}
		if energy.Level < minEnergy || energy.Level > maxEnergy {
			continue
		}

		conflict, blocked := p.classifyConflicts(sctx, task, start, end, allowDisplacement)
		if blocked {
			continue
		}
		if schedule.IsSleepHour(hour) {
			continue
		}
		if schedule.IsLateWindDown(hour) && !concession {
			continue
		}

		slots = append(slots, domain.CandidateSlot{
			Start:          start,
			End:            end,
			EnergyLevel:    energy.Level,
			Stage:          energy.Stage,
			IsHistorical:   sctx.Strategy == domain.StrategyFuture,
			IsToday:        sctx.Strategy == domain.StrategyToday,
			HasConflict:    conflict,
			InLateWindDown: schedule.IsLateWindDown(hour),
		})
	}
	return slots
}

// classifyConflicts inspects every calendar item overlapping the slot.
// Events and immovable tasks block the slot outright; overlaps with
// tasks the candidate displaces only flag it.
func (p *SlotPipeline) classifyConflicts(sctx *SchedulingContext, task *domain.Task, start, end time.Time, allowDisplacement bool) (conflict, blocked bool) {
	for _, item := range sctx.Items {
		if taskID := item.TaskID(); taskID != nil && *taskID == task.ID() {
			continue
		}
		if !item.ConflictsWith(start, end) {
			continue
		}
		if item.Type() == domain.ItemTypeEvent {
			return false, true
		}
		existing := displaceableTaskBehind(sctx, item)
		if existing == nil || !allowDisplacement || !domain.Displaces(task, existing) {
			return false, true
		}
		conflict = true
	}
	return conflict, false
}

func displaceableTaskBehind(sctx *SchedulingContext, item *domain.ScheduleItem) *domain.Task {
	taskID := item.TaskID()
	if taskID == nil {
		return nil
	}
	existing, ok := sctx.TasksByID[*taskID]
	if !ok || !existing.IsDisplaceable() {
		return nil
	}
	return existing
}

// windDownConcession is the single exception to the late-wind-down cut:
// a personal, priority-5 task whose deadline falls on today's calendar
// day may use the two hours before bedtime.
func windDownConcession(task *domain.Task, now time.Time, loc *time.Location) bool {
	if task.Tag() != domain.TagPersonal || task.Priority() != domain.MaxPriority {
		return false
	}
	deadline := task.Deadline()
	if deadline == nil {
		return false
	}
	dy, dm, dd := deadline.In(loc).Date()
	ny, nm, nd := now.In(loc).Date()
	return dy == ny && dm == nm && dd == nd
}
