package domain

import (
	"math"
	"time"
)

// Strategy selects how slots are enumerated for a target date.
type Strategy string

const (
	// StrategyToday schedules against today's recorded forecast.
	StrategyToday Strategy = "today"
	// StrategyFuture schedules against historical patterns.
	StrategyFuture Strategy = "future"
)

// Classifier thresholds. A patch smaller than these keeps the task's
// current placement.
const (
	reschedulePriorityDelta = 2
	rescheduleDurationDelta = 30
)

// IsDateOnly reports whether a timestamp means "sometime on this day":
// clients encode that as local midnight in the user's timezone.
func IsDateOnly(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	return local.Hour() == 0 && local.Minute() == 0 && local.Second() == 0 && local.Nanosecond() == 0
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

// NeedsInitialScheduling reports whether a newly submitted task requires
// an engine run: it is auto-scheduled and carries either a date-only
// start ("sometime this day") or only a deadline.
func NeedsInitialScheduling(task *Task, loc *time.Location) bool {
	if !task.IsAutoSchedule() {
		return false
	}
	start := task.StartTime()
	if start != nil {
		return IsDateOnly(*start, loc)
	}
	return task.EndTime() != nil
}

// TaskPatch is a partial task update. Nil fields are untouched;
// ClearStartTime distinguishes "remove the start" from "leave it".
type TaskPatch struct {
	Title            *string
	Description      *string
	EstimatedMinutes *int
	Priority         *int
	Tag              *Tag
	IsAutoSchedule   *bool
	StartTime        *time.Time
	ClearStartTime   bool
	EndTime          *time.Time
	Status           *Status
}

// ChangesRequireRescheduling reports whether applying the patch should
// trigger a fresh engine run: the start is cleared or degraded to
// date-only, the priority or duration moves materially, or the deadline
// is pulled earlier.
func ChangesRequireRescheduling(task *Task, patch TaskPatch, loc *time.Location) bool {
	if !task.IsAutoSchedule() && (patch.IsAutoSchedule == nil || !*patch.IsAutoSchedule) {
		return false
	}
	if patch.ClearStartTime {
		return true
	}
	if patch.StartTime != nil && IsDateOnly(*patch.StartTime, loc) {
		return true
	}
	if patch.Priority != nil && abs(*patch.Priority-task.Priority()) >= reschedulePriorityDelta {
		return true
	}
	if patch.EstimatedMinutes != nil && abs(*patch.EstimatedMinutes-task.EstimatedMinutes()) >= rescheduleDurationDelta {
		return true
	}
	if patch.EndTime != nil {
		current := task.EndTime()
		if current != nil && patch.EndTime.Before(*current) {
			return true
		}
	}
	return false
}

// DetermineTargetDate resolves the day the engine should try first, as
// local midnight, or nil when the task gives nothing to anchor on.
func DetermineTargetDate(task *Task, now time.Time, loc *time.Location) *time.Time {
	if start := task.StartTime(); start != nil && IsDateOnly(*start, loc) {
		day := StartOfDay(*start, loc)
		return &day
	}
	if task.StartTime() == nil && task.EndTime() != nil {
		day := StartOfDay(now, loc)
		return &day
	}
	if deadline := task.Deadline(); deadline != nil && deadline.After(now) {
		day := StartOfDay(*deadline, loc)
		return &day
	}
	return nil
}

// DetermineStrategy picks today's forecast when the target shares
// today's UTC calendar day, historical patterns otherwise.
func DetermineStrategy(targetDate, now time.Time) Strategy {
	ty, tm, td := targetDate.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	if ty == ny && tm == nm && td == nd {
		return StrategyToday
	}
	return StrategyFuture
}

// SchedulingWindow is the number of days the engine may look ahead,
// clipped by the deadline (or the start time when no deadline exists).
func SchedulingWindow(task *Task, now time.Time) int {
	const defaultWindow = 7
	anchor := task.Deadline()
	if anchor == nil {
		anchor = task.StartTime()
	}
	if anchor == nil || !anchor.After(now) {
		return defaultWindow
	}
	days := int(math.Ceil(anchor.Sub(now).Hours() / 24))
	if days < 1 {
		days = 1
	}
	if days > defaultWindow {
		return defaultWindow
	}
	return days
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
