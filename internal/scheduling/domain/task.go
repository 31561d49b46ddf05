// Package domain holds the scheduling context: tasks, calendar items and
// the pure classifier the decision engine is built on.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/voltahq/volta/internal/shared/domain"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrInvalidTitle       = errors.New("title is required")
	ErrInvalidDuration    = errors.New("estimated duration must be between 1 and 720 minutes")
	ErrInvalidPriority    = errors.New("priority must be between 1 and 5")
	ErrInvalidTag         = errors.New("tag must be deep, creative, admin or personal")
	ErrDeadlineInfeasible = errors.New("deadline is in the past or shorter than the task duration")
	ErrNoOptimalSlot      = errors.New("no optimal slot found")
	ErrImmovableConflict  = errors.New("placement conflicts with an immovable calendar item")
	ErrTaskCompleted      = errors.New("task is already completed")
)

// Tag classifies a task's cognitive demand and selects its energy band.
type Tag string

const (
	TagDeep     Tag = "deep"
	TagCreative Tag = "creative"
	TagAdmin    Tag = "admin"
	TagPersonal Tag = "personal"
	TagNone     Tag = ""
)

// ParseTag validates a tag string. The empty tag selects the default band.
func ParseTag(s string) (Tag, error) {
	switch Tag(s) {
	case TagDeep, TagCreative, TagAdmin, TagPersonal, TagNone:
		return Tag(s), nil
	default:
		return "", ErrInvalidTag
	}
}

// EnergyBand returns the inclusive [min, max] predicted-energy range a
// slot must fall in for a task with this tag.
func (t Tag) EnergyBand() (min, max float64) {
	switch t {
	case TagDeep:
		return 0.7, 1.0
	case TagCreative:
		return 0.4, 1.0
	case TagAdmin:
		return 0.3, 0.7
	case TagPersonal:
		return 0.1, 0.7
	default:
		return 0.3, 1.0
	}
}

// Status is the task lifecycle state. Transitions are one-way.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

const (
	MinDurationMinutes = 1
	MaxDurationMinutes = 720
	MinPriority        = 1
	MaxPriority        = 5
)

// Task is a unit of work to place on the calendar. While a task is
// unplaced its end time doubles as the deadline; once placed, start and
// end describe the slot and end still orders displacement ties.
type Task struct {
	sharedDomain.BaseAggregateRoot
	userID           uuid.UUID
	title            string
	description      string
	estimatedMinutes int
	priority         int
	tag              Tag
	isAutoSchedule   bool
	status           Status
	startTime        *time.Time
	endTime          *time.Time
	needsAttention   bool
}

// NewTask validates and creates a pending task.
func NewTask(userID uuid.UUID, title, description string, estimatedMinutes, priority int, tag Tag, isAutoSchedule bool, startTime, endTime *time.Time) (*Task, error) {
	if title == "" {
		return nil, ErrInvalidTitle
	}
	if estimatedMinutes < MinDurationMinutes || estimatedMinutes > MaxDurationMinutes {
		return nil, ErrInvalidDuration
	}
	if priority < MinPriority || priority > MaxPriority {
		return nil, ErrInvalidPriority
	}
	task := &Task{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		userID:            userID,
		title:             title,
		description:       description,
		estimatedMinutes:  estimatedMinutes,
		priority:          priority,
		tag:               tag,
		isAutoSchedule:    isAutoSchedule,
		status:            StatusPending,
		startTime:         copyTime(startTime),
		endTime:           copyTime(endTime),
	}
	return task, nil
}

// RehydrateTask reconstructs a task from persistence.
func RehydrateTask(
	base sharedDomain.BaseEntity,
	userID uuid.UUID,
	title, description string,
	estimatedMinutes, priority int,
	tag Tag,
	isAutoSchedule bool,
	status Status,
	startTime, endTime *time.Time,
	needsAttention bool,
) *Task {
	return &Task{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(base),
		userID:            userID,
		title:             title,
		description:       description,
		estimatedMinutes:  estimatedMinutes,
		priority:          priority,
		tag:               tag,
		isAutoSchedule:    isAutoSchedule,
		status:            status,
		startTime:         copyTime(startTime),
		endTime:           copyTime(endTime),
		needsAttention:    needsAttention,
	}
}

func (t *Task) UserID() uuid.UUID     { return t.userID }
func (t *Task) Title() string         { return t.title }
func (t *Task) Description() string   { return t.description }
func (t *Task) EstimatedMinutes() int { return t.estimatedMinutes }
func (t *Task) Priority() int         { return t.priority }
func (t *Task) Tag() Tag              { return t.tag }
func (t *Task) IsAutoSchedule() bool  { return t.isAutoSchedule }
func (t *Task) Status() Status        { return t.status }
func (t *Task) StartTime() *time.Time { return copyTime(t.startTime) }
func (t *Task) EndTime() *time.Time   { return copyTime(t.endTime) }
func (t *Task) NeedsAttention() bool  { return t.needsAttention }

// Duration is the estimated duration as a time.Duration.
func (t *Task) Duration() time.Duration {
	return time.Duration(t.estimatedMinutes) * time.Minute
}

// Deadline is the end time read as a due constraint. Nil means no
// deadline.
func (t *Task) Deadline() *time.Time { return copyTime(t.endTime) }

// IsPlaced reports whether the task holds a concrete slot, as opposed
// to a date-only wish or no time at all.
func (t *Task) IsPlaced(loc *time.Location) bool {
	return t.startTime != nil && t.endTime != nil && !IsDateOnly(*t.startTime, loc)
}

// IsDisplaceable reports whether the cascade may move this task.
// Only pending auto-scheduled tasks ever move.
func (t *Task) IsDisplaceable() bool {
	return t.isAutoSchedule && t.status == StatusPending
}

// Place assigns the task a concrete slot. End is derived from the
// duration regardless of any deadline previously stored in endTime.
func (t *Task) Place(start time.Time) {
	s := start
	e := start.Add(t.Duration())
	t.startTime = &s
	t.endTime = &e
	t.needsAttention = false
	t.Touch()
}

// ClearPlacement removes the task's slot, keeping it pending.
func (t *Task) ClearPlacement() {
	t.startTime = nil
	t.endTime = nil
	t.Touch()
}

// MarkNeedsAttention flags a task the engine could not place.
func (t *Task) MarkNeedsAttention() {
	t.needsAttention = true
	t.Touch()
}

// Complete transitions the task to its terminal state.
func (t *Task) Complete() error {
	if t.status == StatusCompleted {
		return ErrTaskCompleted
	}
	t.status = StatusCompleted
	t.Touch()
	return nil
}

// SetTitle, SetDescription and friends apply validated field updates.
func (t *Task) SetTitle(title string) error {
	if title == "" {
		return ErrInvalidTitle
	}
	t.title = title
	t.Touch()
	return nil
}

func (t *Task) SetDescription(description string) {
	t.description = description
	t.Touch()
}

func (t *Task) SetEstimatedMinutes(minutes int) error {
	if minutes < MinDurationMinutes || minutes > MaxDurationMinutes {
		return ErrInvalidDuration
	}
	t.estimatedMinutes = minutes
	t.Touch()
	return nil
}

func (t *Task) SetPriority(priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return ErrInvalidPriority
	}
	t.priority = priority
	t.Touch()
	return nil
}

func (t *Task) SetTag(tag Tag) {
	t.tag = tag
	t.Touch()
}

func (t *Task) SetAutoSchedule(auto bool) {
	t.isAutoSchedule = auto
	t.Touch()
}

// SetTimes overwrites the raw start/end pair, used when a patch supplies
// explicit times rather than asking for a fresh engine run.
func (t *Task) SetTimes(start, end *time.Time) {
	t.startTime = copyTime(start)
	t.endTime = copyTime(end)
	t.Touch()
}

// Displaces reports whether task n may push task e out of its slot:
// strictly higher priority wins, and an equal-priority tie goes to the
// earlier deadline. Everything else yields.
func Displaces(n, e *Task) bool {
	if n.priority != e.priority {
		return n.priority > e.priority
	}
	if n.endTime == nil || e.endTime == nil {
		return false
	}
	return n.endTime.Before(*e.endTime)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
