package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/voltahq/volta/internal/shared/domain"
)

var (
	ErrItemNotFound    = errors.New("schedule item not found")
	ErrInvalidInterval = errors.New("end time must be after start time")
	ErrInvalidItemType = errors.New("item type must be task or event")
)

// EventBuffer is the margin applied on both sides of a calendar event
// when checking for conflicts. Tasks abut events no closer than this.
const EventBuffer = 10 * time.Minute

// ItemType distinguishes task mirrors from immovable calendar events.
type ItemType string

const (
	ItemTypeTask  ItemType = "task"
	ItemTypeEvent ItemType = "event"
)

func ParseItemType(s string) (ItemType, error) {
	switch ItemType(s) {
	case ItemTypeTask, ItemTypeEvent:
		return ItemType(s), nil
	default:
		return "", ErrInvalidItemType
	}
}

// ScheduleItem is one calendar placement. Task items mirror their
// backing task; event items are externally fixed and never move.
type ScheduleItem struct {
	sharedDomain.BaseEntity
	userID    uuid.UUID
	taskID    *uuid.UUID
	title     string
	itemType  ItemType
	startTime time.Time
	endTime   time.Time
}

// NewTaskItem creates the mirror item for a placed task.
func NewTaskItem(task *Task) (*ScheduleItem, error) {
	start := task.StartTime()
	end := task.EndTime()
	if start == nil || end == nil {
		return nil, ErrInvalidInterval
	}
	taskID := task.ID()
	return newScheduleItem(task.UserID(), &taskID, task.Title(), ItemTypeTask, *start, *end)
}

// NewEvent creates an immovable calendar event.
func NewEvent(userID uuid.UUID, title string, start, end time.Time) (*ScheduleItem, error) {
	return newScheduleItem(userID, nil, title, ItemTypeEvent, start, end)
}

func newScheduleItem(userID uuid.UUID, taskID *uuid.UUID, title string, itemType ItemType, start, end time.Time) (*ScheduleItem, error) {
	if title == "" {
		return nil, ErrInvalidTitle
	}
	if !end.After(start) {
		return nil, ErrInvalidInterval
	}
	return &ScheduleItem{
		BaseEntity: sharedDomain.NewBaseEntity(),
		userID:     userID,
		taskID:     taskID,
		title:      title,
		itemType:   itemType,
		startTime:  start,
		endTime:    end,
	}, nil
}

// RehydrateScheduleItem reconstructs an item from persistence.
func RehydrateScheduleItem(base sharedDomain.BaseEntity, userID uuid.UUID, taskID *uuid.UUID, title string, itemType ItemType, start, end time.Time) *ScheduleItem {
	return &ScheduleItem{
		BaseEntity: base,
		userID:     userID,
		taskID:     taskID,
		title:      title,
		itemType:   itemType,
		startTime:  start,
		endTime:    end,
	}
}

func (i *ScheduleItem) UserID() uuid.UUID    { return i.userID }
func (i *ScheduleItem) Title() string        { return i.title }
func (i *ScheduleItem) Type() ItemType       { return i.itemType }
func (i *ScheduleItem) StartTime() time.Time { return i.startTime }
func (i *ScheduleItem) EndTime() time.Time   { return i.endTime }

// TaskID returns the backing task for task items, nil for events.
func (i *ScheduleItem) TaskID() *uuid.UUID {
	if i.taskID == nil {
		return nil
	}
	id := *i.taskID
	return &id
}

// Reschedule moves a task mirror to its task's new slot.
func (i *ScheduleItem) Reschedule(start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidInterval
	}
	i.startTime = start
	i.endTime = end
	i.Touch()
	return nil
}

// ConflictInterval is the interval the item occupies for conflict
// checks: events are widened by the buffer, task items are verbatim.
func (i *ScheduleItem) ConflictInterval() (time.Time, time.Time) {
	if i.itemType == ItemTypeEvent {
		return i.startTime.Add(-EventBuffer), i.endTime.Add(EventBuffer)
	}
	return i.startTime, i.endTime
}

// ConflictsWith reports whether the candidate interval [start, end)
// overlaps the item's conflict interval.
func (i *ScheduleItem) ConflictsWith(start, end time.Time) bool {
	itemStart, itemEnd := i.ConflictInterval()
	return start.Before(itemEnd) && itemStart.Before(end)
}

// Overlaps reports raw interval overlap, with no event buffer applied.
func (i *ScheduleItem) Overlaps(start, end time.Time) bool {
	return start.Before(i.endTime) && i.startTime.Before(end)
}
