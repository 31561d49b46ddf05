package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskRef is the slice of a task a notification needs. Defined here so
// the notifications context does not depend on the scheduling domain.
type TaskRef struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Title    string
	Tag      string
	Priority int
	Deadline *time.Time
}

// NewNoOptimalTime reports that no slot satisfied the task's constraints
// anywhere in the look-ahead window.
func NewNoOptimalTime(task TaskRef) Notification {
	n := newNotification(task.UserID, TypeNoOptimalTime, SeverityWarning,
		"No optimal time found",
		fmt.Sprintf("We couldn't find a good time for %q. It needs your attention.", task.Title))
	n.Metadata = Metadata{
		TaskID:    &task.ID,
		TaskTitle: task.Title,
		Tag:       task.Tag,
		Priority:  task.Priority,
		Deadline:  task.Deadline,
	}
	n.Actions = []Action{
		{Label: "Pick a time", Action: "schedule_manually", Style: ActionStylePrimary, Payload: map[string]any{"task_id": task.ID.String()}},
		{Label: "Dismiss", Action: "dismiss", Style: ActionStyleSecondary},
	}
	return n
}

// NewTaskRescheduled reports a successful automatic move.
func NewTaskRescheduled(task TaskRef, oldStart *time.Time, newStart time.Time) Notification {
	n := newNotification(task.UserID, TypeTaskRescheduled, SeveritySuccess,
		"Task rescheduled",
		fmt.Sprintf("%q was moved to %s.", task.Title, newStart.Format("Mon 15:04")))
	n.Metadata = Metadata{
		TaskID:       &task.ID,
		TaskTitle:    task.Title,
		Tag:          task.Tag,
		Priority:     task.Priority,
		OldStartTime: oldStart,
		NewStartTime: &newStart,
	}
	return n
}

// NewTaskDisplaced reports that a higher-priority task pushed this one
// out of its slot. newStart is nil when no replacement slot was found.
func NewTaskDisplaced(task TaskRef, displacedBy TaskRef, oldStart time.Time, newStart *time.Time) Notification {
	message := fmt.Sprintf("%q was bumped by %q.", task.Title, displacedBy.Title)
	severity := SeverityWarning
	if newStart != nil {
		message = fmt.Sprintf("%q was bumped by %q and moved to %s.", task.Title, displacedBy.Title, newStart.Format("Mon 15:04"))
		severity = SeverityInfo
	}
	n := newNotification(task.UserID, TypeTaskDisplaced, severity, "Task displaced", message)
	n.Metadata = Metadata{
		TaskID:           &task.ID,
		TaskTitle:        task.Title,
		Tag:              task.Tag,
		Priority:         task.Priority,
		OldStartTime:     &oldStart,
		NewStartTime:     newStart,
		DisplacedByID:    &displacedBy.ID,
		DisplacedByTitle: displacedBy.Title,
	}
	if newStart == nil {
		n.Actions = []Action{
			{Label: "Pick a time", Action: "schedule_manually", Style: ActionStylePrimary, Payload: map[string]any{"task_id": task.ID.String()}},
		}
	}
	return n
}

// NewLateWindDownConflict reports a placement inside the two hours
// before bedtime, allowed only as a deadline concession.
func NewLateWindDownConflict(task TaskRef, start time.Time) Notification {
	n := newNotification(task.UserID, TypeLateWindDownConflict, SeverityWarning,
		"Scheduled close to bedtime",
		fmt.Sprintf("%q is due today, so it was placed at %s, close to your wind-down.", task.Title, start.Format("15:04")))
	n.Metadata = Metadata{
		TaskID:       &task.ID,
		TaskTitle:    task.Title,
		Tag:          task.Tag,
		Priority:     task.Priority,
		NewStartTime: &start,
		Deadline:     task.Deadline,
	}
	n.Actions = []Action{
		{Label: "Keep it", Action: "dismiss", Style: ActionStyleSecondary},
		{Label: "Move it", Action: "schedule_manually", Style: ActionStylePrimary, Payload: map[string]any{"task_id": task.ID.String()}},
	}
	return n
}

// NewDeadlineApproaching warns about an unfinished task nearing its
// deadline.
func NewDeadlineApproaching(task TaskRef, hoursRemaining int) Notification {
	n := newNotification(task.UserID, TypeDeadlineApproaching, SeverityWarning,
		"Deadline approaching",
		fmt.Sprintf("%q is due in about %d hours.", task.Title, hoursRemaining))
	n.Metadata = Metadata{
		TaskID:         &task.ID,
		TaskTitle:      task.Title,
		Tag:            task.Tag,
		Priority:       task.Priority,
		Deadline:       task.Deadline,
		HoursRemaining: hoursRemaining,
	}
	n.Actions = []Action{
		{Label: "Do it now", Action: "start_task", Style: ActionStylePrimary, Payload: map[string]any{"task_id": task.ID.String()}},
	}
	return n
}

// NewManualTaskConflict reports overlap with a manually placed task,
// which the scheduler never moves.
func NewManualTaskConflict(task TaskRef, conflicting []ConflictingItem) Notification {
	n := newNotification(task.UserID, TypeManualTaskConflict, SeverityWarning,
		"Conflict with a pinned task",
		fmt.Sprintf("%q overlaps a task you placed yourself.", task.Title))
	n.Metadata = Metadata{
		TaskID:           &task.ID,
		TaskTitle:        task.Title,
		Tag:              task.Tag,
		Priority:         task.Priority,
		ConflictingItems: conflicting,
		ConflictCount:    len(conflicting),
	}
	return n
}

// NewEventConflict reports that a new calendar event overlaps existing
// schedule items that could not all be moved.
func NewEventConflict(userID uuid.UUID, eventTitle string, conflicting []ConflictingItem) Notification {
	n := newNotification(userID, TypeEventConflict, SeverityWarning,
		"Event conflicts with your schedule",
		fmt.Sprintf("%q overlaps %d scheduled item(s).", eventTitle, len(conflicting)))
	n.Metadata = Metadata{
		TaskTitle:        eventTitle,
		ConflictingItems: conflicting,
		ConflictCount:    len(conflicting),
	}
	return n
}

// NewMultipleConflicts rolls several simultaneous conflicts into one
// digest instead of a burst of individual alerts.
func NewMultipleConflicts(userID uuid.UUID, conflicting []ConflictingItem) Notification {
	n := newNotification(userID, TypeMultipleConflicts, SeverityError,
		"Several schedule conflicts",
		fmt.Sprintf("%d items on your schedule conflict and need review.", len(conflicting)))
	n.Metadata = Metadata{
		ConflictingItems: conflicting,
		ConflictCount:    len(conflicting),
	}
	n.Actions = []Action{
		{Label: "Review schedule", Action: "open_schedule", Style: ActionStylePrimary},
	}
	return n
}
