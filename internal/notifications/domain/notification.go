// Package domain defines the notifications produced by scheduling
// decisions. A notification is an immutable record handed to the outbox;
// delivery is the worker's problem.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminates the notification payload.
type Type string

const (
	TypeNoOptimalTime        Type = "no_optimal_time"
	TypeTaskRescheduled      Type = "task_rescheduled"
	TypeTaskDisplaced        Type = "task_displaced"
	TypeLateWindDownConflict Type = "late_wind_down_conflict"
	TypeDeadlineApproaching  Type = "task_deadline_approaching"
	TypeManualTaskConflict   Type = "manual_task_conflict"
	TypeEventConflict        Type = "event_conflict"
	TypeMultipleConflicts    Type = "multiple_conflicts"
)

// Severity drives presentation, nothing else.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// ActionStyle hints how a client should render an action button.
type ActionStyle string

const (
	ActionStylePrimary   ActionStyle = "primary"
	ActionStyleSecondary ActionStyle = "secondary"
	ActionStyleDanger    ActionStyle = "danger"
)

// Action is a suggested response a client can offer for a notification.
type Action struct {
	Label   string         `json:"label"`
	Action  string         `json:"action"`
	Style   ActionStyle    `json:"style"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ConflictingItem names a schedule item involved in a conflict.
type ConflictingItem struct {
	ItemID    uuid.UUID `json:"item_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Metadata carries the structured details clients render. Only the
// fields relevant to the notification's type are set.
type Metadata struct {
	TaskID           *uuid.UUID        `json:"task_id,omitempty"`
	TaskTitle        string            `json:"task_title,omitempty"`
	Tag              string            `json:"tag,omitempty"`
	Priority         int               `json:"priority,omitempty"`
	OldStartTime     *time.Time        `json:"old_start_time,omitempty"`
	NewStartTime     *time.Time        `json:"new_start_time,omitempty"`
	Deadline         *time.Time        `json:"deadline,omitempty"`
	HoursRemaining   int               `json:"hours_remaining,omitempty"`
	DisplacedByID    *uuid.UUID        `json:"displaced_by_id,omitempty"`
	DisplacedByTitle string            `json:"displaced_by_title,omitempty"`
	ConflictingItems []ConflictingItem `json:"conflicting_items,omitempty"`
	ConflictCount    int               `json:"conflict_count,omitempty"`
}

// Notification is one user-facing message produced by a scheduling
// decision.
type Notification struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Type      Type      `json:"type"`
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Actions   []Action  `json:"actions,omitempty"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"created_at"`
}

// RoutingKey places the notification on the broker's topic exchange.
func (n Notification) RoutingKey() string {
	return "notifications." + string(n.Type)
}

func newNotification(userID uuid.UUID, typ Type, severity Severity, title, message string) Notification {
	return Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Severity:  severity,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}
