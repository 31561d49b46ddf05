package api

import (
	"errors"
	"net/http"
	"time"

	energyDomain "github.com/voltahq/volta/internal/energy/domain"
	identityCommands "github.com/voltahq/volta/internal/identity/application/commands"
	identityDomain "github.com/voltahq/volta/internal/identity/domain"
	notifDomain "github.com/voltahq/volta/internal/notifications/domain"
	schedulingDomain "github.com/voltahq/volta/internal/scheduling/domain"
)

type taskResponse struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	EstimatedMinutes int        `json:"estimatedMinutes"`
	Priority         int        `json:"priority"`
	Tag              string     `json:"tag"`
	IsAutoSchedule   bool       `json:"isAutoSchedule"`
	Status           string     `json:"status"`
	StartTime        *time.Time `json:"startTime,omitempty"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	NeedsAttention   bool       `json:"needsAttention"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func toTaskResponse(t *schedulingDomain.Task) taskResponse {
	return taskResponse{
		ID:               t.ID().String(),
		Title:            t.Title(),
		Description:      t.Description(),
		EstimatedMinutes: t.EstimatedMinutes(),
		Priority:         t.Priority(),
		Tag:              string(t.Tag()),
		IsAutoSchedule:   t.IsAutoSchedule(),
		Status:           string(t.Status()),
		StartTime:        t.StartTime(),
		EndTime:          t.EndTime(),
		NeedsAttention:   t.NeedsAttention(),
		CreatedAt:        t.CreatedAt(),
		UpdatedAt:        t.UpdatedAt(),
	}
}

func toTaskResponses(tasks []*schedulingDomain.Task) []taskResponse {
	out := make([]taskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, toTaskResponse(t))
	}
	return out
}

// taskEnvelope carries a task plus the notifications the decision that
// produced it emitted, in emission order.
type taskEnvelope struct {
	Task          taskResponse               `json:"task"`
	Notifications []notifDomain.Notification `json:"notifications"`
}

func toTaskEnvelope(t *schedulingDomain.Task, notifications []notifDomain.Notification) taskEnvelope {
	if notifications == nil {
		notifications = []notifDomain.Notification{}
	}
	return taskEnvelope{Task: toTaskResponse(t), Notifications: notifications}
}

type itemResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	TaskID    *string   `json:"taskId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func toItemResponse(i *schedulingDomain.ScheduleItem) itemResponse {
	resp := itemResponse{
		ID:        i.ID().String(),
		Type:      string(i.Type()),
		Title:     i.Title(),
		StartTime: i.StartTime(),
		EndTime:   i.EndTime(),
		CreatedAt: i.CreatedAt(),
	}
	if taskID := i.TaskID(); taskID != nil {
		s := taskID.String()
		resp.TaskID = &s
	}
	return resp
}

func toItemResponses(items []*schedulingDomain.ScheduleItem) []itemResponse {
	out := make([]itemResponse, 0, len(items))
	for _, i := range items {
		out = append(out, toItemResponse(i))
	}
	return out
}

type itemEnvelope struct {
	Item          itemResponse               `json:"item"`
	Notifications []notifDomain.Notification `json:"notifications"`
}

type sampleResponse struct {
	Date             string  `json:"date"`
	Hour             int     `json:"hour"`
	Level            float64 `json:"level"`
	Stage            string  `json:"stage"`
	Mood             string  `json:"mood,omitempty"`
	HasManualCheckIn bool    `json:"hasManualCheckIn"`
}

func toSampleResponse(s *energyDomain.EnergySample) sampleResponse {
	return sampleResponse{
		Date:             s.Date().Format("2006-01-02"),
		Hour:             s.Hour(),
		Level:            s.Level(),
		Stage:            string(s.Stage()),
		Mood:             s.Mood(),
		HasManualCheckIn: s.HasManualCheckIn(),
	}
}

type patternResponse struct {
	Hour          int       `json:"hour"`
	AverageEnergy float64   `json:"averageEnergy"`
	SampleCount   int       `json:"sampleCount"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toPatternResponse(p energyDomain.HistoricalEnergyPattern) patternResponse {
	return patternResponse{
		Hour:          p.Hour,
		AverageEnergy: p.AverageEnergy,
		SampleCount:   p.SampleCount,
		UpdatedAt:     p.UpdatedAt,
	}
}

type sleepScheduleResponse struct {
	Bedtime    int    `json:"bedtime"`
	WakeHour   int    `json:"wakeHour"`
	Chronotype string `json:"chronotype"`
}

type userResponse struct {
	ID            string                `json:"id"`
	Email         string                `json:"email"`
	Timezone      string                `json:"timezone"`
	SleepSchedule sleepScheduleResponse `json:"sleepSchedule"`
	CreatedAt     time.Time             `json:"createdAt"`
}

func toUserResponse(u *identityDomain.User) userResponse {
	schedule := u.SleepSchedule()
	return userResponse{
		ID:       u.ID().String(),
		Email:    u.Email(),
		Timezone: u.Timezone(),
		SleepSchedule: sleepScheduleResponse{
			Bedtime:    schedule.Bedtime,
			WakeHour:   schedule.WakeHour,
			Chronotype: string(schedule.Chronotype),
		},
		CreatedAt: u.CreatedAt(),
	}
}

// handleError maps domain sentinels onto HTTP statuses. Anything
// unrecognized is a 500 with a generic body.
func (h *Handler) handleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedulingDomain.ErrTaskNotFound),
		errors.Is(err, schedulingDomain.ErrItemNotFound),
		errors.Is(err, identityDomain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, identityDomain.ErrWrongCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, identityDomain.ErrEmailTaken),
		errors.Is(err, schedulingDomain.ErrNoOptimalSlot),
		errors.Is(err, schedulingDomain.ErrImmovableConflict),
		errors.Is(err, schedulingDomain.ErrTaskCompleted):
		writeError(w, http.StatusConflict, err.Error())

	case errors.Is(err, schedulingDomain.ErrInvalidTitle),
		errors.Is(err, schedulingDomain.ErrInvalidDuration),
		errors.Is(err, schedulingDomain.ErrInvalidPriority),
		errors.Is(err, schedulingDomain.ErrInvalidTag),
		errors.Is(err, schedulingDomain.ErrInvalidInterval),
		errors.Is(err, schedulingDomain.ErrInvalidItemType),
		errors.Is(err, schedulingDomain.ErrDeadlineInfeasible),
		errors.Is(err, energyDomain.ErrInvalidEnergyLevel),
		errors.Is(err, energyDomain.ErrInvalidSampleHour),
		errors.Is(err, identityDomain.ErrInvalidEmail),
		errors.Is(err, identityDomain.ErrInvalidHour),
		errors.Is(err, identityDomain.ErrInvalidTimezone),
		errors.Is(err, identityDomain.ErrInvalidChronotype),
		errors.Is(err, identityCommands.ErrPasswordTooShort):
		writeError(w, http.StatusBadRequest, err.Error())

	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
