package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	scheduleCommands "github.com/voltahq/volta/internal/scheduling/application/commands"
	scheduleQueries "github.com/voltahq/volta/internal/scheduling/application/queries"
	"github.com/voltahq/volta/internal/scheduling/domain"
)

type createTaskRequest struct {
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	EstimatedMinutes int        `json:"estimatedMinutes"`
	Priority         int        `json:"priority"`
	Tag              string     `json:"tag"`
	IsAutoSchedule   *bool      `json:"isAutoSchedule"`
	StartTime        *time.Time `json:"startTime"`
	EndTime          *time.Time `json:"endTime"`
}

// CreateTask creates a task, running the decision engine first when the
// submission asks to be placed. A refusal returns 409 with the engine's
// notifications and writes nothing.
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	isAuto := true
	if req.IsAutoSchedule != nil {
		isAuto = *req.IsAutoSchedule
	}

	result, err := h.deps.CreateTask.Handle(r.Context(), scheduleCommands.CreateTaskCommand{
		UserID:           userIDFrom(r.Context()),
		Title:            req.Title,
		Description:      req.Description,
		EstimatedMinutes: req.EstimatedMinutes,
		Priority:         req.Priority,
		Tag:              req.Tag,
		IsAutoSchedule:   isAuto,
		StartTime:        req.StartTime,
		EndTime:          req.EndTime,
	})
	if err != nil {
		if result != nil && (errors.Is(err, domain.ErrNoOptimalSlot) || errors.Is(err, domain.ErrImmovableConflict)) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":         err.Error(),
				"notifications": result.Notifications,
			})
			return
		}
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTaskEnvelope(result.Task, result.Notifications))
}

// ListTasks lists the caller's tasks, optionally narrowed by status and
// date range.
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	query := scheduleQueries.ListTasksQuery{UserID: userIDFrom(r.Context())}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.Status(raw)
		if status != domain.StatusPending && status != domain.StatusCompleted {
			writeError(w, http.StatusBadRequest, "status must be pending or completed")
			return
		}
		query.Status = &status
	}

	var err error
	if query.StartDate, err = parseDateParam(r, "startDate"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if query.EndDate, err = parseDateParam(r, "endDate"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	tasks, err := h.deps.ListTasks.Handle(r.Context(), query)
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponses(tasks))
}

// GetTask fetches one task owned by the caller.
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	task, err := h.deps.GetTask.Handle(r.Context(), scheduleQueries.GetTaskQuery{
		UserID: userIDFrom(r.Context()),
		TaskID: taskID,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskResponse(task))
}

type updateTaskRequest struct {
	Title            *string         `json:"title"`
	Description      *string         `json:"description"`
	EstimatedMinutes *int            `json:"estimatedMinutes"`
	Priority         *int            `json:"priority"`
	Tag              *string         `json:"tag"`
	IsAutoSchedule   *bool           `json:"isAutoSchedule"`
	StartTime        json.RawMessage `json:"startTime"`
	EndTime          *time.Time      `json:"endTime"`
	Status           *string         `json:"status"`
}

var jsonNull = []byte("null")

// UpdateTask applies a partial update. An explicit `"startTime": null`
// clears the placement; an absent field leaves it alone.
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	var req updateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := domain.TaskPatch{
		Title:            req.Title,
		Description:      req.Description,
		EstimatedMinutes: req.EstimatedMinutes,
		Priority:         req.Priority,
		IsAutoSchedule:   req.IsAutoSchedule,
		EndTime:          req.EndTime,
	}
	if req.Tag != nil {
		tag, err := domain.ParseTag(*req.Tag)
		if err != nil {
			h.handleError(w, err)
			return
		}
		patch.Tag = &tag
	}
	if req.Status != nil {
		status := domain.Status(*req.Status)
		if status != domain.StatusPending && status != domain.StatusCompleted {
			writeError(w, http.StatusBadRequest, "status must be pending or completed")
			return
		}
		patch.Status = &status
	}
	if len(req.StartTime) > 0 {
		if bytes.Equal(req.StartTime, jsonNull) {
			patch.ClearStartTime = true
		} else {
			var start time.Time
			if err := json.Unmarshal(req.StartTime, &start); err != nil {
				writeError(w, http.StatusBadRequest, "invalid startTime")
				return
			}
			patch.StartTime = &start
		}
	}

	result, err := h.deps.UpdateTask.Handle(r.Context(), scheduleCommands.UpdateTaskCommand{
		UserID: userIDFrom(r.Context()),
		TaskID: taskID,
		Patch:  patch,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskEnvelope(result.Task, result.Notifications))
}

// DeleteTask removes a task and its mirror schedule item.
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	err = h.deps.DeleteTask.Handle(r.Context(), scheduleCommands.DeleteTaskCommand{
		UserID: userIDFrom(r.Context()),
		TaskID: taskID,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RescheduleTask re-places a task on demand. When no slot can be found
// the task is left untouched and the caller gets a 409.
func (h *Handler) RescheduleTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	result, err := h.deps.RescheduleTask.Handle(r.Context(), scheduleCommands.RescheduleTaskCommand{
		UserID: userIDFrom(r.Context()),
		TaskID: taskID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrNoOptimalSlot) {
			writeJSON(w, http.StatusConflict, map[string]string{
				"message": "Could not find an optimal time to reschedule the task.",
			})
			return
		}
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toTaskEnvelope(result.Task, result.Notifications))
}

// parseDateParam reads an optional date query parameter accepting either
// a bare date or a full timestamp.
func parseDateParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.New(name + " must be YYYY-MM-DD or RFC 3339")
	}
	return &t, nil
}
