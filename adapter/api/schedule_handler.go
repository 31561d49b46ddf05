package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	notifDomain "github.com/voltahq/volta/internal/notifications/domain"
	scheduleCommands "github.com/voltahq/volta/internal/scheduling/application/commands"
	scheduleQueries "github.com/voltahq/volta/internal/scheduling/application/queries"
	"github.com/voltahq/volta/internal/scheduling/domain"
)

type addScheduleItemRequest struct {
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	StartTime time.Time  `json:"startTime"`
	EndTime   time.Time  `json:"endTime"`
	TaskID    *uuid.UUID `json:"taskId"`
}

// AddScheduleItem places an item directly on the calendar. Adding an
// event displaces auto-scheduled tasks in its way.
func (h *Handler) AddScheduleItem(w http.ResponseWriter, r *http.Request) {
	var req addScheduleItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.deps.AddScheduleItem.Handle(r.Context(), scheduleCommands.AddScheduleItemCommand{
		UserID:    userIDFrom(r.Context()),
		Type:      req.Type,
		Title:     req.Title,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		TaskID:    req.TaskID,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	notifications := result.Notifications
	if notifications == nil {
		notifications = []notifDomain.Notification{}
	}
	writeJSON(w, http.StatusCreated, itemEnvelope{
		Item:          toItemResponse(result.Item),
		Notifications: notifications,
	})
}

// ListSchedule lists the caller's calendar items.
func (h *Handler) ListSchedule(w http.ResponseWriter, r *http.Request) {
	query := scheduleQueries.ListScheduleQuery{UserID: userIDFrom(r.Context())}

	if raw := r.URL.Query().Get("type"); raw != "" {
		itemType, err := domain.ParseItemType(raw)
		if err != nil {
			h.handleError(w, err)
			return
		}
		query.Type = &itemType
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

	items, err := h.deps.ListSchedule.Handle(r.Context(), query)
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toItemResponses(items))
}

// RemoveScheduleItem deletes a calendar item. Removing an event frees
// its interval, so pending auto tasks are offered a better slot.
func (h *Handler) RemoveScheduleItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := uuid.Parse(r.PathValue("itemID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	_, err = h.deps.RemoveScheduleItem.Handle(r.Context(), scheduleCommands.RemoveScheduleItemCommand{
		UserID: userIDFrom(r.Context()),
		ItemID: itemID,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
