package api

import (
	"encoding/json"
	"net/http"
	"time"

	energyCommands "github.com/voltahq/volta/internal/energy/application/commands"
	energyQueries "github.com/voltahq/volta/internal/energy/application/queries"
)

type recordEnergyRequest struct {
	Date  string  `json:"date"`
	Hour  int     `json:"hour"`
	Level float64 `json:"level"`
	Mood  string  `json:"mood"`
}

// RecordEnergy records a manual energy check-in and refreshes the
// caller's historical patterns.
func (h *Handler) RecordEnergy(w http.ResponseWriter, r *http.Request) {
	var req recordEnergyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	sample, err := h.deps.RecordSample.Handle(r.Context(), energyCommands.RecordSampleCommand{
		UserID: userIDFrom(r.Context()),
		Date:   date,
		Hour:   req.Hour,
		Level:  req.Level,
		Mood:   req.Mood,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSampleResponse(sample))
}

// GetEnergy returns the caller's samples for one day, defaulting to
// today in UTC when no date is given.
func (h *Handler) GetEnergy(w http.ResponseWriter, r *http.Request) {
	date := time.Now().UTC().Truncate(24 * time.Hour)
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	samples, err := h.deps.DayForecast.Handle(r.Context(), energyQueries.GetDayForecastQuery{
		UserID: userIDFrom(r.Context()),
		Date:   date,
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	out := make([]sampleResponse, 0, len(samples))
	for _, s := range samples {
		out = append(out, toSampleResponse(s))
	}
	writeJSON(w, http.StatusOK, out)
}

// GetEnergyPatterns returns the caller's historical per-hour means.
func (h *Handler) GetEnergyPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.deps.Patterns.Handle(r.Context(), energyQueries.GetPatternsQuery{
		UserID: userIDFrom(r.Context()),
	})
	if err != nil {
		h.handleError(w, err)
		return
	}

	out := make([]patternResponse, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, toPatternResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}
