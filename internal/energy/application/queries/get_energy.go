// Package queries holds the energy context's read operations.
package queries

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/energy/domain"
)

// GetDayForecastQuery returns the stored samples for a single day.
type GetDayForecastQuery struct {
	UserID uuid.UUID
	Date   time.Time
}

type GetDayForecastHandler struct {
	samples domain.SampleRepository
}

func NewGetDayForecastHandler(samples domain.SampleRepository) *GetDayForecastHandler {
	return &GetDayForecastHandler{samples: samples}
}

func (h *GetDayForecastHandler) Handle(ctx context.Context, q GetDayForecastQuery) ([]*domain.EnergySample, error) {
	return h.samples.ListByUserAndDate(ctx, q.UserID, q.Date)
}

// GetPatternsQuery returns the user's historical per-hour means.
type GetPatternsQuery struct {
	UserID uuid.UUID
}

type GetPatternsHandler struct {
	patterns domain.PatternRepository
}

func NewGetPatternsHandler(patterns domain.PatternRepository) *GetPatternsHandler {
	return &GetPatternsHandler{patterns: patterns}
}

func (h *GetPatternsHandler) Handle(ctx context.Context, q GetPatternsQuery) ([]domain.HistoricalEnergyPattern, error) {
	return h.patterns.ListByUser(ctx, q.UserID)
}
