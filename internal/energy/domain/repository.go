package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SampleRepository stores energy samples. Save upserts on the
// (user, date, hour) key so re-recording an hour replaces the reading.
type SampleRepository interface {
	Save(ctx context.Context, sample *EnergySample) error
	SaveBatch(ctx context.Context, samples []*EnergySample) error
	FindByUserDateHour(ctx context.Context, userID uuid.UUID, date time.Time, hour int) (*EnergySample, error)
	ListByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) ([]*EnergySample, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*EnergySample, error)
}

// PatternRepository stores per-hour historical means.
type PatternRepository interface {
	ReplaceForUser(ctx context.Context, userID uuid.UUID, patterns []HistoricalEnergyPattern) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]HistoricalEnergyPattern, error)
}
