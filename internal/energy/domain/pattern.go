package domain

import (
	"time"

	"github.com/google/uuid"
)

// HistoricalEnergyPattern is the running per-hour mean of every sample a
// user has ever recorded for that hour of day. A pattern with
// SampleCount == 0 is an estimated default taken from the sleep curve,
// not an observation.
type HistoricalEnergyPattern struct {
	UserID        uuid.UUID
	Hour          int
	AverageEnergy float64
	SampleCount   int
	UpdatedAt     time.Time
}

// NewEstimatedPattern builds a zero-count placeholder for an hour with
// no recorded samples.
func NewEstimatedPattern(userID uuid.UUID, hour int, level float64) HistoricalEnergyPattern {
	return HistoricalEnergyPattern{
		UserID:        userID,
		Hour:          hour,
		AverageEnergy: level,
		SampleCount:   0,
		UpdatedAt:     time.Now().UTC(),
	}
}

// Fold merges one more observation into the running mean.
func (p *HistoricalEnergyPattern) Fold(level float64) {
	p.AverageEnergy = (p.AverageEnergy*float64(p.SampleCount) + level) / float64(p.SampleCount+1)
	p.SampleCount++
	p.UpdatedAt = time.Now().UTC()
}

// ComputePatterns recomputes the full per-hour mean set from scratch.
// Recomputing from the same sample set always yields the same means, so
// repeated pattern updates are idempotent.
func ComputePatterns(userID uuid.UUID, samples []*EnergySample) []HistoricalEnergyPattern {
	var sums [24]float64
	var counts [24]int
	for _, s := range samples {
		sums[s.Hour()] += s.Level()
		counts[s.Hour()]++
	}
	patterns := make([]HistoricalEnergyPattern, 0, 24)
	now := time.Now().UTC()
	for hour := 0; hour < 24; hour++ {
		if counts[hour] == 0 {
			continue
		}
		patterns = append(patterns, HistoricalEnergyPattern{
			UserID:        userID,
			Hour:          hour,
			AverageEnergy: sums[hour] / float64(counts[hour]),
			SampleCount:   counts[hour],
			UpdatedAt:     now,
		})
	}
	return patterns
}
