package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/shared/domain"
)

// EnergySampleRecorded is emitted when a user checks in an energy reading.
type EnergySampleRecorded struct {
	domain.BaseEvent
	UserID uuid.UUID `json:"user_id"`
	Date   time.Time `json:"date"`
	Hour   int       `json:"hour"`
	Level  float64   `json:"level"`
	Manual bool      `json:"manual"`
}

func NewEnergySampleRecorded(sample *EnergySample) EnergySampleRecorded {
	return EnergySampleRecorded{
		BaseEvent: domain.NewBaseEvent(sample.UserID(), "energy", "energy.sample.recorded"),
		UserID:    sample.UserID(),
		Date:      sample.Date(),
		Hour:      sample.Hour(),
		Level:     sample.Level(),
		Manual:    sample.HasManualCheckIn(),
	}
}

// EnergyPatternsUpdated is emitted after the per-hour historical means
// are recomputed.
type EnergyPatternsUpdated struct {
	domain.BaseEvent
	UserID      uuid.UUID `json:"user_id"`
	HoursCovered int      `json:"hours_covered"`
}

func NewEnergyPatternsUpdated(userID uuid.UUID, hoursCovered int) EnergyPatternsUpdated {
	return EnergyPatternsUpdated{
		BaseEvent:    domain.NewBaseEvent(userID, "energy", "energy.patterns.updated"),
		UserID:       userID,
		HoursCovered: hoursCovered,
	}
}
