package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/shared/domain"
)

// Stage labels the region of the daily energy curve an hour falls into.
type Stage string

const (
	StageMorningRise       Stage = "morning_rise"
	StageMorningPeak       Stage = "morning_peak"
	StageMiddayDip         Stage = "midday_dip"
	StageAfternoonRebound  Stage = "afternoon_rebound"
	StageWindDown          Stage = "wind_down"
	StageSleepPhase        Stage = "sleep_phase"
)

var (
	ErrInvalidEnergyLevel = errors.New("energy level must be between 0 and 1")
	ErrInvalidSampleHour  = errors.New("sample hour must be between 0 and 23")
	ErrSampleNotFound     = errors.New("energy sample not found")
)

// EnergySample is one observed or generated energy reading for a single
// hour of a single day. Samples are unique per (user, date, hour); a
// manual check-in overwrites a generated sample for the same slot.
type EnergySample struct {
	domain.BaseEntity
	userID           uuid.UUID
	date             time.Time // day precision, midnight in the user's zone
	hour             int
	level            float64
	stage            Stage
	mood             string
	hasManualCheckIn bool
}

func NewEnergySample(userID uuid.UUID, date time.Time, hour int, level float64, stage Stage, mood string, manual bool) (*EnergySample, error) {
	if hour < 0 || hour > 23 {
		return nil, ErrInvalidSampleHour
	}
	if level < 0 || level > 1 {
		return nil, ErrInvalidEnergyLevel
	}
	return &EnergySample{
		BaseEntity:       domain.NewBaseEntity(),
		userID:           userID,
		date:             truncateToDay(date),
		hour:             hour,
		level:            level,
		stage:            stage,
		mood:             mood,
		hasManualCheckIn: manual,
	}, nil
}

// RehydrateEnergySample reconstructs a sample from persistence.
func RehydrateEnergySample(id, userID uuid.UUID, date time.Time, hour int, level float64, stage Stage, mood string, manual bool, createdAt, updatedAt time.Time) *EnergySample {
	return &EnergySample{
		BaseEntity:       domain.RehydrateBaseEntity(id, createdAt, updatedAt),
		userID:           userID,
		date:             truncateToDay(date),
		hour:             hour,
		level:            level,
		stage:            stage,
		mood:             mood,
		hasManualCheckIn: manual,
	}
}

func (s *EnergySample) UserID() uuid.UUID     { return s.userID }
func (s *EnergySample) Date() time.Time       { return s.date }
func (s *EnergySample) Hour() int             { return s.hour }
func (s *EnergySample) Level() float64        { return s.level }
func (s *EnergySample) Stage() Stage          { return s.stage }
func (s *EnergySample) Mood() string          { return s.mood }
func (s *EnergySample) HasManualCheckIn() bool { return s.hasManualCheckIn }

// Record replaces the reading for this slot with a manual check-in.
func (s *EnergySample) Record(level float64, mood string) error {
	if level < 0 || level > 1 {
		return ErrInvalidEnergyLevel
	}
	s.level = level
	if mood != "" {
		s.mood = mood
	}
	s.hasManualCheckIn = true
	s.Touch()
	return nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MoodForStage maps a curve stage to a decorative mood label used when
// seeding generated data. The label carries no scheduling semantics.
func MoodForStage(stage Stage) string {
	switch stage {
	case StageMorningRise:
		return "waking up"
	case StageMorningPeak:
		return "energized"
	case StageMiddayDip:
		return "sluggish"
	case StageAfternoonRebound:
		return "focused"
	case StageWindDown:
		return "winding down"
	case StageSleepPhase:
		return "asleep"
	default:
		return "neutral"
	}
}
