// Package services holds the energy substrate consumed by the scheduler:
// a per-hour energy lookup backed by today's forecast, by historical
// per-hour means, or by the generated sleep curve when nothing else is
// available.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/energy/domain"
	identity "github.com/voltahq/volta/internal/identity/domain"
)

// HourEnergy is one hour of predicted energy.
type HourEnergy struct {
	Hour  int
	Level float64
	Stage domain.Stage
}

// EnergyProvider answers "how much energy at this hour" for one user and
// one day. Implementations are built per-request and hold no state that
// outlives the scheduling decision.
type EnergyProvider interface {
	EnergyAt(hour int) (HourEnergy, bool)
	Source() string
}

// PatternCache caches a user's historical patterns between scheduling
// runs. A miss returns (nil, nil).
type PatternCache interface {
	Get(ctx context.Context, userID uuid.UUID) ([]domain.HistoricalEnergyPattern, error)
	Set(ctx context.Context, userID uuid.UUID, patterns []domain.HistoricalEnergyPattern) error
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// Substrate builds energy providers. Today's recorded forecast wins, then
// historical means, then the synthetic curve.
type Substrate struct {
	samples  domain.SampleRepository
	patterns domain.PatternRepository
	cache    PatternCache
	logger   *slog.Logger
}

func NewSubstrate(samples domain.SampleRepository, patterns domain.PatternRepository, cache PatternCache, logger *slog.Logger) *Substrate {
	return &Substrate{samples: samples, patterns: patterns, cache: cache, logger: logger}
}

// ProviderFor returns the energy provider for the given user and day.
// Cache and repository failures degrade to the next tier rather than
// failing the scheduling decision.
func (s *Substrate) ProviderFor(ctx context.Context, user *identity.User, day time.Time, isToday bool) EnergyProvider {
	curve := domain.GenerateCurve(user.SleepSchedule())

	if isToday {
		samples, err := s.samples.ListByUserAndDate(ctx, user.ID(), day)
		if err != nil {
			s.logger.Warn("failed to load today's energy forecast, falling back",
				"user_id", user.ID(), "error", err)
		} else if len(samples) > 0 {
			return newForecastProvider(samples, curve)
		}
	}

	patterns, err := s.historicalPatterns(ctx, user.ID())
	if err != nil {
		s.logger.Warn("failed to load historical energy patterns, falling back",
			"user_id", user.ID(), "error", err)
	} else if observedCount(patterns) > 0 {
		return newPatternProvider(patterns, curve)
	}

	return newCurveProvider(curve)
}

func (s *Substrate) historicalPatterns(ctx context.Context, userID uuid.UUID) ([]domain.HistoricalEnergyPattern, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, userID); err != nil {
			s.logger.Warn("pattern cache read failed", "user_id", userID, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	patterns, err := s.patterns.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && len(patterns) > 0 {
		if err := s.cache.Set(ctx, userID, patterns); err != nil {
			s.logger.Warn("pattern cache write failed", "user_id", userID, "error", err)
		}
	}
	return patterns, nil
}

func observedCount(patterns []domain.HistoricalEnergyPattern) int {
	n := 0
	for _, p := range patterns {
		if p.SampleCount > 0 {
			n++
		}
	}
	return n
}

// forecastProvider reads today's stored samples. Hours without a sample
// fall back to the curve so a partial forecast still covers the day.
type forecastProvider struct {
	byHour map[int]*domain.EnergySample
	curve  [24]domain.CurvePoint
}

func newForecastProvider(samples []*domain.EnergySample, curve [24]domain.CurvePoint) *forecastProvider {
	byHour := make(map[int]*domain.EnergySample, len(samples))
	for _, s := range samples {
		byHour[s.Hour()] = s
	}
	return &forecastProvider{byHour: byHour, curve: curve}
}

func (p *forecastProvider) EnergyAt(hour int) (HourEnergy, bool) {
	if hour < 0 || hour > 23 {
		return HourEnergy{}, false
	}
	if s, ok := p.byHour[hour]; ok {
		return HourEnergy{Hour: hour, Level: s.Level(), Stage: s.Stage()}, true
	}
	pt := p.curve[hour]
	return HourEnergy{Hour: hour, Level: pt.Level, Stage: pt.Stage}, true
}

func (p *forecastProvider) Source() string { return "forecast" }

// patternProvider reads the historical per-hour means, borrowing the
// curve's stage labels and filling unobserved hours from the curve.
type patternProvider struct {
	byHour map[int]domain.HistoricalEnergyPattern
	curve  [24]domain.CurvePoint
}

func newPatternProvider(patterns []domain.HistoricalEnergyPattern, curve [24]domain.CurvePoint) *patternProvider {
	byHour := make(map[int]domain.HistoricalEnergyPattern, len(patterns))
	for _, p := range patterns {
		byHour[p.Hour] = p
	}
	return &patternProvider{byHour: byHour, curve: curve}
}

func (p *patternProvider) EnergyAt(hour int) (HourEnergy, bool) {
	if hour < 0 || hour > 23 {
		return HourEnergy{}, false
	}
	pt := p.curve[hour]
	if pat, ok := p.byHour[hour]; ok && pat.SampleCount > 0 {
		return HourEnergy{Hour: hour, Level: pat.AverageEnergy, Stage: pt.Stage}, true
	}
	return HourEnergy{Hour: hour, Level: pt.Level, Stage: pt.Stage}, true
}

func (p *patternProvider) Source() string { return "historical" }

// curveProvider is the last tier: the synthetic curve alone.
type curveProvider struct {
	curve [24]domain.CurvePoint
}

func newCurveProvider(curve [24]domain.CurvePoint) *curveProvider {
	return &curveProvider{curve: curve}
}

func (p *curveProvider) EnergyAt(hour int) (HourEnergy, bool) {
	if hour < 0 || hour > 23 {
		return HourEnergy{}, false
	}
	pt := p.curve[hour]
	return HourEnergy{Hour: hour, Level: pt.Level, Stage: pt.Stage}, true
}

func (p *curveProvider) Source() string { return "generated" }
