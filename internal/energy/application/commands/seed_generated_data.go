package commands

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/voltahq/volta/internal/energy/application/services"
	"github.com/voltahq/volta/internal/energy/domain"
	identityDomain "github.com/voltahq/volta/internal/identity/domain"
	"github.com/voltahq/volta/internal/shared/application"
	"github.com/voltahq/volta/internal/shared/infrastructure/outbox"
)

// seedJitter bounds the noise applied to generated sample levels.
const seedJitter = 0.04

// Seeder writes curve-derived energy samples so a fresh user has data to
// schedule against. It satisfies the identity context's EnergySeeder and
// is invoked with the user's lock already held, so it takes none itself.
type Seeder struct {
	samples  domain.SampleRepository
	patterns domain.PatternRepository
	outbox   outbox.Repository
	cache    services.PatternCache
	uow      application.UnitOfWork
	logger   *slog.Logger
	rng      *rand.Rand
	now      func() time.Time
}

func NewSeeder(
	samples domain.SampleRepository,
	patterns domain.PatternRepository,
	outboxRepo outbox.Repository,
	cache services.PatternCache,
	uow application.UnitOfWork,
	logger *slog.Logger,
) *Seeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Seeder{
		samples:  samples,
		patterns: patterns,
		outbox:   outboxRepo,
		cache:    cache,
		uow:      uow,
		logger:   logger,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		now:      time.Now,
	}
}

// SeedGeneratedData writes one sample per hour for the given number of
// days ending today, then refreshes the historical patterns. Hours that
// already hold a manual check-in are left alone.
func (s *Seeder) SeedGeneratedData(ctx context.Context, user *identityDomain.User, days int) error {
	if days <= 0 {
		return nil
	}

	curve := domain.GenerateCurve(user.SleepSchedule())
	today := s.now().In(user.Location())

	err := application.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		for offset := days - 1; offset >= 0; offset-- {
			day := today.AddDate(0, 0, -offset)
			batch, err := s.generateDay(txCtx, user, day, curve)
			if err != nil {
				return err
			}
			if err := s.samples.SaveBatch(txCtx, batch); err != nil {
				return err
			}
		}
		return refreshPatterns(txCtx, user, s.samples, s.patterns, s.outbox)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, user.ID()); err != nil {
			s.logger.Warn("pattern cache invalidation failed", "user_id", user.ID(), "error", err)
		}
	}

	s.logger.Info("generated energy data seeded", "user_id", user.ID(), "days", days)
	return nil
}

func (s *Seeder) generateDay(ctx context.Context, user *identityDomain.User, day time.Time, curve [24]domain.CurvePoint) ([]*domain.EnergySample, error) {
	existing, err := s.samples.ListByUserAndDate(ctx, user.ID(), day)
	if err != nil {
		return nil, err
	}
	manual := make(map[int]bool)
	for _, sm := range existing {
		if sm.HasManualCheckIn() {
			manual[sm.Hour()] = true
		}
	}

	batch := make([]*domain.EnergySample, 0, 24)
	for hour := 0; hour < 24; hour++ {
		if manual[hour] {
			continue
		}
		pt := curve[hour]
		level := domain.Jitter(s.rng, pt.Level, seedJitter)
		sample, err := domain.NewEnergySample(user.ID(), day, hour, level, pt.Stage, domain.MoodForStage(pt.Stage), false)
		if err != nil {
			return nil, err
		}
		batch = append(batch, sample)
	}
	return batch, nil
}
