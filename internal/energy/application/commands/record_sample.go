// Package commands holds the energy context's write operations.
package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/energy/application/services"
	"github.com/voltahq/volta/internal/energy/domain"
	identityDomain "github.com/voltahq/volta/internal/identity/domain"
	"github.com/voltahq/volta/internal/shared/application"
	"github.com/voltahq/volta/internal/shared/infrastructure/outbox"
	"github.com/voltahq/volta/internal/shared/infrastructure/userlock"
)

// RecordSampleCommand records a manual energy check-in for one hour.
type RecordSampleCommand struct {
	UserID uuid.UUID
	Date   time.Time
	Hour   int
	Level  float64
	Mood   string
}

// RecordSampleHandler upserts a sample, recomputes the user's historical
// patterns and drops the pattern cache, all under the user's lock.
type RecordSampleHandler struct {
	users    identityDomain.UserRepository
	samples  domain.SampleRepository
	patterns domain.PatternRepository
	outbox   outbox.Repository
	cache    services.PatternCache
	uow      application.UnitOfWork
	locks    *userlock.Map
	logger   *slog.Logger
}

func NewRecordSampleHandler(
	users identityDomain.UserRepository,
	samples domain.SampleRepository,
	patterns domain.PatternRepository,
	outboxRepo outbox.Repository,
	cache services.PatternCache,
	uow application.UnitOfWork,
	locks *userlock.Map,
	logger *slog.Logger,
) *RecordSampleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordSampleHandler{
		users:    users,
		samples:  samples,
		patterns: patterns,
		outbox:   outboxRepo,
		cache:    cache,
		uow:      uow,
		locks:    locks,
		logger:   logger,
	}
}

func (h *RecordSampleHandler) Handle(ctx context.Context, cmd RecordSampleCommand) (*domain.EnergySample, error) {
	var sample *domain.EnergySample
	err := h.locks.WithLock(cmd.UserID, func() error {
		user, err := h.users.FindByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		sample, err = h.upsertSample(ctx, user, cmd)
		if err != nil {
			return err
		}

		return application.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
			if err := h.samples.Save(txCtx, sample); err != nil {
				return err
			}
			if err := refreshPatterns(txCtx, user, h.samples, h.patterns, h.outbox); err != nil {
				return err
			}
			msg, err := outbox.NewMessage(domain.NewEnergySampleRecorded(sample))
			if err != nil {
				return err
			}
			return h.outbox.Save(txCtx, msg)
		})
	})
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, cmd.UserID); err != nil {
			h.logger.Warn("pattern cache invalidation failed", "user_id", cmd.UserID, "error", err)
		}
	}

	h.logger.Info("energy sample recorded",
		"user_id", cmd.UserID,
		"hour", cmd.Hour,
		"level", cmd.Level,
	)
	return sample, nil
}

func (h *RecordSampleHandler) upsertSample(ctx context.Context, user *identityDomain.User, cmd RecordSampleCommand) (*domain.EnergySample, error) {
	existing, err := h.samples.FindByUserDateHour(ctx, cmd.UserID, cmd.Date, cmd.Hour)
	if err != nil && !errors.Is(err, domain.ErrSampleNotFound) {
		return nil, err
	}
	if existing != nil {
		if err := existing.Record(cmd.Level, cmd.Mood); err != nil {
			return nil, err
		}
		return existing, nil
	}

	curve := domain.GenerateCurve(user.SleepSchedule())
	if cmd.Hour < 0 || cmd.Hour > 23 {
		return nil, domain.ErrInvalidSampleHour
	}
	return domain.NewEnergySample(cmd.UserID, cmd.Date, cmd.Hour, cmd.Level, curve[cmd.Hour].Stage, cmd.Mood, true)
}

// refreshPatterns recomputes the per-hour means from every stored sample
// and writes the replacement set plus a patterns-updated event. Runs in
// the caller's transaction.
func refreshPatterns(
	ctx context.Context,
	user *identityDomain.User,
	samples domain.SampleRepository,
	patterns domain.PatternRepository,
	outboxRepo outbox.Repository,
) error {
	all, err := samples.ListByUser(ctx, user.ID())
	if err != nil {
		return err
	}
	computed := domain.ComputePatterns(user.ID(), all)

	// Hours with no observations get curve estimates so the pattern set
	// always covers the whole day.
	covered := make(map[int]bool, len(computed))
	for _, p := range computed {
		covered[p.Hour] = true
	}
	curve := domain.GenerateCurve(user.SleepSchedule())
	for hour := 0; hour < 24; hour++ {
		if !covered[hour] {
			computed = append(computed, domain.NewEstimatedPattern(user.ID(), hour, curve[hour].Level))
		}
	}

	if err := patterns.ReplaceForUser(ctx, user.ID(), computed); err != nil {
		return err
	}

	msg, err := outbox.NewMessage(domain.NewEnergyPatternsUpdated(user.ID(), len(covered)))
	if err != nil {
		return err
	}
	return outboxRepo.Save(ctx, msg)
}
