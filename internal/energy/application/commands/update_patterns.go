package commands

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/energy/application/services"
	"github.com/voltahq/volta/internal/energy/domain"
	identityDomain "github.com/voltahq/volta/internal/identity/domain"
	"github.com/voltahq/volta/internal/shared/application"
	"github.com/voltahq/volta/internal/shared/infrastructure/outbox"
	"github.com/voltahq/volta/internal/shared/infrastructure/userlock"
)

// UpdatePatternsCommand recomputes a user's historical per-hour means
// from every stored sample.
type UpdatePatternsCommand struct {
	UserID uuid.UUID
}

// UpdatePatternsHandler is the standalone pattern refresh, also run by
// maintenance sweeps. The recomputation reads the full sample set, so
// running it twice in a row leaves the patterns unchanged.
type UpdatePatternsHandler struct {
	users    identityDomain.UserRepository
	samples  domain.SampleRepository
	patterns domain.PatternRepository
	outbox   outbox.Repository
	cache    services.PatternCache
	uow      application.UnitOfWork
	locks    *userlock.Map
	logger   *slog.Logger
}

func NewUpdatePatternsHandler(
	users identityDomain.UserRepository,
	samples domain.SampleRepository,
	patterns domain.PatternRepository,
	outboxRepo outbox.Repository,
	cache services.PatternCache,
	uow application.UnitOfWork,
	locks *userlock.Map,
	logger *slog.Logger,
) *UpdatePatternsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdatePatternsHandler{
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

func (h *UpdatePatternsHandler) Handle(ctx context.Context, cmd UpdatePatternsCommand) error {
	err := h.locks.WithLock(cmd.UserID, func() error {
		user, err := h.users.FindByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		return application.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
			return refreshPatterns(txCtx, user, h.samples, h.patterns, h.outbox)
		})
	})
	if err != nil {
		return err
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx, cmd.UserID); err != nil {
			h.logger.Warn("pattern cache invalidation failed", "user_id", cmd.UserID, "error", err)
		}
	}
	h.logger.Info("historical energy patterns updated", "user_id", cmd.UserID)
	return nil
}
