package commands

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/identity/domain"
	"github.com/voltahq/volta/internal/shared/infrastructure/userlock"
)

// EnergySeeder seeds generated energy data for a user. Implemented by the
// energy context.
type EnergySeeder interface {
	// SeedGeneratedData writes curve-derived samples for the given number
	// of days and refreshes the user's historical patterns.
	SeedGeneratedData(ctx context.Context, user *domain.User, days int) error
}

// UpdateSleepScheduleCommand updates a user's sleep schedule.
type UpdateSleepScheduleCommand struct {
	UserID             uuid.UUID
	Bedtime            int
	WakeHour           int
	Chronotype         string
	GenerateEnergyData bool
}

// UpdateSleepScheduleHandler handles sleep schedule updates.
type UpdateSleepScheduleHandler struct {
	users  domain.UserRepository
	seeder EnergySeeder
	locks  *userlock.Map
	logger *slog.Logger
}

// NewUpdateSleepScheduleHandler creates a new handler.
func NewUpdateSleepScheduleHandler(
	users domain.UserRepository,
	seeder EnergySeeder,
	locks *userlock.Map,
	logger *slog.Logger,
) *UpdateSleepScheduleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateSleepScheduleHandler{users: users, seeder: seeder, locks: locks, logger: logger}
}

// Handle updates the schedule and optionally seeds a week of generated
// energy data. Seeding rewrites patterns, so the user lock is held.
func (h *UpdateSleepScheduleHandler) Handle(ctx context.Context, cmd UpdateSleepScheduleCommand) (*domain.User, error) {
	chronotype, err := domain.ParseChronotype(cmd.Chronotype)
	if err != nil {
		return nil, err
	}
	schedule, err := domain.NewSleepSchedule(cmd.Bedtime, cmd.WakeHour, chronotype)
	if err != nil {
		return nil, err
	}

	var user *domain.User
	err = h.locks.WithLock(cmd.UserID, func() error {
		user, err = h.users.FindByID(ctx, cmd.UserID)
		if err != nil {
			return err
		}

		user.UpdateSleepSchedule(schedule)
		if err := h.users.Save(ctx, user); err != nil {
			return err
		}

		if cmd.GenerateEnergyData && h.seeder != nil {
			if err := h.seeder.SeedGeneratedData(ctx, user, 7); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	h.logger.Info("sleep schedule updated",
		"user_id", cmd.UserID,
		"bedtime", cmd.Bedtime,
		"wake_hour", cmd.WakeHour,
		"seeded", cmd.GenerateEnergyData,
	)
	return user, nil
}
