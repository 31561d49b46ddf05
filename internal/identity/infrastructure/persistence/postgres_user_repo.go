// Package persistence contains the identity repositories.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltahq/volta/internal/identity/domain"
	sharedDomain "github.com/voltahq/volta/internal/shared/domain"
	sharedPersistence "github.com/voltahq/volta/internal/shared/infrastructure/persistence"
)

// PostgresUserRepository implements domain.UserRepository using PostgreSQL.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresUserRepository creates a new Postgres user repository.
func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

// Save upserts a user.
func (r *PostgresUserRepository) Save(ctx context.Context, user *domain.User) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	s := user.SleepSchedule()
	_, err := exec.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, timezone, bedtime, wake_hour, chronotype, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			password_hash = EXCLUDED.password_hash,
			timezone = EXCLUDED.timezone,
			bedtime = EXCLUDED.bedtime,
			wake_hour = EXCLUDED.wake_hour,
			chronotype = EXCLUDED.chronotype,
			updated_at = EXCLUDED.updated_at`,
		user.ID(), user.Email(), user.PasswordHash(), user.Timezone(),
		s.Bedtime, s.WakeHour, string(s.Chronotype),
		user.CreatedAt(), user.UpdatedAt(),
	)
	return err
}

// FindByID retrieves a user by ID.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	row := exec.QueryRow(ctx, `
		SELECT id, email, password_hash, timezone, bedtime, wake_hour, chronotype, created_at, updated_at
		FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// FindByEmail retrieves a user by email.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	row := exec.QueryRow(ctx, `
		SELECT id, email, password_hash, timezone, bedtime, wake_hour, chronotype, created_at, updated_at
		FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		id                      uuid.UUID
		email, hash, tz, chrono string
		bedtime, wakeHour       int
		createdAt, updatedAt    time.Time
	)
	err := row.Scan(&id, &email, &hash, &tz, &bedtime, &wakeHour, &chrono, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	return domain.RehydrateUser(
		sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		email, hash, tz,
		domain.SleepSchedule{Bedtime: bedtime, WakeHour: wakeHour, Chronotype: domain.Chronotype(chrono)},
	), nil
}
