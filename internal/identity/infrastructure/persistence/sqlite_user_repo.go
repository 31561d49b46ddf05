package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/identity/domain"
	sharedDomain "github.com/voltahq/volta/internal/shared/domain"
	sharedPersistence "github.com/voltahq/volta/internal/shared/infrastructure/persistence"
)

// SQLiteUserRepository implements domain.UserRepository using SQLite.
type SQLiteUserRepository struct {
	db *sql.DB
}

// NewSQLiteUserRepository creates a new SQLite user repository.
func NewSQLiteUserRepository(db *sql.DB) *SQLiteUserRepository {
	return &SQLiteUserRepository{db: db}
}

func (r *SQLiteUserRepository) querier(ctx context.Context) sharedPersistence.SQLiteQuerier {
	return sharedPersistence.SQLiteExecutor(ctx, r.db)
}

// Save upserts a user.
func (r *SQLiteUserRepository) Save(ctx context.Context, user *domain.User) error {
	s := user.SleepSchedule()
	_, err := r.querier(ctx).ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, timezone, bedtime, wake_hour, chronotype, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			password_hash = excluded.password_hash,
			timezone = excluded.timezone,
			bedtime = excluded.bedtime,
			wake_hour = excluded.wake_hour,
			chronotype = excluded.chronotype,
			updated_at = excluded.updated_at`,
		user.ID().String(), user.Email(), user.PasswordHash(), user.Timezone(),
		s.Bedtime, s.WakeHour, string(s.Chronotype),
		user.CreatedAt().Format(time.RFC3339), user.UpdatedAt().Format(time.RFC3339),
	)
	return err
}

// FindByID retrieves a user by ID.
func (r *SQLiteUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.querier(ctx).QueryRowContext(ctx, `
		SELECT id, email, password_hash, timezone, bedtime, wake_hour, chronotype, created_at, updated_at
		FROM users WHERE id = ?`, id.String())
	return scanSQLiteUser(row)
}

// FindByEmail retrieves a user by email.
func (r *SQLiteUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := r.querier(ctx).QueryRowContext(ctx, `
		SELECT id, email, password_hash, timezone, bedtime, wake_hour, chronotype, created_at, updated_at
		FROM users WHERE email = ?`, email)
	return scanSQLiteUser(row)
}

func scanSQLiteUser(row *sql.Row) (*domain.User, error) {
	var (
		idStr, email, hash, tz, chrono string
		bedtime, wakeHour              int
		createdAtStr, updatedAtStr     string
	)
	err := row.Scan(&idStr, &email, &hash, &tz, &bedtime, &wakeHour, &chrono, &createdAtStr, &updatedAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	createdAt, _ := time.Parse(time.RFC3339, createdAtStr)
	updatedAt, _ := time.Parse(time.RFC3339, updatedAtStr)

	return domain.RehydrateUser(
		sharedDomain.RehydrateBaseEntity(id, createdAt, updatedAt),
		email, hash, tz,
		domain.SleepSchedule{Bedtime: bedtime, WakeHour: wakeHour, Chronotype: domain.Chronotype(chrono)},
	), nil
}
