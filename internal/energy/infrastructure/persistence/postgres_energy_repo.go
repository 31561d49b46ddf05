// Package persistence contains the energy repositories.
package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltahq/volta/internal/energy/domain"
	sharedPersistence "github.com/voltahq/volta/internal/shared/infrastructure/persistence"
)

// PostgresSampleRepository implements domain.SampleRepository using PostgreSQL.
type PostgresSampleRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSampleRepository(pool *pgxpool.Pool) *PostgresSampleRepository {
	return &PostgresSampleRepository{pool: pool}
}

const pgSampleUpsert = `
	INSERT INTO energy_samples (id, user_id, sample_date, hour, energy_level, energy_stage, mood, has_manual_check_in, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (user_id, sample_date, hour) DO UPDATE SET
		energy_level = EXCLUDED.energy_level,
		energy_stage = EXCLUDED.energy_stage,
		mood = EXCLUDED.mood,
		has_manual_check_in = EXCLUDED.has_manual_check_in,
		updated_at = EXCLUDED.updated_at`

func (r *PostgresSampleRepository) Save(ctx context.Context, sample *domain.EnergySample) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	_, err := exec.Exec(ctx, pgSampleUpsert,
		sample.ID(), sample.UserID(), sample.Date(), sample.Hour(),
		sample.Level(), string(sample.Stage()), sample.Mood(), sample.HasManualCheckIn(),
		sample.CreatedAt(), sample.UpdatedAt(),
	)
	return err
}

func (r *PostgresSampleRepository) SaveBatch(ctx context.Context, samples []*domain.EnergySample) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	for _, sample := range samples {
		if _, err := exec.Exec(ctx, pgSampleUpsert,
			sample.ID(), sample.UserID(), sample.Date(), sample.Hour(),
			sample.Level(), string(sample.Stage()), sample.Mood(), sample.HasManualCheckIn(),
			sample.CreatedAt(), sample.UpdatedAt(),
		); err != nil {
			return err
		}
	}
	return nil
}

const pgSampleColumns = `id, user_id, sample_date, hour, energy_level, energy_stage, mood, has_manual_check_in, created_at, updated_at`

func (r *PostgresSampleRepository) FindByUserDateHour(ctx context.Context, userID uuid.UUID, date time.Time, hour int) (*domain.EnergySample, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	row := exec.QueryRow(ctx, `
		SELECT `+pgSampleColumns+`
		FROM energy_samples
		WHERE user_id = $1 AND sample_date = $2 AND hour = $3`,
		userID, date, hour)
	return scanSample(row)
}

func (r *PostgresSampleRepository) ListByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) ([]*domain.EnergySample, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	rows, err := exec.Query(ctx, `
		SELECT `+pgSampleColumns+`
		FROM energy_samples
		WHERE user_id = $1 AND sample_date = $2
		ORDER BY hour`,
		userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSamples(rows)
}

func (r *PostgresSampleRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.EnergySample, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	rows, err := exec.Query(ctx, `
		SELECT `+pgSampleColumns+`
		FROM energy_samples
		WHERE user_id = $1
		ORDER BY sample_date, hour`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSamples(rows)
}

func collectSamples(rows pgx.Rows) ([]*domain.EnergySample, error) {
	var samples []*domain.EnergySample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

func scanSample(row pgx.Row) (*domain.EnergySample, error) {
	var (
		id, userID           uuid.UUID
		date                 time.Time
		hour                 int
		level                float64
		stage                string
		mood                 *string
		manual               bool
		createdAt, updatedAt time.Time
	)
	err := row.Scan(&id, &userID, &date, &hour, &level, &stage, &mood, &manual, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSampleNotFound
	}
	if err != nil {
		return nil, err
	}
	moodStr := ""
	if mood != nil {
		moodStr = *mood
	}
	return domain.RehydrateEnergySample(id, userID, date, hour, level, domain.Stage(stage), moodStr, manual, createdAt, updatedAt), nil
}

// PostgresPatternRepository implements domain.PatternRepository using PostgreSQL.
type PostgresPatternRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresPatternRepository(pool *pgxpool.Pool) *PostgresPatternRepository {
	return &PostgresPatternRepository{pool: pool}
}

func (r *PostgresPatternRepository) ReplaceForUser(ctx context.Context, userID uuid.UUID, patterns []domain.HistoricalEnergyPattern) error {
	exec := sharedPersistence.Executor(ctx, r.pool)
	if _, err := exec.Exec(ctx, `DELETE FROM energy_patterns WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, p := range patterns {
		if _, err := exec.Exec(ctx, `
			INSERT INTO energy_patterns (user_id, hour, average_energy, sample_count, updated_at)
			VALUES ($1, $2, $3, $4, $5)`,
			userID, p.Hour, p.AverageEnergy, p.SampleCount, p.UpdatedAt,
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresPatternRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.HistoricalEnergyPattern, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	rows, err := exec.Query(ctx, `
		SELECT user_id, hour, average_energy, sample_count, updated_at
		FROM energy_patterns
		WHERE user_id = $1
		ORDER BY hour`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []domain.HistoricalEnergyPattern
	for rows.Next() {
		var p domain.HistoricalEnergyPattern
		if err := rows.Scan(&p.UserID, &p.Hour, &p.AverageEnergy, &p.SampleCount, &p.UpdatedAt); err != nil {
			return nil, err
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
