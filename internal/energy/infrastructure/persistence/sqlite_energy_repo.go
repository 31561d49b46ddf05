package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/voltahq/volta/internal/energy/domain"
	sharedPersistence "github.com/voltahq/volta/internal/shared/infrastructure/persistence"
)

const sqliteDateLayout = "2006-01-02"

// SQLiteSampleRepository implements domain.SampleRepository using SQLite.
type SQLiteSampleRepository struct {
	db *sql.DB
}

func NewSQLiteSampleRepository(db *sql.DB) *SQLiteSampleRepository {
	return &SQLiteSampleRepository{db: db}
}

func (r *SQLiteSampleRepository) querier(ctx context.Context) sharedPersistence.SQLiteQuerier {
	return sharedPersistence.SQLiteExecutor(ctx, r.db)
}

const sqliteSampleUpsert = `
	INSERT INTO energy_samples (id, user_id, sample_date, hour, energy_level, energy_stage, mood, has_manual_check_in, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id, sample_date, hour) DO UPDATE SET
		energy_level = excluded.energy_level,
		energy_stage = excluded.energy_stage,
		mood = excluded.mood,
		has_manual_check_in = excluded.has_manual_check_in,
		updated_at = excluded.updated_at`

func (r *SQLiteSampleRepository) Save(ctx context.Context, sample *domain.EnergySample) error {
	_, err := r.querier(ctx).ExecContext(ctx, sqliteSampleUpsert, sqliteSampleArgs(sample)...)
	return err
}

func (r *SQLiteSampleRepository) SaveBatch(ctx context.Context, samples []*domain.EnergySample) error {
	q := r.querier(ctx)
	for _, sample := range samples {
		if _, err := q.ExecContext(ctx, sqliteSampleUpsert, sqliteSampleArgs(sample)...); err != nil {
			return err
		}
	}
	return nil
}

func sqliteSampleArgs(s *domain.EnergySample) []any {
	return []any{
		s.ID().String(), s.UserID().String(), s.Date().Format(sqliteDateLayout), s.Hour(),
		s.Level(), string(s.Stage()), s.Mood(), s.HasManualCheckIn(),
		s.CreatedAt().Format(time.RFC3339), s.UpdatedAt().Format(time.RFC3339),
	}
}

const sqliteSampleColumns = `id, user_id, sample_date, hour, energy_level, energy_stage, mood, has_manual_check_in, created_at, updated_at`

func (r *SQLiteSampleRepository) FindByUserDateHour(ctx context.Context, userID uuid.UUID, date time.Time, hour int) (*domain.EnergySample, error) {
	row := r.querier(ctx).QueryRowContext(ctx, `
		SELECT `+sqliteSampleColumns+`
		FROM energy_samples
		WHERE user_id = ? AND sample_date = ? AND hour = ?`,
		userID.String(), date.Format(sqliteDateLayout), hour)
	return scanSQLiteSample(row)
}

func (r *SQLiteSampleRepository) ListByUserAndDate(ctx context.Context, userID uuid.UUID, date time.Time) ([]*domain.EnergySample, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT `+sqliteSampleColumns+`
		FROM energy_samples
		WHERE user_id = ? AND sample_date = ?
		ORDER BY hour`,
		userID.String(), date.Format(sqliteDateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteSamples(rows)
}

func (r *SQLiteSampleRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.EnergySample, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT `+sqliteSampleColumns+`
		FROM energy_samples
		WHERE user_id = ?
		ORDER BY sample_date, hour`,
		userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSQLiteSamples(rows)
}

func collectSQLiteSamples(rows *sql.Rows) ([]*domain.EnergySample, error) {
	var samples []*domain.EnergySample
	for rows.Next() {
		sample, err := scanSQLiteSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSample(row rowScanner) (*domain.EnergySample, error) {
	var (
		idStr, userIDStr, dateStr  string
		hour                       int
		level                      float64
		stage                      string
		mood                       sql.NullString
		manual                     bool
		createdAtStr, updatedAtStr string
	)
	err := row.Scan(&idStr, &userIDStr, &dateStr, &hour, &level, &stage, &mood, &manual, &createdAtStr, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSampleNotFound
	}
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, err
	}
	date, err := time.Parse(sqliteDateLayout, dateStr)
	if err != nil {
		return nil, err
	}
	createdAt, _ := time.Parse(time.RFC3339, createdAtStr)
	updatedAt, _ := time.Parse(time.RFC3339, updatedAtStr)

	return domain.RehydrateEnergySample(id, userID, date, hour, level, domain.Stage(stage), mood.String, manual, createdAt, updatedAt), nil
}

// SQLitePatternRepository implements domain.PatternRepository using SQLite.
type SQLitePatternRepository struct {
	db *sql.DB
}

func NewSQLitePatternRepository(db *sql.DB) *SQLitePatternRepository {
	return &SQLitePatternRepository{db: db}
}

func (r *SQLitePatternRepository) querier(ctx context.Context) sharedPersistence.SQLiteQuerier {
	return sharedPersistence.SQLiteExecutor(ctx, r.db)
}

func (r *SQLitePatternRepository) ReplaceForUser(ctx context.Context, userID uuid.UUID, patterns []domain.HistoricalEnergyPattern) error {
	q := r.querier(ctx)
	if _, err := q.ExecContext(ctx, `DELETE FROM energy_patterns WHERE user_id = ?`, userID.String()); err != nil {
		return err
	}
	for _, p := range patterns {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO energy_patterns (user_id, hour, average_energy, sample_count, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			userID.String(), p.Hour, p.AverageEnergy, p.SampleCount, p.UpdatedAt.Format(time.RFC3339),
		); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLitePatternRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.HistoricalEnergyPattern, error) {
	rows, err := r.querier(ctx).QueryContext(ctx, `
		SELECT user_id, hour, average_energy, sample_count, updated_at
		FROM energy_patterns
		WHERE user_id = ?
		ORDER BY hour`,
		userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var patterns []domain.HistoricalEnergyPattern
	for rows.Next() {
		var (
			userIDStr, updatedAtStr string
			p                       domain.HistoricalEnergyPattern
		)
		if err := rows.Scan(&userIDStr, &p.Hour, &p.AverageEnergy, &p.SampleCount, &updatedAtStr); err != nil {
			return nil, err
		}
		p.UserID, err = uuid.Parse(userIDStr)
		if err != nil {
			return nil, err
		}
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}
