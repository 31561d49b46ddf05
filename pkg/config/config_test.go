package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.AppEnv)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.UsesPostgres())
	assert.Equal(t, "volta.db", cfg.SQLitePath)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 720*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "UTC", cfg.DefaultTimezone)
	assert.True(t, cfg.OutboxProcessorEnabled)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("VOLTA_JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://volta:pw@localhost:5432/volta")
	t.Setenv("VOLTA_ACCESS_TOKEN_TTL", "30m")
	t.Setenv("OUTBOX_BATCH_SIZE", "25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.UsesPostgres())
	assert.Equal(t, "test-secret", cfg.JWTSecret)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 25, cfg.OutboxBatchSize)
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("VOLTA_JWT_SECRET", "")

	_, err := Load()
	require.ErrorIs(t, err, ErrMissingJWTSecret)
}

func TestDevelopmentSecretFallback(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("VOLTA_JWT_SECRET", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.JWTSecret)
}

func TestMalformedValuesFallBack(t *testing.T) {
	t.Setenv("VOLTA_ACCESS_TOKEN_TTL", "not-a-duration")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-an-int")
	t.Setenv("OUTBOX_PROCESSOR_ENABLED", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 100, cfg.OutboxBatchSize)
	assert.True(t, cfg.OutboxProcessorEnabled)
}
