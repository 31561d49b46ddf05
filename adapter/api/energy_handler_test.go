package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	energyCommands "github.com/voltahq/volta/internal/energy/application/commands"
	energyDomain "github.com/voltahq/volta/internal/energy/domain"
	"github.com/voltahq/volta/internal/identity/application/auth"
	identityCommands "github.com/voltahq/volta/internal/identity/application/commands"
	"github.com/voltahq/volta/internal/shared/infrastructure/outbox"
	"github.com/voltahq/volta/internal/shared/infrastructure/userlock"
)

type fakeSampleRepo struct {
	mu      sync.Mutex
	samples []*energyDomain.EnergySample
}

func (r *fakeSampleRepo) Save(_ context.Context, sample *energyDomain.EnergySample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, sample)
	return nil
}

func (r *fakeSampleRepo) SaveBatch(_ context.Context, samples []*energyDomain.EnergySample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, samples...)
	return nil
}

func (r *fakeSampleRepo) FindByUserDateHour(_ context.Context, userID uuid.UUID, date time.Time, hour int) (*energyDomain.EnergySample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.samples {
		if s.UserID() == userID && s.Date().Equal(date) && s.Hour() == hour {
			return s, nil
		}
	}
	return nil, energyDomain.ErrSampleNotFound
}

func (r *fakeSampleRepo) ListByUserAndDate(_ context.Context, userID uuid.UUID, date time.Time) ([]*energyDomain.EnergySample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*energyDomain.EnergySample
	for _, s := range r.samples {
		if s.UserID() == userID && s.Date().Equal(date) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *fakeSampleRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*energyDomain.EnergySample, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*energyDomain.EnergySample
	for _, s := range r.samples {
		if s.UserID() == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakePatternRepo struct {
	mu       sync.Mutex
	patterns map[uuid.UUID][]energyDomain.HistoricalEnergyPattern
}

func (r *fakePatternRepo) ReplaceForUser(_ context.Context, userID uuid.UUID, patterns []energyDomain.HistoricalEnergyPattern) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.patterns == nil {
		r.patterns = make(map[uuid.UUID][]energyDomain.HistoricalEnergyPattern)
	}
	r.patterns[userID] = patterns
	return nil
}

func (r *fakePatternRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]energyDomain.HistoricalEnergyPattern, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.patterns[userID], nil
}

type fakeOutboxRepo struct{}

func (fakeOutboxRepo) Save(context.Context, *outbox.Message) error { return nil }
func (fakeOutboxRepo) SaveBatch(context.Context, []*outbox.Message) error { return nil }
func (fakeOutboxRepo) GetUnpublished(context.Context, int) ([]*outbox.Message, error) {
	return nil, nil
}
func (fakeOutboxRepo) MarkPublished(context.Context, int64) error { return nil }
func (fakeOutboxRepo) MarkFailed(context.Context, int64, string, time.Time) error {
	return nil
}
func (fakeOutboxRepo) MarkDead(context.Context, int64, string) error { return nil }

type passthroughUOW struct{}

func (passthroughUOW) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (passthroughUOW) Commit(context.Context) error                       { return nil }
func (passthroughUOW) Rollback(context.Context) error                     { return nil }

// energyTestServer wires a server with the identity routes plus a real
// record-sample handler over in-memory repositories, and returns a valid
// access token for a registered user.
func energyTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	users := newFakeUserRepo()
	tokens := auth.NewTokenService("test-secret", time.Hour, 24*time.Hour)
	record := energyCommands.NewRecordSampleHandler(
		users, &fakeSampleRepo{}, &fakePatternRepo{}, fakeOutboxRepo{}, nil,
		passthroughUOW{}, userlock.NewMap(), slog.Default(),
	)

	handler := NewHandler(Deps{
		Tokens:       tokens,
		Register:     identityCommands.NewRegisterUserHandler(users, tokens, nil),
		RecordSample: record,
	}, nil)
	server := NewServer(DefaultServerConfig(), handler, nil)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email":    "ada@example.com",
		"password": "correct horse",
		"timezone": "UTC",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var body authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	return server, body.Tokens.AccessToken
}

func TestRecordEnergyReturnsCreatedSample(t *testing.T) {
	server, token := energyTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/energy", token, map[string]any{
		"date":  "2026-08-26",
		"hour":  10,
		"level": 0.8,
		"mood":  "focused",
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	var body sampleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2026-08-26", body.Date)
	assert.Equal(t, 10, body.Hour)
	assert.Equal(t, 0.8, body.Level)
	assert.Equal(t, "focused", body.Mood)
	assert.True(t, body.HasManualCheckIn)
}

func TestRecordEnergyRejectsOutOfRangeHour(t *testing.T) {
	server, token := energyTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/energy", token, map[string]any{
		"date":  "2026-08-26",
		"hour":  24,
		"level": 0.5,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "hour")
}

func TestRecordEnergyRejectsOutOfRangeLevel(t *testing.T) {
	server, token := energyTestServer(t)

	rec := doRequest(t, server, http.MethodPost, "/api/v1/energy", token, map[string]any{
		"date":  "2026-08-26",
		"hour":  10,
		"level": 1.5,
	})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "level")
}
