// Package cache holds the Redis-backed historical pattern cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/voltahq/volta/internal/energy/domain"
)

const patternTTL = 10 * time.Minute

// RedisPatternCache caches a user's historical patterns as a JSON blob.
// Entries are invalidated whenever samples are written, so the TTL only
// bounds staleness after missed invalidations.
type RedisPatternCache struct {
	client *redis.Client
}

func NewRedisPatternCache(client *redis.Client) *RedisPatternCache {
	return &RedisPatternCache{client: client}
}

func key(userID uuid.UUID) string {
	return fmt.Sprintf("volta:user:%s:patterns", userID)
}

// Get returns the cached patterns, or (nil, nil) on a miss.
func (c *RedisPatternCache) Get(ctx context.Context, userID uuid.UUID) ([]domain.HistoricalEnergyPattern, error) {
	raw, err := c.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var patterns []domain.HistoricalEnergyPattern
	if err := json.Unmarshal(raw, &patterns); err != nil {
		return nil, err
	}
	return patterns, nil
}

func (c *RedisPatternCache) Set(ctx context.Context, userID uuid.UUID, patterns []domain.HistoricalEnergyPattern) error {
	raw, err := json.Marshal(patterns)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key(userID), raw, patternTTL).Err()
}

func (c *RedisPatternCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	return c.client.Del(ctx, key(userID)).Err()
}
