/*

This file contains the last-known-good cache backing the degradation rule
for adapter data: when a protocol's data source is unreachable, callers fall
back to the last cached value instead of failing. Redis-backed; every method
is safe on a nil store so the engine runs without Redis.

*/

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sonicnav/riskengine/internal/logger"
)

var cacheLogger = logger.GetForComponent("lkg_cache")

const defaultTTL = 24 * time.Hour

// Store is the Redis-backed last-known-good store.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis at addr and verifies the connection.
func New(ctx context.Context, addr string) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	cacheLogger.Info().Str("addr", addr).Msg("Connected to last-known-good cache")
	return &Store{client: client, ttl: defaultTTL}, nil
}

// NewWithClient wraps an existing client. Used by tests with miniredis.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client, ttl: defaultTTL}
}

func apyKey(platform string) string { return "lkg:apy:" + platform }
func priceKey(feedID string) string { return "lkg:price:" + feedID }

// SetAPYs stores a platform's per-token APY map.
func (s *Store) SetAPYs(ctx context.Context, platform string, apys map[string]float64) error {
	if s == nil {
		return nil
	}
	payload, err := json.Marshal(apys)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, apyKey(platform), payload, s.ttl).Err()
}

// GetAPYs returns a platform's cached APY map and whether one was present.
func (s *Store) GetAPYs(ctx context.Context, platform string) (map[string]float64, bool) {
	if s == nil {
		return nil, false
	}
	payload, err := s.client.Get(ctx, apyKey(platform)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			cacheLogger.Warn().Err(err).Str("platform", platform).Msg("Cache read failed")
		}
		return nil, false
	}
	var apys map[string]float64
	if err := json.Unmarshal(payload, &apys); err != nil {
		cacheLogger.Warn().Err(err).Str("platform", platform).Msg("Corrupt cached APY payload")
		return nil, false
	}
	return apys, true
}

// SetPrice stores the last known price for one feed.
func (s *Store) SetPrice(ctx context.Context, feedID string, price float64) error {
	if s == nil {
		return nil
	}
	return s.client.Set(ctx, priceKey(feedID), price, s.ttl).Err()
}

// GetPrice returns the last known price for one feed and whether one was present.
func (s *Store) GetPrice(ctx context.Context, feedID string) (float64, bool) {
	if s == nil {
		return 0, false
	}
	price, err := s.client.Get(ctx, priceKey(feedID)).Float64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			cacheLogger.Warn().Err(err).Str("feedID", feedID).Msg("Cache read failed")
		}
		return 0, false
	}
	return price, true
}

// Close releases the underlying client.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.client.Close()
}
