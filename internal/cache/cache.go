// Package cache keeps the raw case records fetched from the backend for a
// short time so repeated list requests do not hit the backend every time.
// Urgency is never cached: it depends on the current time and is recomputed
// on every read.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tensai-22/penal-sub001/internal/models"
)

// ErrCacheMiss is returned when no entry exists for a filter
var ErrCacheMiss = errors.New("cache miss")

const keyPrefix = "casedesk:cases:"

// CaseCache stores case record lists keyed by the filter that produced them
type CaseCache interface {
	Get(ctx context.Context, filter models.CaseFilter) ([]models.CaseRecord, error)
	Set(ctx context.Context, filter models.CaseFilter, records []models.CaseRecord) error
	Invalidate(ctx context.Context) error
}

// RedisCaseCache is a CaseCache backed by Redis
type RedisCaseCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// New returns a Redis backed cache, or a no-op cache when client is nil or ttl is not positive
func New(client *redis.Client, ttl time.Duration, log *zap.Logger) CaseCache {
	if client == nil || ttl <= 0 {
		return NopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisCaseCache{client: client, ttl: ttl, log: log}
}

// Key returns the Redis key for filter
func Key(filter models.CaseFilter) string {
	if filter.IsZero() {
		return keyPrefix + "all"
	}
	b, _ := json.Marshal(filter)
	sum := sha256.Sum256(b)
	return keyPrefix + hex.EncodeToString(sum[:12])
}

// Get returns the cached records for filter
func (c *RedisCaseCache) Get(ctx context.Context, filter models.CaseFilter) ([]models.CaseRecord, error) {
	data, err := c.client.Get(ctx, Key(filter)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read case cache: %w", err)
	}
	var records []models.CaseRecord
	if err := json.Unmarshal(data, &records); err != nil {
		c.log.Warn("case_cache_corrupt_entry", zap.String("key", Key(filter)), zap.Error(err))
		_ = c.client.Del(ctx, Key(filter)).Err()
		return nil, ErrCacheMiss
	}
	return records, nil
}

// Set stores records for filter with the configured TTL
func (c *RedisCaseCache) Set(ctx context.Context, filter models.CaseFilter, records []models.CaseRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal case records: %w", err)
	}
	if err := c.client.Set(ctx, Key(filter), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write case cache: %w", err)
	}
	return nil
}

// Invalidate drops every cached case list
func (c *RedisCaseCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan case cache: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate case cache: %w", err)
	}
	return nil
}

// NopCache never stores anything
type NopCache struct{}

func (NopCache) Get(context.Context, models.CaseFilter) ([]models.CaseRecord, error) {
	return nil, ErrCacheMiss
}

func (NopCache) Set(context.Context, models.CaseFilter, []models.CaseRecord) error { return nil }

func (NopCache) Invalidate(context.Context) error { return nil }

// NewRedisClient parses a redis:// URL and verifies the connection
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}
