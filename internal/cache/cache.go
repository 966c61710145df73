// Package cache is a best-effort Redis read cache for query results.
// Entries are namespaced by a generation counter; invalidation bumps the
// counter so every earlier entry becomes unreachable and expires on its own.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/trogers1052/nse-market-service/internal/models"
)

const DefaultTTL = 5 * time.Minute

// Cache stores JSON-encoded query results in Redis
type Cache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New creates a cache over client. Keys are prefixed with prefix.
func New(client redis.UniversalClient, prefix string, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if prefix == "" {
		prefix = "nse"
	}
	return &Cache{client: client, prefix: prefix, ttl: ttl}
}

// NewClient connects to a single Redis node and verifies it answers
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (c *Cache) versionKey() string {
	return c.prefix + ":version"
}

// Key resolves name against the current generation. Callers that read and
// then write back an entry must resolve the key once and use it for both, so
// a write racing an Invalidate lands in the retired generation.
func (c *Cache) Key(ctx context.Context, name string) (string, error) {
	version, err := c.client.Get(ctx, c.versionKey()).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read cache version: %w", err)
	}
	return fmt.Sprintf("%s:v%d:%s", c.prefix, version, name), nil
}

// Get decodes the entry stored under key into dest. It reports false on a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores value under key for the configured TTL
func (c *Cache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Invalidate makes every cached entry unreachable
func (c *Cache) Invalidate(ctx context.Context) error {
	if err := c.client.Incr(ctx, c.versionKey()).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cache: %w", err)
	}
	return nil
}

// PricesUpdated invalidates the cache after a committed batch
func (c *Cache) PricesUpdated(ctx context.Context, _ models.PriceEvent) error {
	return c.Invalidate(ctx)
}

// Ping reports whether Redis is reachable
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
