// Package cache provides a Redis-backed snapshot cache for analytics
// summaries, so repeated insight reads do not recompute over the full
// weekly history.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/ascent/pkg/metrics"
)

// defaultTTL bounds how stale a cached summary may get.
const defaultTTL = 5 * time.Minute

// defaultKeyPrefix namespaces our keys on a shared Redis.
const defaultKeyPrefix = "ascent"

// SnapshotCache stores JSON-encoded analytics payloads with a TTL.
type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// Option applies a configuration option to the SnapshotCache.
type Option func(*SnapshotCache)

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *SnapshotCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix sets the key namespace.
func WithKeyPrefix(prefix string) Option {
	return func(c *SnapshotCache) {
		if prefix != "" {
			c.prefix = prefix
		}
	}
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, addr string, opts ...Option) (*SnapshotCache, error) {
	c := &SnapshotCache{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    defaultTTL,
		prefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return c, nil
}

// Close releases the underlying connection pool.
func (c *SnapshotCache) Close() error {
	return c.client.Close()
}

// Key joins parts into a namespaced cache key.
func (c *SnapshotCache) Key(parts ...string) string {
	return c.prefix + ":" + strings.Join(parts, ":")
}

// Get unmarshals the cached entry into dest. The second return reports
// whether the key was present.
func (c *SnapshotCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.RecordCacheMiss()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A decode failure means the cached shape changed; treat as a miss.
		metrics.RecordCacheMiss()
		return false, nil
	}
	metrics.RecordCacheHit()
	return true, nil
}

// Set stores val as JSON under key with the configured TTL.
func (c *SnapshotCache) Set(ctx context.Context, key string, val interface{}) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Invalidate drops the given keys. Missing keys are not an error.
func (c *SnapshotCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache invalidate: %w", err)
	}
	return nil
}
