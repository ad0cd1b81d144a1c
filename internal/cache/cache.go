// Package cache keeps recently fetched event catalog payloads in redis so
// the dashboard doesn't hammer the venue on every page load.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/daszybak/polymarket_dashboard/internal/metrics"
)

type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// New connects a cache; a nil *Cache is valid and disables caching.
func New(addr string, ttl time.Duration, log *slog.Logger) *Cache {
	return &Cache{
		rdb: redis.NewClient(&redis.Options{Addr: addr}),
		ttl: ttl,
		log: log.With("component", "cache"),
	}
}

// Get returns the cached payload for key, if present and fresh.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}

	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("cache get failed", "key", key, "error", err)
		}
		metrics.EventsCacheMissesTotal.Inc()
		return nil, false
	}

	metrics.EventsCacheHitsTotal.Inc()
	return val, true
}

// Set stores a payload under key for the configured TTL. Failures are logged
// and otherwise ignored; the cache is best effort.
func (c *Cache) Set(ctx context.Context, key string, val []byte) {
	if c == nil {
		return
	}

	if err := c.rdb.Set(ctx, key, val, c.ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "key", key, "error", err)
	}
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}
