// Package cache is a thin Redis layer in front of barcode resolution.
// Scans hit the same handful of codes all day, so resolved code to SKU
// mappings are kept hot. A missing or unreachable Redis degrades to
// database lookups, never to errors.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/pinoerp/wms-backend/pkg/config"
	"github.com/pinoerp/wms-backend/pkg/logger"
)

const keyPrefix = "wms:lookup:"

// LookupCache caches resolved scan codes
type LookupCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logger.Logger
}

// New creates a lookup cache. Returns nil when no Redis address is
// configured; a nil cache is safe to call and does nothing.
func New(cfg config.RedisConfig, ttl time.Duration, log *logger.Logger) *LookupCache {
	if cfg.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &LookupCache{
		client: client,
		ttl:    ttl,
		logger: log,
	}
}

// Get returns the cached SKU for a scan code
func (c *LookupCache) Get(ctx context.Context, code string) (string, bool) {
	if c == nil {
		return "", false
	}

	sku, err := c.client.Get(ctx, keyPrefix+code).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug().Err(err).Str("code", code).Msg("lookup cache read failed")
		}
		return "", false
	}
	return sku, true
}

// Set stores a resolved scan code
func (c *LookupCache) Set(ctx context.Context, code, sku string) {
	if c == nil {
		return
	}

	if err := c.client.Set(ctx, keyPrefix+code, sku, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("code", code).Msg("lookup cache write failed")
	}
}

// Invalidate drops a cached scan code
func (c *LookupCache) Invalidate(ctx context.Context, code string) {
	if c == nil {
		return
	}

	if err := c.client.Del(ctx, keyPrefix+code).Err(); err != nil {
		c.logger.Debug().Err(err).Str("code", code).Msg("lookup cache invalidate failed")
	}
}

// Close releases the Redis connection
func (c *LookupCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
