// Package cache provides an optional Redis-backed read cache for link
// resolution. Only the code-to-link lookup is cached; click counting
// always goes to the store, so counter correctness never depends on
// cache coherence. Every cache failure degrades silently to a store read.
package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/s8l-xyz/shortlinker/internal/shortener"
)

const keyPrefix = "link:"

// Cache caches resolved links in Redis.
type Cache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Connect dials Redis and verifies the connection with a bounded ping.
func Connect(addr, password string, ttl time.Duration, logger *slog.Logger) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Cache{rdb: rdb, ttl: ttl, logger: logger}, nil
}

// Get returns the cached link for code, if present and decodable.
func (c *Cache) Get(ctx context.Context, code string) (shortener.Link, bool) {
	raw, err := c.rdb.Get(ctx, keyPrefix+code).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "cache read failed", "code", code, "error", err.Error())
		}
		return shortener.Link{}, false
	}

	var link shortener.Link
	if err := json.Unmarshal(raw, &link); err != nil {
		c.logger.WarnContext(ctx, "cache entry corrupt, ignoring", "code", code, "error", err.Error())
		return shortener.Link{}, false
	}
	return link, true
}

// Set stores a resolved link with the configured TTL.
func (c *Cache) Set(ctx context.Context, link shortener.Link) {
	raw, err := json.Marshal(link)
	if err != nil {
		c.logger.WarnContext(ctx, "cache encode failed", "code", link.ShortCode, "error", err.Error())
		return
	}

	if err := c.rdb.Set(ctx, keyPrefix+link.ShortCode, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "code", link.ShortCode, "error", err.Error())
	}
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}
