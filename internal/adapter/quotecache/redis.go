// Package quotecache caches quotes in Redis for a bounded TTL.
package quotecache

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fairyhunter13/investor-api/internal/domain"
)

const keyPrefix = "quote:"

// RedisCache implements domain.QuoteCache. Cache errors are never surfaced:
// a failed read is a miss, a failed write is dropped.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New constructs a RedisCache; returns nil when rdb is nil so callers can
// treat the cache as absent.
func New(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if rdb == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached quote for the symbol, if present and decodable.
func (c *RedisCache) Get(ctx domain.Context, symbol string) (domain.Quote, bool) {
	raw, err := c.rdb.Get(ctx, keyPrefix+symbol).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("quote cache read failed", slog.String("symbol", symbol), slog.Any("error", err))
		}
		return domain.Quote{}, false
	}
	var q domain.Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		slog.Warn("quote cache decode failed", slog.String("symbol", symbol), slog.Any("error", err))
		return domain.Quote{}, false
	}
	return q, true
}

// Put stores the quote under its symbol with the configured TTL.
func (c *RedisCache) Put(ctx domain.Context, q domain.Quote) {
	raw, err := json.Marshal(q)
	if err != nil {
		slog.Warn("quote cache encode failed", slog.String("symbol", q.Symbol), slog.Any("error", err))
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+q.Symbol, raw, c.ttl).Err(); err != nil {
		slog.Warn("quote cache write failed", slog.String("symbol", q.Symbol), slog.Any("error", err))
	}
}
