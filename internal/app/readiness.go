package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Pinger is the minimal interface for a database pool capable of Ping.
type Pinger interface{ Ping(ctx context.Context) error }

// BuildReadinessChecks returns readiness checks for the optional backends.
// A nil pool or redis client yields a nil check, which /readyz skips.
func BuildReadinessChecks(pool Pinger, rdb *redis.Client) (
	func(ctx context.Context) error,
	func(ctx context.Context) error,
) {
	var dbCheck, redisCheck func(ctx context.Context) error
	if pool != nil {
		dbCheck = func(ctx context.Context) error {
			if err := pool.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}
			return nil
		}
	}
	if rdb != nil {
		redisCheck = func(ctx context.Context) error {
			if err := rdb.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			return nil
		}
	}
	return dbCheck, redisCheck
}
