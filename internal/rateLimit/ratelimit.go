package rateLimit

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/concert-reservations/internal/adapters/redis"
)

// RateLimiter counts requests per key in fixed windows backed by redis.
type RateLimiter struct {
	redis *redisadapter.Cache
}

func NewRateLimiter(redis *redisadapter.Cache) *RateLimiter {
	return &RateLimiter{redis: redis}
}

// Allow counts one request against the key and reports whether it fits the
// rate. The window TTL is armed by the first request only, so the window is
// fixed rather than sliding.
func (rl *RateLimiter) Allow(ctx context.Context, key string, rate int, period time.Duration) bool {
	fullKey := "rl:" + key

	count, err := rl.redis.Client().Incr(ctx, fullKey).Result()
	if err != nil {
		// Fail open, a broken limiter must not take the booking path down.
		return true
	}
	if count == 1 {
		rl.redis.Client().Expire(ctx, fullKey, period)
	}
	return count <= int64(rate)
}
