package idempotency

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/concert-reservations/internal/adapters/redis"
)

// Idempotency replays the stored response for a previously seen
// Idempotency-Key instead of re-executing the request.
type Idempotency struct {
	redis *redisadapter.Idempotency
	ttl   time.Duration
}

func NewIdempotency(redis *redisadapter.Idempotency, ttl time.Duration) *Idempotency {
	return &Idempotency{redis: redis, ttl: ttl}
}

type Response struct {
	Status int
	Result []byte
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	stored, err := i.redis.Get(ctx, key)
	if err != nil || stored == nil {
		return nil, err
	}
	return &Response{Status: stored.Status, Result: stored.Body}, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	return i.redis.Set(ctx, key, redisadapter.StoredResponse{
		Status:   resp.Status,
		Body:     resp.Result,
		StoredAt: time.Now().UTC(),
	}, i.ttl)
}
