// AngelaMos | 2026
// gcra.go

package ratelimit

import (
	"context"
	"fmt"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
)

// GCRALimiter trades the exact sliding log for redis_rate's constant-size
// GCRA state. Burst equals the per-window ceiling, so a fresh key can spend
// its whole allowance at once and then refills smoothly.
type GCRALimiter struct {
	limiter *redis_rate.Limiter
	prefix  string
}

func NewGCRALimiter(client redis.UniversalClient, prefix string) *GCRALimiter {
	return &GCRALimiter{
		limiter: redis_rate.NewLimiter(client),
		prefix:  prefix,
	}
}

func (l *GCRALimiter) Allow(
	ctx context.Context,
	key string,
	limit Limit,
) (Decision, error) {
	if !limit.valid() {
		return Decision{}, fmt.Errorf("invalid limit %+v", limit)
	}

	res, err := l.limiter.Allow(ctx, l.prefix+key, redis_rate.Limit{
		Rate:   limit.Max,
		Burst:  limit.Max,
		Period: limit.Window,
	})
	if err != nil {
		return Decision{}, fmt.Errorf("gcra allow: %w", err)
	}

	d := Decision{
		Allowed:    res.Allowed > 0,
		Count:      limit.Max - res.Remaining,
		Remaining:  res.Remaining,
		ResetAfter: res.ResetAfter,
	}
	if !d.Allowed {
		d.Count = limit.Max + 1
		d.RetryAfter = res.RetryAfter
	}

	return d, nil
}
