// AngelaMos | 2026
// fallback.go

package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Fallback answers from a local MemoryLimiter whenever the shared backend
// errors. While degraded, ceilings hold per instance instead of globally.
type Fallback struct {
	primary Limiter
	local   *MemoryLimiter
	logger  *slog.Logger
	warn    *rate.Sometimes
}

func NewFallback(primary Limiter, local *MemoryLimiter, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fallback{
		primary: primary,
		local:   local,
		logger:  logger,
		warn:    &rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

func (f *Fallback) Allow(
	ctx context.Context,
	key string,
	limit Limit,
) (Decision, error) {
	d, err := f.primary.Allow(ctx, key, limit)
	if err == nil {
		return d, nil
	}

	f.warn.Do(func() {
		f.logger.Warn("rate limit backend error, using local limiter",
			"error", err,
		)
	})

	return f.local.Allow(ctx, key, limit)
}
