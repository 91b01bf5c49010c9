// AngelaMos | 2026
// limiter.go

// Package ratelimit counts requests per key over a trailing window.
//
// Every call is recorded, allowed or not, so a caller who keeps hammering a
// rejected key stays rejected until its traffic actually drops below the
// ceiling. Backends differ only in where the log lives: process memory,
// a Redis sorted set shared by all instances, or Redis GCRA state.
package ratelimit

import (
	"context"
	"time"
)

type Limit struct {
	Max    int
	Window time.Duration
}

func PerMinute(n int) Limit {
	return Limit{Max: n, Window: time.Minute}
}

func (l Limit) valid() bool {
	return l.Max > 0 && l.Window > 0
}

type Decision struct {
	Allowed    bool
	Count      int
	Remaining  int
	RetryAfter time.Duration
	ResetAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string, limit Limit) (Decision, error)
}

func decide(count int, limit Limit) Decision {
	remaining := limit.Max - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= limit.Max,
		Count:     count,
		Remaining: remaining,
	}
}
