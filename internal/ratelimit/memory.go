// AngelaMos | 2026
// memory.go

package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const (
	defaultCleanupInterval = 5 * time.Minute
	defaultIdleTTL         = 10 * time.Minute
)

type bucket struct {
	mu       sync.Mutex
	hits     []time.Time
	lastSeen time.Time
	evicted  bool
}

// MemoryLimiter keeps a sliding-window log per key. Keys are independent:
// each bucket has its own lock, so only callers sharing a key contend.
type MemoryLimiter struct {
	buckets         sync.Map
	now             func() time.Time
	cleanupInterval time.Duration
	idleTTL         time.Duration
	stop            chan struct{}
	stopOnce        sync.Once
}

type MemoryOption func(*MemoryLimiter)

func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryLimiter) {
		m.now = now
	}
}

// WithCleanupInterval sets how often idle buckets are swept. Zero disables
// the janitor goroutine.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(m *MemoryLimiter) {
		m.cleanupInterval = d
	}
}

// WithIdleTTL sets how long a key may go unseen before it is dropped. It
// must be at least the longest window in use.
func WithIdleTTL(d time.Duration) MemoryOption {
	return func(m *MemoryLimiter) {
		m.idleTTL = d
	}
}

func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	m := &MemoryLimiter{
		now:             time.Now,
		cleanupInterval: defaultCleanupInterval,
		idleTTL:         defaultIdleTTL,
		stop:            make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.cleanupInterval > 0 {
		go m.janitor()
	}

	return m
}

func (m *MemoryLimiter) Allow(
	_ context.Context,
	key string,
	limit Limit,
) (Decision, error) {
	if !limit.valid() {
		return Decision{}, fmt.Errorf("invalid limit %+v", limit)
	}

	for {
		b := m.bucket(key)

		b.mu.Lock()
		if b.evicted {
			b.mu.Unlock()
			continue
		}

		d := b.record(m.now(), limit)
		b.mu.Unlock()

		return d, nil
	}
}

func (m *MemoryLimiter) bucket(key string) *bucket {
	if v, ok := m.buckets.Load(key); ok {
		return v.(*bucket) //nolint:forcetypeassert // only *bucket is stored
	}
	v, _ := m.buckets.LoadOrStore(key, &bucket{})
	return v.(*bucket) //nolint:forcetypeassert // only *bucket is stored
}

// record appends now, prunes hits that left the window and reports the
// resulting count. At most Max+1 hits are kept: past that point the newest
// Max+1 are all inside the window, so the decision cannot change.
func (b *bucket) record(now time.Time, limit Limit) Decision {
	cutoff := now.Add(-limit.Window)

	keep := 0
	for keep < len(b.hits) && !b.hits[keep].After(cutoff) {
		keep++
	}
	b.hits = append(b.hits[keep:], now)

	if excess := len(b.hits) - (limit.Max + 1); excess > 0 {
		b.hits = b.hits[excess:]
	}
	b.lastSeen = now

	d := decide(len(b.hits), limit)
	d.ResetAfter = b.hits[0].Add(limit.Window).Sub(now)

	if !d.Allowed {
		pivot := b.hits[len(b.hits)-limit.Max]
		d.RetryAfter = pivot.Add(limit.Window).Sub(now)
	}

	return d
}

// Len reports how many keys are currently tracked.
func (m *MemoryLimiter) Len() int {
	n := 0
	m.buckets.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Sweep drops every bucket idle for longer than the idle TTL.
func (m *MemoryLimiter) Sweep() int {
	cutoff := m.now().Add(-m.idleTTL)
	removed := 0

	m.buckets.Range(func(key, value any) bool {
		b := value.(*bucket) //nolint:forcetypeassert // only *bucket is stored

		b.mu.Lock()
		if b.lastSeen.Before(cutoff) {
			b.evicted = true
			m.buckets.CompareAndDelete(key, b)
			removed++
		}
		b.mu.Unlock()

		return true
	})

	return removed
}

func (m *MemoryLimiter) Close() {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
}

func (m *MemoryLimiter) janitor() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-m.stop:
			return
		}
	}
}
