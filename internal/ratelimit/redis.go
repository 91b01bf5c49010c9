// AngelaMos | 2026
// redis.go

package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript runs the prune-append-count sequence atomically on a
// sorted set scored by microsecond timestamps.
//
// KEYS[1] bucket key
// ARGV[1] now (us), ARGV[2] window (us), ARGV[3] max, ARGV[4] member
// Returns {count, oldest score, pivot score}.
var slidingWindowScript = redis.NewScript(`
local key    = KEYS[1]
local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max    = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
redis.call('ZADD', key, now, ARGV[4])

local count = redis.call('ZCARD', key)
if count > max + 1 then
	redis.call('ZREMRANGEBYRANK', key, 0, count - max - 2)
	count = max + 1
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
local pivot = 0
if count > max then
	local p = redis.call('ZRANGE', key, -max, -max, 'WITHSCORES')
	pivot = tonumber(p[2])
end

redis.call('PEXPIRE', key, math.ceil(window / 1000))
return {count, tonumber(oldest[2]), pivot}
`)

// RedisLimiter is the sliding-window log shared by every instance that
// points at the same Redis.
type RedisLimiter struct {
	client redis.Scripter
	prefix string
	now    func() time.Time
}

func NewRedisLimiter(client redis.Scripter, prefix string) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(
	ctx context.Context,
	key string,
	limit Limit,
) (Decision, error) {
	if !limit.valid() {
		return Decision{}, fmt.Errorf("invalid limit %+v", limit)
	}

	now := l.now().UnixMicro()
	window := limit.Window.Microseconds()
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())

	res, err := slidingWindowScript.Run(
		ctx,
		l.client,
		[]string{l.prefix + key},
		now,
		window,
		limit.Max,
		member,
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("sliding window script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("sliding window script: unexpected reply %v", res)
	}

	d := decide(int(res[0]), limit)
	d.ResetAfter = time.Duration(res[1]+window-now) * time.Microsecond

	if !d.Allowed {
		d.RetryAfter = time.Duration(res[2]+window-now) * time.Microsecond
	}

	return d, nil
}
