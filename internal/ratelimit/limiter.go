package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitResult is the outcome of a rate limit check.
type LimitResult struct {
	Allowed    bool
	Remaining  int64
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Limiter performs sliding-window rate limiting backed by Redis sorted sets.
type Limiter struct {
	rdb redis.UniversalClient
}

// NewLimiter creates a new rate limiter. If rdb is nil, all checks pass (fail open).
func NewLimiter(rdb redis.UniversalClient) *Limiter {
	return &Limiter{rdb: rdb}
}

// slidingWindowScript atomically trims expired entries, then either records
// the request or reports the oldest entry still inside the window.
// KEYS[1] = sorted set key
// ARGV[1] = window start (unix micro)
// ARGV[2] = now (unix micro)
// ARGV[3] = limit
// ARGV[4] = TTL seconds for the key
// Returns: [current_count, 1=allowed/0=denied, oldest_score]
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, now .. ':' .. math.random(1000000))
    redis.call('EXPIRE', key, ttl)
    return {count + 1, 1, 0}
end

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
redis.call('EXPIRE', key, ttl)
return {count, 0, tonumber(oldest[2] or now)}
`)

// Check performs a sliding-window rate limit check for key.
func (l *Limiter) Check(ctx context.Context, key string, limit int64, window time.Duration) (LimitResult, error) {
	now := time.Now()
	if l.rdb == nil {
		return LimitResult{Allowed: true, Remaining: limit - 1, ResetAt: now.Add(window)}, nil
	}

	windowStart := now.Add(-window).UnixMicro()
	ttlSecs := int64(window.Seconds()) + 1
	redisKey := fmt.Sprintf("medullar:rl:%s", key)

	result, err := slidingWindowScript.Run(ctx, l.rdb, []string{redisKey},
		windowStart, now.UnixMicro(), limit, ttlSecs,
	).Int64Slice()
	if err != nil || len(result) < 3 {
		slog.Warn("rate limiter unavailable, failing open", "error", err)
		return LimitResult{Allowed: true, Remaining: limit, ResetAt: now.Add(window)}, nil
	}

	return evaluate(now, window, limit, result[0], result[1] == 1, result[2]), nil
}

// evaluate turns the script reply into a LimitResult. oldestMicro is the
// score of the oldest request still counted when the request was denied.
func evaluate(now time.Time, window time.Duration, limit, count int64, allowed bool, oldestMicro int64) LimitResult {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	res := LimitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   now.Add(window),
	}
	if allowed {
		return res
	}

	res.ResetAt = time.UnixMicro(oldestMicro).Add(window)
	res.RetryAfter = res.ResetAt.Sub(now)
	if res.RetryAfter < time.Second {
		res.RetryAfter = time.Second
	}
	return res
}
