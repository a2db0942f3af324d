// Package ratelimit provides Redis-backed request limiting and run claims.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// =============================================================================
// SlidingWindowLimiter - Redis sliding window rate limiter
// =============================================================================

var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < max_requests then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window_ms * 2)
		return 1
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if #oldest > 0 then
		return -(oldest[2] + window_ms - now)
	end
	return 0
`)

// SlidingWindowLimiter implements sliding window rate limiting using Redis.
type SlidingWindowLimiter struct {
	redis  *redis.Client
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
	seq    uint64
	mu     sync.Mutex
}

// NewSlidingWindowLimiter allows limit requests per window for each key.
func NewSlidingWindowLimiter(redisClient *redis.Client, limit int, window time.Duration) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		redis:  redisClient,
		limit:  limit,
		window: window,
		prefix: "training:ratelimit:",
		now:    time.Now,
	}
}

// Limit returns the configured requests per window.
func (l *SlidingWindowLimiter) Limit() int { return l.limit }

// Allow checks if a request for key is allowed and returns the wait duration if not.
// Redis failures fail open.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l.redis == nil || l.limit <= 0 {
		return true, 0
	}

	now := l.now()
	l.mu.Lock()
	l.seq++
	member := fmt.Sprintf("%d-%d", now.UnixNano(), l.seq)
	l.mu.Unlock()

	result, err := slidingWindowScript.Run(ctx, l.redis, []string{l.prefix + key},
		now.UnixMilli(),
		now.Add(-l.window).UnixMilli(),
		l.limit,
		l.window.Milliseconds(),
		member,
	).Int64()
	if err != nil {
		return true, 0
	}

	if result == 1 {
		return true, 0
	}
	if result < 0 {
		return false, time.Duration(-result) * time.Millisecond
	}
	return false, l.window
}

// =============================================================================
// Debouncer - one claim per key and period
// =============================================================================

// Debouncer hands out a single claim per key for a duration, across instances
// when Redis is available and per process otherwise.
type Debouncer struct {
	redis    *redis.Client
	duration time.Duration
	local    map[string]time.Time
	mu       sync.Mutex
}

func NewDebouncer(redisClient *redis.Client, duration time.Duration) *Debouncer {
	return &Debouncer{
		redis:    redisClient,
		duration: duration,
		local:    make(map[string]time.Time),
	}
}

// TryClaim returns true for the first caller for key within the duration.
func (d *Debouncer) TryClaim(ctx context.Context, key string) (bool, error) {
	redisKey := "training:debounce:" + key

	if d.redis != nil {
		ok, err := d.redis.SetNX(ctx, redisKey, "1", d.duration).Result()
		if err != nil {
			return false, fmt.Errorf("claim %s: %w", key, err)
		}
		return ok, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for k, v := range d.local {
		if now.Sub(v) > d.duration {
			delete(d.local, k)
		}
	}
	if _, taken := d.local[key]; taken {
		return false, nil
	}
	d.local[key] = now
	return true, nil
}

// Release drops a claim so the key can be claimed again.
func (d *Debouncer) Release(ctx context.Context, key string) error {
	if d.redis != nil {
		if err := d.redis.Del(ctx, "training:debounce:"+key).Err(); err != nil {
			return fmt.Errorf("release %s: %w", key, err)
		}
		return nil
	}
	d.mu.Lock()
	delete(d.local, key)
	d.mu.Unlock()
	return nil
}
