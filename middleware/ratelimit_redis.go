package middleware

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// fixedWindowScript increments the window counter, starts the window on the
// first hit and returns {count, remaining ms}.
var fixedWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RedisStore is a fixed-window counter shared by every gateway instance
type RedisStore struct {
	rdb    redis.Scripter
	prefix string
	limit  int
	window time.Duration
}

// NewRedisStore allows limit requests per window and key
func NewRedisStore(rdb redis.Scripter, limit int, window time.Duration, prefix string) *RedisStore {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "ratelimit:window"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, limit: limit, window: window}
}

// Take implements LimiterStore. RetryAfter is the remaining window TTL.
func (s *RedisStore) Take(ctx context.Context, key string) (Decision, error) {
	res, err := fixedWindowScript.Run(ctx, s.rdb, []string{s.prefix + ":" + key}, s.window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit window: %w", err)
	}
	if len(res) != 2 {
		return Decision{}, fmt.Errorf("rate limit window: unexpected reply %v", res)
	}

	if res[0] <= int64(s.limit) {
		return Decision{Allowed: true}, nil
	}

	var retryAfter time.Duration
	if res[1] > 0 {
		retryAfter = time.Duration(res[1]) * time.Millisecond
	}
	return Decision{Allowed: false, RetryAfter: retryAfter}, nil
}

// RedisStatsStore counts limiter decisions in Redis hashes: a running total,
// one hash per minute bucket and one field per route.
type RedisStatsStore struct {
	rdb    redis.Cmdable
	prefix string
	// ttl applies to the minute buckets only
	ttl time.Duration
}

// NewRedisStatsStore creates a stats store under prefix
func NewRedisStatsStore(rdb redis.Cmdable, prefix string, ttl time.Duration) *RedisStatsStore {
	prefix = strings.Trim(prefix, ":")
	if prefix == "" {
		prefix = "ratelimit:stats"
	}
	return &RedisStatsStore{rdb: rdb, prefix: prefix, ttl: ttl}
}

// Record implements StatsStore
func (s *RedisStatsStore) Record(ctx context.Context, ev StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	field := "denied"
	if ev.Allowed {
		field = "allowed"
	}

	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, s.prefix+":total", field, 1)

	bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
	pipe.HIncrBy(ctx, bucketKey, field, 1)
	if s.ttl > 0 {
		pipe.Expire(ctx, bucketKey, s.ttl)
	}

	// Patterns form a closed set, raw paths do not
	if ev.Route != "" {
		pipe.HIncrBy(ctx, s.prefix+":route", ev.Method+" "+ev.Route+":"+field, 1)
	}

	_, err := pipe.Exec(ctx)
	return err
}
