package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// checkScript increments the window counter and stamps the expiry in one
// round trip, so the count and the reset time stay consistent under
// concurrent callers across instances.
var checkScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {count, ttl}
`)

// RedisLimiter shares fixed-window counters across instances, keeping the
// effective limit stable when the API is scaled horizontally.
type RedisLimiter struct {
	client *redis.Client
	prefix string
}

func NewRedisLimiter(client *redis.Client) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: "ratelimit:",
	}
}

func (l *RedisLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	vals, err := checkScript.Run(ctx, l.client, []string{l.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("rate limit check: %w", err)
	}
	if len(vals) != 2 {
		return Result{}, fmt.Errorf("rate limit check: unexpected script reply of length %d", len(vals))
	}

	count := int(vals[0])
	resetAt := time.Now().Add(time.Duration(vals[1]) * time.Millisecond)

	res := Result{Limit: limit, ResetAt: resetAt}
	if count > limit {
		res.Allowed = false
		res.Remaining = 0
		return res, nil
	}

	res.Allowed = true
	res.Remaining = limit - count
	return res, nil
}
