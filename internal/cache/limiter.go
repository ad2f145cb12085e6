package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Limiter interface {
	Allow(ctx context.Context, key string) (allowed bool, retryAfter time.Duration, err error)
}

// WindowLimiter counts hits per key in a fixed window. A nil client allows
// everything, so the limiter can be wired unconditionally.
type WindowLimiter struct {
	rdb    *redis.Client
	name   string
	limit  int
	window time.Duration
}

func NewWindowLimiter(rdb *redis.Client, name string, limit int, window time.Duration) *WindowLimiter {
	return &WindowLimiter{
		rdb:    rdb,
		name:   name,
		limit:  limit,
		window: window,
	}
}

// INCR and PEXPIRE run together so a key never outlives its window.
var windowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

func (l *WindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	if l == nil || l.rdb == nil || l.limit <= 0 {
		return true, 0, nil
	}

	redisKey := fmt.Sprintf("rl:%s:%s", l.name, key)
	res, err := windowScript.Run(ctx, l.rdb, []string{redisKey}, l.window.Milliseconds()).Int64Slice()
	if err != nil {
		// fail open
		return true, 0, err
	}
	if len(res) != 2 {
		return true, 0, fmt.Errorf("unexpected limiter reply: %v", res)
	}

	if res[0] > int64(l.limit) {
		retry := time.Duration(res[1]) * time.Millisecond
		if retry <= 0 {
			retry = l.window
		}
		return false, retry, nil
	}
	return true, 0, nil
}
