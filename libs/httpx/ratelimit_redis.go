package httpx

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter shared by every replica through Redis.
type RedisLimiter struct {
	rdb    redis.Scripter
	limit  int64
	window time.Duration
	prefix string
}

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

func NewRedisLimiter(rdb redis.Scripter, perWindow int, window time.Duration, prefix string) *RedisLimiter {
	if perWindow <= 0 {
		perWindow = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "rl"
	}
	return &RedisLimiter{rdb: rdb, limit: int64(perWindow), window: window, prefix: prefix}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := fixedWindowScript.Run(ctx, l.rdb, []string{l.prefix + ":" + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis rate limit: %w", err)
	}
	return count <= l.limit, nil
}
