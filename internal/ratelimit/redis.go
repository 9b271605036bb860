package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes, counts and conditionally records in one atomic round trip.
// KEYS[1] window key; ARGV: now ms, window ms, max, member.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', '(' .. (now - window))
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return 1
end
redis.call('PEXPIRE', key, window)
return 0
`)

// RedisLimiter shares sliding windows between processes through a sorted set per identifier.
type RedisLimiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisLimiter wraps an already verified client.
func NewRedisLimiter(rdb *redis.Client, max int, window time.Duration, prefix string) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		max:    max,
		window: window,
		prefix: strings.Trim(prefix, ":"),
		now:    time.Now,
	}
}

// Check runs the sliding-window script for id.
func (l *RedisLimiter) Check(ctx context.Context, id string) (bool, error) {
	now := l.now().UnixMilli()
	member := fmt.Sprintf("%d-%s", now, uuid.NewString())

	admitted, err := slidingWindowScript.Run(ctx, l.rdb, []string{l.key(id)},
		now, l.window.Milliseconds(), l.max, member,
	).Int()
	if err != nil {
		return false, fmt.Errorf("redis rate limit check: %w", err)
	}
	return admitted == 1, nil
}

// Reset is a no-op: other processes depend on the shared windows.
func (l *RedisLimiter) Reset() {}

// Close releases the underlying client.
func (l *RedisLimiter) Close() error {
	return l.rdb.Close()
}

func (l *RedisLimiter) key(id string) string {
	return l.prefix + ":" + id
}
