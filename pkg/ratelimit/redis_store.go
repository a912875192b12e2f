package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript bumps the counter and sets the window TTL only when the key is
// fresh, so the window does not slide on every request.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// RedisStore shares rate-limit windows across API instances.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisStore) IncrementAndGet(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	res, err := incrScript.Run(ctx, s.client, []string{s.prefix + key}, window.Milliseconds()).Slice()
	if err != nil {
		return 0, 0, err
	}

	count, _ := res[0].(int64)
	ttlMillis, _ := res[1].(int64)
	if ttlMillis < 0 {
		ttlMillis = window.Milliseconds()
	}

	return count, time.Duration(ttlMillis) * time.Millisecond, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
