package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "auth:throttle:"

// RedisResetThrottle holds one key per throttled subject for the length of
// the cooldown window.
type RedisResetThrottle struct {
	client *redis.Client
}

func NewRedisResetThrottle(client *redis.Client) *RedisResetThrottle {
	return &RedisResetThrottle{client: client}
}

// Acquire returns false while a previous acquisition of key is still live.
func (r *RedisResetThrottle) Acquire(ctx context.Context, key string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	return r.client.SetNX(ctx, keyPrefix+key, 1, window).Result()
}

func (r *RedisResetThrottle) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, keyPrefix+key).Err()
}

func (r *RedisResetThrottle) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
