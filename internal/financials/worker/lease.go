package worker

import (
	"context"
	"time"

	"github.com/desmedtandreas/companions-app-backend/internal/platform/redis"
)

// RedisLocker implements the per-company lease with SET NX and a TTL, so a
// crashed worker frees its company after LeaseTTL at the latest.
type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, "1", ttl).Result()
}

func (l *RedisLocker) Release(ctx context.Context, key string) {
	// Best effort: a hung delete only delays the next run by the TTL.
	l.client.Del(ctx, key)
}
