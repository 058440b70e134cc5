package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gw:rl:"

// RedisStore counts windows in Redis so the ceiling holds across instances.
// Same contract as MemoryStore; the guard does not know which one it has.
type RedisStore struct {
	client         *redis.Client
	maxRequests    int
	windowDuration time.Duration
}

// NewRedisStore creates a Redis-backed window store.
func NewRedisStore(client *redis.Client, maxRequests int, windowDuration time.Duration) *RedisStore {
	return &RedisStore{
		client:         client,
		maxRequests:    maxRequests,
		windowDuration: windowDuration,
	}
}

// Allow counts one request for key. INCR is atomic on the server, so the
// increment-and-compare holds across concurrent callers and instances.
func (s *RedisStore) Allow(ctx context.Context, key string) (Decision, error) {
	redisKey := redisKeyPrefix + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit incr: %w", err)
	}

	// First hit in a window starts its expiry clock.
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, s.windowDuration).Err(); err != nil {
			return Decision{}, fmt.Errorf("ratelimit expire: %w", err)
		}
	}

	if count > int64(s.maxRequests) {
		ttl, err := s.client.PTTL(ctx, redisKey).Result()
		if err != nil || ttl < 0 {
			ttl = s.windowDuration
		}
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}

	return Decision{Allowed: true, Remaining: s.maxRequests - int(count)}, nil
}
