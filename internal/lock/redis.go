package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"draftmark/internal/review"
)

// ErrLockExpired is returned by an unlock whose lease ran out, meaning
// another writer may have taken the key in the meantime.
var ErrLockExpired = errors.New("lock lease expired before release")

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

const (
	minRetry = 5 * time.Millisecond
	maxRetry = 200 * time.Millisecond
)

// RedisLocker coordinates writers across processes sharing one Redis.
// Each lock is a key holding a random token with a lease TTL.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLocker connects to redisURL and verifies the connection.
func NewRedisLocker(redisURL string, ttl time.Duration) (*RedisLocker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisLockerWithClient(client, ttl), nil
}

// NewRedisLockerWithClient creates a locker from an existing Redis client.
func NewRedisLockerWithClient(client *redis.Client, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: "draftmark:lock:",
		ttl:    ttl,
	}
}

// Lock polls SET NX with a growing delay until the key is free or ctx is done.
func (l *RedisLocker) Lock(ctx context.Context, key string) (review.Unlock, error) {
	redisKey := l.prefix + key
	token := uuid.NewString()
	wait := minRetry

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire redis lock: %w", err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, maxRetry)
	}

	return func() error {
		// Release even when the caller's context is already cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		n, err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Int()
		if err != nil {
			return fmt.Errorf("release redis lock: %w", err)
		}
		if n == 0 {
			return ErrLockExpired
		}
		return nil
	}, nil
}

// Close closes the Redis connection.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}

// Compile-time check that RedisLocker implements review.Locker
var _ review.Locker = (*RedisLocker)(nil)
