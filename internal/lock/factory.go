package lock

import (
	"fmt"
	"time"

	"draftmark/internal/config"
	"draftmark/internal/review"
)

// DefaultTTL is the redis lease length when ttl_seconds is unset.
const DefaultTTL = 30 * time.Second

// NewLockerFromConfig creates a Locker based on the lock config type.
func NewLockerFromConfig(cfg config.LockConfig) (review.Locker, error) {
	switch cfg.Type {
	case "local", "":
		return NewLocalLocker(), nil
	case "redis":
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("redis lock requires redis_url to be set")
		}
		ttl := DefaultTTL
		if cfg.TTLSeconds > 0 {
			ttl = time.Duration(cfg.TTLSeconds) * time.Second
		}
		l, err := NewRedisLocker(cfg.RedisURL, ttl)
		if err != nil {
			return nil, err
		}
		return l, nil
	default:
		return nil, fmt.Errorf("unknown lock type: %s", cfg.Type)
	}
}
