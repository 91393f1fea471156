// Package cache holds short-lived lookups (buyer registration status) and
// the per-invoice submission lock. Redis is used when configured, otherwise
// an in-process store.
package cache

import (
	"context"
	"errors"
	"time"

	"einvoice/internal/config"

	redis "github.com/redis/go-redis/v9"
)

var (
	ErrEmptyKey   = errors.New("cache key is empty")
	ErrInvalidTTL = errors.New("cache ttl must be positive")
)

// Store is a string key/value cache with expiry.
type Store interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// TryLock sets key only if absent and returns a token for Unlock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// New returns a Redis store when cfg.Addr is set, otherwise a memory store.
func New(cfg config.RedisConfig) Store {
	if cfg.Addr == "" {
		return NewMemory()
	}
	return NewRedis(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}))
}

func check(key string, ttl time.Duration) error {
	if key == "" {
		return ErrEmptyKey
	}
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
