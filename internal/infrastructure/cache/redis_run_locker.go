package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/crechebooks/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
)

const defaultLockKeyPrefix = "crechebooks:lock:"

// RedisRunLocker grants exclusive runs across worker instances using Redis locks
type RedisRunLocker struct {
	client    *redis.Client
	locker    *redislock.Client
	keyPrefix string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisRunLocker connects to Redis and creates a locker
func NewRedisRunLocker(cfg RedisConfig) (*RedisRunLocker, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisRunLockerWithClient(client, ""), nil
}

// NewRedisRunLockerWithClient creates a locker over an existing Redis client
func NewRedisRunLockerWithClient(client *redis.Client, keyPrefix string) *RedisRunLocker {
	if keyPrefix == "" {
		keyPrefix = defaultLockKeyPrefix
	}
	return &RedisRunLocker{
		client:    client,
		locker:    redislock.New(client),
		keyPrefix: keyPrefix,
	}
}

// Acquire obtains the lock for key without waiting.
// A lock held by another worker is reported as a Conflict.
func (l *RedisRunLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.locker.Obtain(ctx, l.keyPrefix+key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, shared.NewConflictError("RUN_IN_PROGRESS", fmt.Sprintf("Another worker holds %s", key))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}

	return func(ctx context.Context) error {
		err := lock.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// expired before release; nothing left to free
			return nil
		}
		return err
	}, nil
}

// Close closes the Redis client
func (l *RedisRunLocker) Close() error {
	return l.client.Close()
}
