package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/crechebooks/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// RunLocker grants exclusive runs keyed by name
type RunLocker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RunLockerFactory creates run lockers based on configuration
type RunLockerFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RunLockerFactoryOption is a functional option for configuring the factory
type RunLockerFactoryOption func(*RunLockerFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RunLockerFactoryOption {
	return func(f *RunLockerFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-process locker when Redis is unavailable.
// Default is true.
func WithInMemoryFallback(allow bool) RunLockerFactoryOption {
	return func(f *RunLockerFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRunLockerFactory creates a new factory
func NewRunLockerFactory(cfg config.RedisConfig, opts ...RunLockerFactoryOption) *RunLockerFactory {
	f := &RunLockerFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateLocker returns a Redis locker, or an in-memory one when Redis is unreachable and
// fallback is allowed. The returned close function releases the Redis client.
func (f *RunLockerFactory) CreateLocker() (RunLocker, func() error, error) {
	locker, err := NewRedisRunLocker(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("using Redis run locker", zap.String("addr", f.redisConfig.Addr()))
		return locker, locker.Close, nil
	}

	if !f.allowInMemoryFallback {
		return nil, nil, fmt.Errorf("Redis required for run locks but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory run locker. "+
		"Escalation runs are only exclusive within this process.",
		zap.Error(err),
	)
	return NewInMemoryRunLocker(), func() error { return nil }, nil
}

var (
	_ RunLocker = (*RedisRunLocker)(nil)
	_ RunLocker = (*InMemoryRunLocker)(nil)
)
