package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/cobranzas/backend/internal/domain/shared"
	"github.com/cobranzas/backend/internal/infrastructure/config"
)

// Store is an idempotency store that also hands out per-key locks
type Store interface {
	shared.IdempotencyStore
	shared.Locker
	Ping(ctx context.Context) error
	Close() error
}

// StoreFactory creates stores based on configuration
type StoreFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// StoreFactoryOption is a functional option for configuring the factory
type StoreFactoryOption func(*StoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the in-memory store when Redis is unavailable
func WithInMemoryFallback(allow bool) StoreFactoryOption {
	return func(f *StoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStoreFactory creates a new factory
func NewStoreFactory(cfg config.RedisConfig, opts ...StoreFactoryOption) *StoreFactory {
	f := &StoreFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisStore creates a Redis-based store
func (f *StoreFactory) CreateRedisStore() (Store, error) {
	store, err := NewRedisIdempotencyStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis store: %w", err)
	}
	return store, nil
}

// CreateInMemoryStore creates an in-memory store
func (f *StoreFactory) CreateInMemoryStore() Store {
	return NewInMemoryIdempotencyStore()
}

// CreateStore uses Redis when enabled and reachable, otherwise the in-memory
// store if fallback is allowed.
func (f *StoreFactory) CreateStore() (Store, error) {
	if !f.redisConfig.Enabled {
		f.logger.Info("Redis disabled, using in-memory action guard")
		return f.CreateInMemoryStore(), nil
	}

	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("Using Redis action guard")
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for action guard but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory action guard. "+
		"Concurrent charges from other instances will not be detected.",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
