package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/config"
)

// DeliveryStoreFactory builds the delivery dedupe store selected by configuration
type DeliveryStoreFactory struct {
	dedupe                config.DedupeConfig
	redis                 config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// DeliveryStoreFactoryOption configures the factory
type DeliveryStoreFactoryOption func(*DeliveryStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) DeliveryStoreFactoryOption {
	return func(f *DeliveryStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis falls back to
// the in-memory store. Default is true.
func WithInMemoryFallback(allow bool) DeliveryStoreFactoryOption {
	return func(f *DeliveryStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewDeliveryStoreFactory creates a new factory
func NewDeliveryStoreFactory(dedupe config.DedupeConfig, redisCfg config.RedisConfig, opts ...DeliveryStoreFactoryOption) *DeliveryStoreFactory {
	f := &DeliveryStoreFactory{
		dedupe:                dedupe,
		redis:                 redisCfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateInMemoryStore creates a process-local store. Instances behind a load
// balancer do not share it.
func (f *DeliveryStoreFactory) CreateInMemoryStore() *MemoryDeliveryStore {
	return NewMemoryDeliveryStore(f.dedupe.CleanupInterval, WithMaxEntries(f.dedupe.MaxEntries))
}

// CreateStore returns the configured backend
func (f *DeliveryStoreFactory) CreateStore(ctx context.Context) (shared.IdempotencyStore, error) {
	if f.dedupe.Backend != "redis" {
		f.logger.Info("using in-memory delivery dedupe store",
			zap.Int("max_entries", f.dedupe.MaxEntries),
			zap.Duration("ttl", f.dedupe.TTL),
		)
		return f.CreateInMemoryStore(), nil
	}

	store, err := NewRedisDeliveryStore(ctx, RedisConfig{
		Addr:     f.redis.Addr(),
		Password: f.redis.Password,
		DB:       f.redis.DB,
	}, f.dedupe.KeyPrefix)
	if err == nil {
		f.logger.Info("using Redis delivery dedupe store", zap.String("addr", f.redis.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for delivery dedupe but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory delivery dedupe store",
		zap.Error(err),
	)
	return f.CreateInMemoryStore(), nil
}
