package cache

import (
	"fmt"

	"github.com/retailcore/backend/internal/domain/shared"
	"github.com/retailcore/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

type storeOptions struct {
	logger         *zap.Logger
	memoryFallback bool
}

// StoreOption configures NewIdempotencyStore
type StoreOption func(*storeOptions)

// WithLogger sets the logger used for fallback warnings
func WithLogger(logger *zap.Logger) StoreOption {
	return func(o *storeOptions) {
		o.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to the
// process-local store instead of failing startup. Defaults to true; disable
// it when several instances must share replay state.
func WithInMemoryFallback(allow bool) StoreOption {
	return func(o *storeOptions) {
		o.memoryFallback = allow
	}
}

// NewIdempotencyStore picks the replay claim store for this deployment:
// Redis when reachable, otherwise the in-memory store if fallback is allowed.
func NewIdempotencyStore(cfg config.RedisConfig, opts ...StoreOption) (shared.IdempotencyStore, error) {
	options := storeOptions{
		logger:         zap.NewNop(),
		memoryFallback: true,
	}
	for _, opt := range opts {
		opt(&options)
	}

	store, err := NewRedisIdempotencyStore(cfg)
	if err == nil {
		options.logger.Info("using redis idempotency store",
			zap.String("host", cfg.Host), zap.Int("port", cfg.Port))
		return store, nil
	}

	if !options.memoryFallback {
		return nil, fmt.Errorf("redis required for shared idempotency state: %w", err)
	}

	options.logger.Warn("redis unreachable, using in-memory idempotency store; "+
		"replay dedup will not be shared across instances",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}
