package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/conduit-lang/pim/pkg/backend"
	"go.uber.org/zap"
)

// Drivers accepted by Open
const (
	DriverNone   = "none"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Open creates the store for a driver name. DriverNone returns a nil store.
func Open(ctx context.Context, driver string, config RedisConfig) (Store, error) {
	switch driver {
	case "", DriverNone:
		return nil, nil
	case DriverMemory:
		return NewMemoryWithConfig(config.Config), nil
	case DriverRedis:
		r, err := NewRedis(ctx, config)
		if err != nil {
			return nil, err
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unknown cache driver %q", driver)
	}
}

// Backend serves GET requests from a store and forwards the rest. A successful POST
// or DELETE clears the store, since any cached read may be stale afterwards.
type Backend struct {
	next   backend.Backend
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

var _ backend.Backend = (*Backend)(nil)

// BackendConfig holds configuration for a caching backend
type BackendConfig struct {
	// TTL overrides the store default when non-zero
	TTL    time.Duration
	Logger *zap.Logger
}

// Wrap returns next unchanged when store is nil, or a caching backend otherwise
func Wrap(next backend.Backend, store Store, config BackendConfig) backend.Backend {
	if store == nil {
		return next
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	return &Backend{next: next, store: store, ttl: config.TTL, logger: config.Logger}
}

// Request implements backend.Backend
func (b *Backend) Request(ctx context.Context, method backend.Method, endpoint string, data any) (json.RawMessage, error) {
	if method != backend.MethodGet {
		out, err := b.next.Request(ctx, method, endpoint, data)
		if err != nil {
			return nil, err
		}
		if err := b.store.Clear(ctx); err != nil {
			b.logger.Warn("failed to clear response cache", zap.Error(err))
		}
		return out, nil
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	key := Key(endpoint, payload)

	cached, err := b.store.Get(ctx, key)
	switch {
	case err == nil:
		b.logger.Debug("response cache hit", zap.String("endpoint", endpoint), zap.String("key", key))
		return cached, nil
	case !errors.Is(err, ErrMiss):
		b.logger.Warn("response cache read failed", zap.String("key", key), zap.Error(err))
	}

	out, err := b.next.Request(ctx, method, endpoint, data)
	if err != nil {
		return nil, err
	}
	if err := b.store.Set(ctx, key, out, b.ttl); err != nil {
		b.logger.Warn("response cache write failed", zap.String("key", key), zap.Error(err))
	}
	return out, nil
}
