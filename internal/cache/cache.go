// Package cache stores backend responses so repeated reads of the same request skip
// the round trip. Entries are keyed by endpoint and payload and expire after a TTL.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Store is a byte cache with per-entry expiry
type Store interface {
	// Get returns a stored value or ErrMiss
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value; a zero ttl uses the configured default
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value
	Delete(ctx context.Context, key string) error

	// Clear removes every value under the configured prefix
	Clear(ctx context.Context) error

	// Close releases background resources
	Close() error
}

// Config holds settings shared by every store
type Config struct {
	// TTL is the default lifetime of an entry; negative disables expiry
	TTL time.Duration
	// Prefix namespaces the keys of one application
	Prefix string
}

// DefaultConfig returns the default store configuration
func DefaultConfig() Config {
	return Config{
		TTL:    5 * time.Minute,
		Prefix: "pim:",
	}
}

// ErrMiss is returned when a key is absent or expired
var ErrMiss = errors.New("cache miss")

func miss(key string) error {
	return fmt.Errorf("%w: %s", ErrMiss, key)
}

// Key derives the cache key of a request from its endpoint and encoded payload
func Key(endpoint string, payload []byte) string {
	h := xxhash.New()
	_, _ = h.WriteString(endpoint)
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(payload)
	return endpoint + ":" + strconv.FormatUint(h.Sum64(), 16)
}
