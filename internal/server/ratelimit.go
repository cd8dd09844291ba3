package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter decides whether a client may issue another request
type Limiter interface {
	Allow(ctx context.Context, key string) (*LimitInfo, error)
}

// LimitInfo is the state of a client's limit after a request was counted
type LimitInfo struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
	Allowed   bool
}

// TokenBucket is an in-memory Limiter refilling Capacity tokens per Window
type TokenBucket struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity int
	window   time.Duration
	now      func() time.Time
	cancel   context.CancelFunc
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// TokenBucketConfig holds configuration for the token bucket limiter
type TokenBucketConfig struct {
	// Capacity is the number of requests allowed per Window
	Capacity int
	Window   time.Duration
	// CleanupInterval is how often idle buckets are dropped; 0 means Window
	CleanupInterval time.Duration
}

// NewTokenBucket creates a token bucket allowing capacity requests per window
func NewTokenBucket(capacity int, window time.Duration) *TokenBucket {
	return NewTokenBucketWithConfig(TokenBucketConfig{Capacity: capacity, Window: window})
}

// NewTokenBucketWithConfig creates a token bucket and starts its janitor
func NewTokenBucketWithConfig(config TokenBucketConfig) *TokenBucket {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = config.Window
	}
	ctx, cancel := context.WithCancel(context.Background())
	tb := &TokenBucket{
		buckets:  make(map[string]*bucket),
		capacity: config.Capacity,
		window:   config.Window,
		now:      time.Now,
		cancel:   cancel,
	}
	go tb.janitor(ctx, config.CleanupInterval)
	return tb
}

// Allow takes one token from the bucket of key
func (tb *TokenBucket) Allow(ctx context.Context, key string) (*LimitInfo, error) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: tb.capacity, lastRefill: now}
		tb.buckets[key] = b
	}

	if refill := int(float64(tb.capacity) * now.Sub(b.lastRefill).Seconds() / tb.window.Seconds()); refill > 0 {
		b.tokens = min(tb.capacity, b.tokens+refill)
		b.lastRefill = now
	}

	info := &LimitInfo{Limit: tb.capacity, ResetAt: b.lastRefill.Add(tb.window)}
	if b.tokens > 0 {
		b.tokens--
		info.Allowed = true
	}
	info.Remaining = b.tokens
	return info, nil
}

// Len returns the number of tracked clients
func (tb *TokenBucket) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.buckets)
}

// Sweep drops buckets idle for two windows
func (tb *TokenBucket) Sweep() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	cutoff := tb.now().Add(-2 * tb.window)
	for key, b := range tb.buckets {
		if b.lastRefill.Before(cutoff) {
			delete(tb.buckets, key)
		}
	}
}

// Close stops the janitor
func (tb *TokenBucket) Close() error {
	tb.cancel()
	return nil
}

func (tb *TokenBucket) janitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tb.Sweep()
		}
	}
}

// slidingWindow counts requests of the last window in a sorted set
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, 0, ARGV[2])
local current = redis.call('ZCARD', key)
if current < limit then
	redis.call('ZADD', key, now, now)
	redis.call('PEXPIRE', key, ARGV[4])
	return {1, current + 1}
end
return {0, current}
`)

// RedisLimiter is a sliding-window Limiter shared by every server using the same Redis
type RedisLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
	prefix string
	now    func() time.Time
}

// NewRedisLimiter creates a limiter allowing limit requests per window and key
func NewRedisLimiter(client redis.UniversalClient, limit int, window time.Duration, prefix string) (*RedisLimiter, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if limit <= 0 || window <= 0 {
		return nil, errors.New("limit and window must be greater than 0")
	}
	return &RedisLimiter{client: client, limit: limit, window: window, prefix: prefix, now: time.Now}, nil
}

// Allow records one request for key when the window has room for it
func (r *RedisLimiter) Allow(ctx context.Context, key string) (*LimitInfo, error) {
	now := r.now()
	res, err := slidingWindow.Run(ctx, r.client, []string{r.prefix + key},
		now.UnixNano(),
		now.Add(-r.window).UnixNano(),
		r.limit,
		r.window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("rate limit check failed: unexpected reply %v", res)
	}

	return &LimitInfo{
		Limit:     r.limit,
		Remaining: max(0, r.limit-int(res[1])),
		ResetAt:   now.Add(r.window),
		Allowed:   res[0] == 1,
	}, nil
}

// RateLimit rejects clients over their limit with 429. Requests are keyed by client
// IP. Limiter failures let the request through.
func RateLimit(limiter Limiter, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := limiter.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.Warn("rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
			if !info.Allowed {
				retryAfter := max(0, int64(time.Until(info.ResetAt).Seconds()))
				w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
