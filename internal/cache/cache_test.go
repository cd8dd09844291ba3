package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/conduit-lang/pim/pkg/backend"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	r := NewRedisWithClient(client, DefaultConfig())
	t.Cleanup(func() { _ = r.Close() })
	return r, mr
}

func stores(t *testing.T) map[string]Store {
	m := NewMemory()
	t.Cleanup(func() { _ = m.Close() })
	r, _ := setupRedis(t)
	return map[string]Store{"memory": m, "redis": r}
}

func TestStore_SetGetDelete(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrMiss)

			require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
			got, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, []byte("v"), got)

			require.NoError(t, s.Delete(ctx, "k"))
			_, err = s.Get(ctx, "k")
			assert.ErrorIs(t, err, ErrMiss)
		})
	}
}

func TestStore_Clear(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
			require.NoError(t, s.Set(ctx, "b", []byte("2"), 0))
			require.NoError(t, s.Clear(ctx))

			for _, k := range []string{"a", "b"} {
				_, err := s.Get(ctx, k)
				assert.ErrorIs(t, err, ErrMiss)
			}
		})
	}
}

func TestRedis_ClearKeepsForeignKeys(t *testing.T) {
	r, mr := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, mr.Set("other:key", "x"))
	require.NoError(t, r.Set(ctx, "mine", []byte("y"), 0))

	require.NoError(t, r.Clear(ctx))
	assert.True(t, mr.Exists("other:key"))
	assert.False(t, mr.Exists("pim:mine"))
}

func TestRedis_Expiry(t *testing.T) {
	r, mr := setupRedis(t)
	ctx := context.Background()
	require.NoError(t, r.Set(ctx, "k", []byte("v"), time.Second))

	mr.FastForward(2 * time.Second)
	_, err := r.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_Expiry(t *testing.T) {
	m := NewMemoryWithConfig(Config{TTL: time.Minute})
	defer m.Close()
	ctx := context.Background()

	now := time.Now()
	m.now = func() time.Time { return now }
	require.NoError(t, m.Set(ctx, "short", []byte("v"), time.Second))
	require.NoError(t, m.Set(ctx, "default", []byte("v"), 0))
	require.NoError(t, m.Set(ctx, "forever", []byte("v"), -1))

	now = now.Add(2 * time.Second)
	_, err := m.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrMiss)
	_, err = m.Get(ctx, "default")
	assert.NoError(t, err)

	now = now.Add(time.Hour)
	m.sweep()
	assert.Equal(t, 1, m.Len())
	_, err = m.Get(ctx, "forever")
	assert.NoError(t, err)
}

func TestMemory_CopiesValues(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	v := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", v, 0))
	v[0] = 'x'
	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), got)
}

func TestMemory_CancelledContext(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, m.Set(ctx, "k", nil, 0), context.Canceled)
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKey(t *testing.T) {
	a := Key("things", []byte(`{"resource":1}`))
	assert.Equal(t, a, Key("things", []byte(`{"resource":1}`)))
	assert.NotEqual(t, a, Key("things", []byte(`{"resource":2}`)))
	assert.NotEqual(t, a, Key("schema", []byte(`{"resource":1}`)))
	assert.Contains(t, a, "things:")
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, DriverNone, DefaultRedisConfig())
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(ctx, DriverMemory, DefaultRedisConfig())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)
	_ = s.Close()

	mr := miniredis.RunT(t)
	config := DefaultRedisConfig()
	config.Addr = mr.Addr()
	s, err = Open(ctx, DriverRedis, config)
	require.NoError(t, err)
	assert.IsType(t, &Redis{}, s)
	_ = s.Close()

	_, err = Open(ctx, "memcached", config)
	assert.Error(t, err)
}

type countingBackend struct {
	calls int
	err   error
}

func (c *countingBackend) Request(ctx context.Context, method backend.Method, endpoint string, data any) (json.RawMessage, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return json.RawMessage(`{"n":1}`), nil
}

func TestBackend_CachesReads(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			next := &countingBackend{}
			b := Wrap(next, s, BackendConfig{})

			for range 3 {
				out, err := backend.Get(ctx, b, backend.EndpointThings, map[string]any{"resource": 1})
				require.NoError(t, err)
				assert.JSONEq(t, `{"n":1}`, string(out))
			}
			assert.Equal(t, 1, next.calls)

			_, err := backend.Get(ctx, b, backend.EndpointThings, map[string]any{"resource": 2})
			require.NoError(t, err)
			assert.Equal(t, 2, next.calls)

			_, err = backend.Post(ctx, b, backend.EndpointThings, nil)
			require.NoError(t, err)
			assert.Equal(t, 3, next.calls)

			_, err = backend.Get(ctx, b, backend.EndpointThings, map[string]any{"resource": 1})
			require.NoError(t, err)
			assert.Equal(t, 4, next.calls)
		})
	}
}

func TestBackend_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	next := &countingBackend{err: boom}
	m := NewMemory()
	defer m.Close()
	b := Wrap(next, m, BackendConfig{})

	_, err := backend.Get(ctx, b, backend.EndpointSchema, nil)
	assert.ErrorIs(t, err, boom)
	_, err = backend.Get(ctx, b, backend.EndpointSchema, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, 0, m.Len())
}

func TestWrap_NilStore(t *testing.T) {
	next := &countingBackend{}
	assert.Same(t, backend.Backend(next), Wrap(next, nil, BackendConfig{}))
}
