package redisstore

import (
	"context"
	"errors"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"os"
	"testing"
)

// newTestStore connects to the server in REDIS_ADDR or to an in-process miniredis
func newTestStore(t *testing.T) store.IStore {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = miniredis.RunT(t).Addr()
	}
	s, err := NewRedisStore(store.Params{ParamAddr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRedisStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	key := "rkv-test-" + uuid.NewString()
	t.Cleanup(func() { _ = s.Evict(ctx, key) })

	_, ok, err := s.GetBytes(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.GetTimestamp(ctx, key)
	assert.True(t, errors.Is(err, store.ErrKeyNotFound))

	require.NoError(t, s.SetBytes(ctx, key, []byte("value")))

	data, ok, err := s.GetBytes(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), data)

	ts, err := s.GetTimestamp(ctx, key)
	require.NoError(t, err)
	assert.Greater(t, ts, 0.0)

	require.NoError(t, s.Evict(ctx, key))
	exists, err := s.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReservedKey(t *testing.T) {
	// the check happens before the server is contacted
	s, err := NewRedisStore(store.Params{ParamAddr: "127.0.0.1:1"})
	require.NoError(t, err)
	defer s.Close()

	err = s.SetBytes(context.Background(), "x_timestamp", []byte("v"))
	assert.True(t, errors.Is(err, store.ErrReservedKey))
}

func TestParams(t *testing.T) {
	s, err := NewRedisStore(store.Params{ParamDB: "3"})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, Kind, s.Kind())
	assert.Equal(t, DefaultAddr, s.Params()[ParamAddr])
	assert.Equal(t, "3", s.Params()[ParamDB])

	_, err = NewRedisStore(store.Params{ParamDB: "not-a-number"})
	assert.Error(t, err)
}

func TestOpenThroughRegistry(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	s, err := store.Open("redis-registry-test", Kind, store.Params{ParamAddr: mr.Addr()})
	require.NoError(t, err)
	defer s.Close()

	key, err := store.Set(ctx, s, "", map[string]int{"a": 1}, true)
	require.NoError(t, err)
	assert.True(t, mr.Exists(key))
	assert.True(t, mr.Exists(store.TimestampKey(key)))

	v, ok, err := store.Get[map[string]int](ctx, s, key, true, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]int{"a": 1}, v)

	// a write from another client invalidates the strict cache entry
	other, err := NewRedisStore(store.Params{ParamAddr: mr.Addr()})
	require.NoError(t, err)
	defer other.Close()
	writer, err := store.New("redis-writer", other, store.DefaultOptions())
	require.NoError(t, err)
	_, err = store.Set(ctx, writer, key, map[string]int{"a": 2}, true)
	require.NoError(t, err)

	v, ok, err = store.Get[map[string]int](ctx, s, key, true, true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, map[string]int{"a": 2}, v)
}
