package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Counting backend
// --------------------------------------------------------------------------

type memBackend struct {
	mu     sync.Mutex
	data   map[string][]byte
	gets   atomic.Int64
	tsGets atomic.Int64
	evicts atomic.Int64
}

func newMemBackend() *memBackend {
	return &memBackend{data: map[string][]byte{}}
}

func (m *memBackend) SetBytes(_ context.Context, key string, data []byte) error {
	if IsReservedKey(key) {
		return ErrReservedKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[TimestampKey(key)] = FormatTimestamp(NewTimestamp())
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memBackend) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	m.gets.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memBackend) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *memBackend) GetTimestamp(_ context.Context, key string) (float64, error) {
	m.tsGets.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[TimestampKey(key)]
	if !ok {
		return 0, ErrKeyNotFound
	}
	return ParseTimestamp(raw)
}

func (m *memBackend) Evict(context.Context, string) error {
	m.evicts.Add(1)
	return nil
}

func (m *memBackend) Kind() string   { return "mem" }
func (m *memBackend) Params() Params { return Params{"backend": "mem"} }
func (m *memBackend) Close() error   { return nil }

func newTestStore(t *testing.T, opts Options) (*Store, *memBackend) {
	b := newMemBackend()
	s, err := New("test", b, opts)
	require.NoError(t, err)
	return s, b
}

type point struct {
	X, Y int
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, DefaultOptions())

	key, err := Set(ctx, s, "p", point{1, 2}, true)
	require.NoError(t, err)
	assert.Equal(t, "p", key)

	v, ok, err := Get[point](ctx, s, "p", true, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, point{1, 2}, v)
}

func TestSetGeneratesKey(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, DefaultOptions())

	k1, err := Set(ctx, s, "", "a", true)
	require.NoError(t, err)
	k2, err := Set(ctx, s, "", "b", true)
	require.NoError(t, err)

	assert.NotEmpty(t, k1)
	assert.NotEqual(t, k1, k2)
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, DefaultOptions())

	_, ok, err := Get[point](ctx, s, "missing", true, false)
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = Get[point](ctx, s, "missing", true, true)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCacheHit(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t, DefaultOptions())

	_, err := Set(ctx, s, "k", 42, true)
	require.NoError(t, err)
	assert.False(t, s.IsCached("k"), "set must not populate the cache")

	_, _, err = Get[int](ctx, s, "k", true, false)
	require.NoError(t, err)
	assert.True(t, s.IsCached("k"))

	_, _, err = Get[int](ctx, s, "k", true, false)
	require.NoError(t, err)
	assert.EqualValues(t, 1, b.gets.Load(), "second get must be served from the cache")
}

func TestStrictDetectsOverwrite(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t, DefaultOptions())

	_, err := Set(ctx, s, "k", "v1", true)
	require.NoError(t, err)
	v, _, err := Get[string](ctx, s, "k", true, true)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	// overwrite behind the store's back
	data, err := encode(s, "v2", true)
	require.NoError(t, err)
	require.NoError(t, b.SetBytes(ctx, "k", data))

	// non strict returns the stale cached value
	v, _, err = Get[string](ctx, s, "k", true, false)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	// strict notices the new timestamp and refetches
	v, _, err = Get[string](ctx, s, "k", true, true)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	// and the refreshed entry is trusted again
	gets := b.gets.Load()
	_, _, err = Get[string](ctx, s, "k", true, true)
	require.NoError(t, err)
	assert.Equal(t, gets, b.gets.Load())
}

func TestRawBytes(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t, DefaultOptions())

	_, err := Set(ctx, s, "raw", []byte{1, 2, 3}, false)
	require.NoError(t, err)

	stored, _, _ := b.GetBytes(ctx, "raw")
	assert.Equal(t, []byte{1, 2, 3}, stored, "raw values are stored unchanged")

	v, ok, err := Get[[]byte](ctx, s, "raw", false, false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, v)
}

func TestCachedBytesAreNotShared(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t, DefaultOptions())

	_, err := Set(ctx, s, "raw", []byte("abc"), false)
	require.NoError(t, err)

	first, ok, err := Get[[]byte](ctx, s, "raw", false, false)
	require.NoError(t, err)
	require.True(t, ok)
	first[0] = 'X'

	second, ok, err := Get[[]byte](ctx, s, "raw", false, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), second)
	second[1] = 'Y'

	third, _, err := Get[[]byte](ctx, s, "raw", false, false)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), third)
	assert.EqualValues(t, 1, b.gets.Load(), "later reads are served from the cache")
}

func TestTypeMismatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, DefaultOptions())

	_, err := Set(ctx, s, "k", point{1, 2}, false)
	assert.True(t, errors.Is(err, ErrTypeMismatch))

	_, err = Set(ctx, s, "k", []byte("x"), false)
	require.NoError(t, err)
	_, _, err = Get[point](ctx, s, "k", false, false)
	assert.True(t, errors.Is(err, ErrTypeMismatch))
}

func TestEvict(t *testing.T) {
	ctx := context.Background()
	s, b := newTestStore(t, DefaultOptions())

	_, _ = Set(ctx, s, "k", 1, true)
	_, _, _ = Get[int](ctx, s, "k", true, false)
	require.True(t, s.IsCached("k"))

	require.NoError(t, s.Evict(ctx, "k"))
	assert.False(t, s.IsCached("k"))
	assert.EqualValues(t, 1, b.evicts.Load())

	// evicting an absent key is fine
	require.NoError(t, s.Evict(ctx, "never-set"))
}

func TestDisabledCache(t *testing.T) {
	ctx := context.Background()
	opts := DefaultOptions()
	opts.CacheSize = 0
	s, b := newTestStore(t, opts)

	_, _ = Set(ctx, s, "k", 1, true)
	_, _, _ = Get[int](ctx, s, "k", true, false)
	_, _, _ = Get[int](ctx, s, "k", true, false)
	assert.EqualValues(t, 2, b.gets.Load())
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	opts := DefaultOptions()
	opts.Stats = true
	s, _ := newTestStore(t, opts)

	_, _ = Set(ctx, s, "k", 1, true)
	_, _, _ = Get[int](ctx, s, "k", true, false)

	stats := s.Stats()
	assert.EqualValues(t, 1, stats["set"].Count)
	assert.EqualValues(t, 1, stats["get"].Count)

	s2, _ := newTestStore(t, DefaultOptions())
	assert.Nil(t, s2.Stats())
}

func TestNewValidation(t *testing.T) {
	_, err := New("", newMemBackend(), DefaultOptions())
	assert.Error(t, err)

	_, err = New("x", nil, DefaultOptions())
	assert.Error(t, err)

	opts := DefaultOptions()
	opts.Codec = "xml"
	_, err = New("x", newMemBackend(), opts)
	assert.Error(t, err)
}

func TestParamsRoundTrip(t *testing.T) {
	opts := DefaultOptions()
	opts.CacheSize = 7
	opts.Codec = "cbor"
	s, _ := newTestStore(t, opts)

	p := s.Params()
	assert.Equal(t, "mem", p["backend"])
	assert.Equal(t, "7", p[ParamCacheSize])
	assert.Equal(t, "cbor", p[ParamCodec])
}

func TestRegistry(t *testing.T) {
	RegisterKind("mem-test", func(Params) (IStore, error) { return newMemBackend(), nil })
	defer Unregister("registry-test")

	assert.Contains(t, Kinds(), "mem-test")

	s1, err := Open("registry-test", "mem-test", Params{ParamCacheSize: "4"})
	require.NoError(t, err)
	s2, err := Open("registry-test", "mem-test", nil)
	require.NoError(t, err)
	assert.Same(t, s1, s2)

	_, err = Open("registry-test", "other-kind", nil)
	assert.Error(t, err)

	got, ok := Lookup("registry-test")
	assert.True(t, ok)
	assert.Same(t, s1, got)

	_, err = NewBackend("unknown-kind", nil)
	assert.True(t, errors.Is(err, &Error{Code: RetCInvalidOperation}))
}

func TestOpenDoesNotHoldRegistry(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int64
	RegisterKind("slow-test", func(Params) (IStore, error) {
		if calls.Add(1) == 1 {
			close(started)
		}
		<-release
		return newMemBackend(), nil
	})
	RegisterKind("mem-test", func(Params) (IStore, error) { return newMemBackend(), nil })
	defer Unregister("slow-store")
	defer Unregister("fast-store")

	results := make(chan *Store, 2)
	for i := 0; i < 2; i++ {
		go func() {
			s, err := Open("slow-store", "slow-test", nil)
			assert.NoError(t, err)
			results <- s
		}()
	}
	<-started

	// other names stay usable while slow-store is being constructed
	fast, err := Open("fast-store", "mem-test", nil)
	require.NoError(t, err)
	got, ok := Lookup("fast-store")
	assert.True(t, ok)
	assert.Same(t, fast, got)

	close(release)
	s1, s2 := <-results, <-results
	assert.Same(t, s1, s2)
	assert.EqualValues(t, 1, calls.Load(), "concurrent opens of one name construct once")
}

func TestCloseUnregisters(t *testing.T) {
	RegisterKind("mem-test", func(Params) (IStore, error) { return newMemBackend(), nil })
	defer Unregister("close-test")

	s1, err := Open("close-test", "mem-test", nil)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	_, ok := Lookup("close-test")
	assert.False(t, ok)

	s2, err := Open("close-test", "mem-test", nil)
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)

	// closing a store that is no longer registered leaves the new one alone
	require.NoError(t, s1.Close())
	got, ok := Lookup("close-test")
	assert.True(t, ok)
	assert.Same(t, s2, got)
}

func TestTimestamps(t *testing.T) {
	prev := NewTimestamp()
	for i := 0; i < 1000; i++ {
		ts := NewTimestamp()
		require.Greater(t, ts, prev)
		prev = ts
	}

	parsed, err := ParseTimestamp(FormatTimestamp(prev))
	require.NoError(t, err)
	assert.Equal(t, prev, parsed)

	_, err = ParseTimestamp([]byte("yesterday"))
	assert.Error(t, err)
}
