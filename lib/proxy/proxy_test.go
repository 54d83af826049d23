package proxy_test

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/proxy"
	"github.com/ValentinKolb/rKV/lib/store"
	_ "github.com/ValentinKolb/rKV/lib/store/lstore"
	"github.com/ValentinKolb/rKV/rpc/bulk"
	"github.com/ValentinKolb/rKV/rpc/client"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/serializer"
	"github.com/ValentinKolb/rKV/rpc/server"
	"github.com/ValentinKolb/rKV/rpc/transport/tcp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"net"
	"sync"
	"sync/atomic"
	"testing"
)

// --------------------------------------------------------------------------
// Shared memory backend
// --------------------------------------------------------------------------

// poolBackend is a backend whose data lives in a named pool shared by every
// instance constructed with the same "pool" parameter, so a store rebuilt
// from its params sees the same values (like a second process would).
type poolBackend struct {
	pool *pool
	name string
}

type pool struct {
	mu   sync.Mutex
	data map[string][]byte
	gets atomic.Int64
}

const poolKind = "pool"

var pools sync.Map

func getPool(name string) *pool {
	p, _ := pools.LoadOrStore(name, &pool{data: map[string][]byte{}})
	return p.(*pool)
}

func init() {
	store.RegisterKind(poolKind, func(params store.Params) (store.IStore, error) {
		name := params.String("pool", "")
		if name == "" {
			return nil, store.NewError(store.RetCInvalidOperation, "missing pool")
		}
		return &poolBackend{pool: getPool(name), name: name}, nil
	})
}

func (b *poolBackend) SetBytes(_ context.Context, key string, data []byte) error {
	if store.IsReservedKey(key) {
		return store.ErrReservedKey
	}
	b.pool.mu.Lock()
	defer b.pool.mu.Unlock()
	b.pool.data[store.TimestampKey(key)] = store.FormatTimestamp(store.NewTimestamp())
	b.pool.data[key] = append([]byte(nil), data...)
	return nil
}

func (b *poolBackend) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	b.pool.gets.Add(1)
	b.pool.mu.Lock()
	defer b.pool.mu.Unlock()
	v, ok := b.pool.data[key]
	return v, ok, nil
}

func (b *poolBackend) Exists(_ context.Context, key string) (bool, error) {
	b.pool.mu.Lock()
	defer b.pool.mu.Unlock()
	_, ok := b.pool.data[key]
	return ok, nil
}

func (b *poolBackend) GetTimestamp(_ context.Context, key string) (float64, error) {
	b.pool.mu.Lock()
	defer b.pool.mu.Unlock()
	raw, ok := b.pool.data[store.TimestampKey(key)]
	if !ok {
		return 0, store.ErrKeyNotFound
	}
	return store.ParseTimestamp(raw)
}

// Evict only affects the local cache (like the rdma kind)
func (b *poolBackend) Evict(context.Context, string) error { return nil }

func (b *poolBackend) Kind() string         { return poolKind }
func (b *poolBackend) Params() store.Params { return store.Params{"pool": b.name} }
func (b *poolBackend) Close() error         { return nil }

// newPoolStore opens a registered store over a fresh pool
func newPoolStore(t *testing.T) (*store.Store, *pool) {
	t.Helper()
	name := "test-" + uuid.NewString()
	s, err := store.Open(name, poolKind, store.Params{"pool": name})
	require.NoError(t, err)
	t.Cleanup(func() { store.Unregister(name) })
	return s, getPool(name)
}

type result struct {
	ID     int
	Values []float64
	Label  string
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestLazyResolution(t *testing.T) {
	ctx := context.Background()
	s, p := newPoolStore(t)

	want := result{ID: 1, Values: []float64{1.5, 2.5}, Label: "a"}
	px, err := proxy.New(ctx, s, want)
	require.NoError(t, err)

	assert.False(t, px.Resolved())
	assert.Equal(t, int64(0), p.gets.Load())
	assert.Contains(t, px.String(), "Proxy(")

	got, err := px.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, px.Resolved())
	assert.Equal(t, fmt.Sprint(want), px.String())
}

func TestCacheTransparency(t *testing.T) {
	ctx := context.Background()
	s, p := newPoolStore(t)

	px, err := proxy.New(ctx, s, result{ID: 2})
	require.NoError(t, err)
	key := px.Factory().Key

	first, err := px.Value(ctx)
	require.NoError(t, err)
	second, err := proxy.FromKey[result](s, key).Value(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), p.gets.Load(), "second resolution must hit the cache")
	assert.True(t, s.IsCached(key))

	require.NoError(t, s.Evict(ctx, key))
	assert.False(t, s.IsCached(key))

	third, err := proxy.FromKey[result](s, key).Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, third)
	assert.Equal(t, int64(2), p.gets.Load(), "resolution after evict must fetch again")
}

func TestProxyKeepsResolvedValue(t *testing.T) {
	ctx := context.Background()
	s, p := newPoolStore(t)

	px, err := proxy.New(ctx, s, "hello", proxy.WithKey("greeting"))
	require.NoError(t, err)
	assert.Equal(t, "greeting", px.Factory().Key)

	_, err = px.Value(ctx)
	require.NoError(t, err)

	// the proxy holds its own copy, independent of the local cache
	require.NoError(t, s.Evict(ctx, "greeting"))
	v, err := px.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
	assert.Equal(t, int64(1), p.gets.Load())
}

func TestFactoryPortabilityJSON(t *testing.T) {
	ctx := context.Background()
	s, _ := newPoolStore(t)

	want := result{ID: 3, Values: []float64{3}, Label: "json"}
	px, err := proxy.New(ctx, s, want, proxy.WithStrict())
	require.NoError(t, err)

	data, err := json.Marshal(px)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "Label", "proxy must not serialize its value")

	// forget the store, as a process that never held it
	store.Unregister(s.Name())

	var remote proxy.Proxy[result]
	require.NoError(t, json.Unmarshal(data, &remote))
	assert.False(t, remote.Resolved())
	assert.Equal(t, px.Factory(), remote.Factory())

	got, err := remote.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	reopened, ok := store.Lookup(s.Name())
	require.True(t, ok)
	assert.NotSame(t, s, reopened)
	t.Cleanup(func() { store.Unregister(s.Name()) })
}

func TestFactoryPortabilityMsgpack(t *testing.T) {
	ctx := context.Background()
	s, _ := newPoolStore(t)

	px, err := proxy.New(ctx, s, []int{1, 2, 3})
	require.NoError(t, err)

	// resolved proxies still serialize as their factory
	_, err = px.Value(ctx)
	require.NoError(t, err)

	data, err := msgpack.Marshal(px)
	require.NoError(t, err)

	var f proxy.Factory
	require.NoError(t, msgpack.Unmarshal(data, &f))
	assert.Equal(t, px.Factory(), f)

	store.Unregister(s.Name())
	t.Cleanup(func() { store.Unregister(s.Name()) })

	remote := &proxy.Proxy[[]int]{}
	require.NoError(t, msgpack.Unmarshal(data, remote))
	got, err := remote.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestEvictOnResolve(t *testing.T) {
	ctx := context.Background()
	name := "evict-" + uuid.NewString()
	s, err := store.Open(name, "local", nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Unregister(name)
		_ = s.Close()
	})

	px, err := proxy.New(ctx, s, 42, proxy.WithEvict())
	require.NoError(t, err)
	key := px.Factory().Key
	assert.True(t, px.Factory().Evict)

	v, err := px.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.False(t, s.IsCached(key))

	// read-once: the value is gone for everyone else
	_, err = proxy.FromKey[int](s, key).Value(ctx)
	assert.ErrorIs(t, err, store.ErrKeyNotFound)

	// but the proxy that resolved it still has it
	v, err = px.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestStrictResolution(t *testing.T) {
	ctx := context.Background()
	s, p := newPoolStore(t)

	// a second store instance on the same data, standing in for another writer
	other, err := store.NewFromParams("other-"+s.Name(), poolKind, s.Params())
	require.NoError(t, err)

	px, err := proxy.New(ctx, s, "v1", proxy.WithStrict())
	require.NoError(t, err)
	key := px.Factory().Key

	v, err := px.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	_, err = store.Set(ctx, other, key, "v2", true)
	require.NoError(t, err)

	// non strict resolution trusts the stale cache entry
	v, err = proxy.FromKey[string](s, key).Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v1", v)

	v, err = proxy.FromKey[string](s, key, proxy.WithStrict()).Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.Equal(t, int64(2), p.gets.Load())

	// unchanged timestamp: the cached value is used without a fetch
	v, err = proxy.FromKey[string](s, key, proxy.WithStrict()).Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", v)
	assert.Equal(t, int64(2), p.gets.Load())
}

func TestRawBytes(t *testing.T) {
	ctx := context.Background()
	s, _ := newPoolStore(t)

	px, err := proxy.New(ctx, s, []byte{0, 1, 2}, proxy.WithSerialize(false))
	require.NoError(t, err)
	assert.False(t, px.Factory().Serialize)

	v, err := px.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 1, 2}, v)

	_, err = proxy.New(ctx, s, "not bytes", proxy.WithSerialize(false))
	assert.ErrorIs(t, err, store.ErrTypeMismatch)
}

func TestMissingKey(t *testing.T) {
	ctx := context.Background()
	s, _ := newPoolStore(t)

	px := proxy.FromKey[result](s, "missing")
	_, err := px.Value(ctx)
	assert.ErrorIs(t, err, store.ErrKeyNotFound)
	assert.False(t, px.Resolved())

	// resolution can be retried once the value exists
	_, err = store.Set(ctx, s, "missing", result{ID: 9}, true)
	require.NoError(t, err)
	v, err := px.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, 9, v.ID)
}

func TestInvalidFactory(t *testing.T) {
	ctx := context.Background()

	_, err := proxy.FromFactory[int](proxy.Factory{Store: "x", Kind: poolKind}).Value(ctx)
	assert.Error(t, err)

	_, err = proxy.FromFactory[int](proxy.Factory{Key: "k", Store: "x", Kind: "no-such-kind"}).Value(ctx)
	assert.Error(t, err)

	var zero proxy.Proxy[int]
	_, err = zero.Value(ctx)
	assert.Error(t, err)
}

func TestBatch(t *testing.T) {
	ctx := context.Background()
	s, _ := newPoolStore(t)

	objs := make([]result, 50)
	for i := range objs {
		objs[i] = result{ID: i, Label: fmt.Sprint("obj-", i)}
	}

	proxies, err := proxy.NewBatch(ctx, s, objs, proxy.WithKey("ignored"))
	require.NoError(t, err)
	require.Len(t, proxies, len(objs))

	keys := map[string]bool{}
	for i, px := range proxies {
		keys[px.Factory().Key] = true
		v, err := px.Value(ctx)
		require.NoError(t, err)
		assert.Equal(t, objs[i], v)
	}
	assert.Len(t, keys, len(objs))
}

func TestConcurrentValue(t *testing.T) {
	ctx := context.Background()
	s, p := newPoolStore(t)

	px, err := proxy.New(ctx, s, result{ID: 7})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := px.Value(ctx)
			assert.NoError(t, err)
			assert.Equal(t, 7, v.ID)
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(1), p.gets.Load())
}

// --------------------------------------------------------------------------
// End to end over a provider
// --------------------------------------------------------------------------

func startProvider(t *testing.T) string {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	engine, err := bulk.NewTCPEngine("127.0.0.1:0", "")
	require.NoError(t, err)

	srv := server.NewRPCServer(common.DefaultServerConfig(), tcp.NewTCPServerTransportFromListener(l), serializer.NewBinarySerializer(), engine)
	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()

	t.Cleanup(func() {
		assert.NoError(t, srv.Close())
		assert.NoError(t, <-done)
		_ = engine.Close()
	})
	return "tcp://" + l.Addr().String()
}

func TestRemoteProxyAcrossProcesses(t *testing.T) {
	ctx := context.Background()
	addr := startProvider(t)

	name := "remote-" + uuid.NewString()
	s, err := store.Open(name, client.Kind, store.Params{
		client.ParamAddr:         addr,
		client.ParamBulkEndpoint: "127.0.0.1:0",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	want := result{ID: 11, Values: []float64{0.1, 0.2}, Label: "remote"}
	px, err := proxy.New(ctx, s, want)
	require.NoError(t, err)

	data, err := json.Marshal(px)
	require.NoError(t, err)

	store.Unregister(name)

	var remote proxy.Proxy[result]
	require.NoError(t, json.Unmarshal(data, &remote))
	got, err := remote.Value(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	reopened, ok := store.Lookup(name)
	require.True(t, ok)
	t.Cleanup(func() {
		store.Unregister(name)
		_ = reopened.Close()
	})
	assert.NotSame(t, s, reopened)
}
