package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/cache"
	"github.com/ValentinKolb/rKV/lib/codec"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// --------------------------------------------------------------------------
// Store (generic caching layer over an IStore backend)
// --------------------------------------------------------------------------

// Options configures the generic layer of a Store
type Options struct {
	// CacheSize is the number of resolved values kept locally (0 = disabled)
	CacheSize int
	// CachePolicy selects the local cache implementation (see cache.New)
	CachePolicy string
	// Codec is the name of the codec used for serialized values (see codec.New)
	Codec string
	// Stats enables per operation timing
	Stats bool
}

// DefaultOptions returns the default store options
func DefaultOptions() Options {
	return Options{
		CacheSize:   DefaultCacheSize,
		CachePolicy: cache.PolicyLRU,
		Codec:       codec.Default,
	}
}

// Store composes a backend with the local cache, the value codec and
// optional statistics. It only depends on the IStore capability, so every
// backend kind gets the same caching and proxy semantics.
type Store struct {
	name    string
	backend IStore
	cache   cache.ICache
	opts    Options
	stats   *statsCollector
}

// New creates a store named name on top of backend.
// The store is not registered, use Register or Open for that.
func New(name string, backend IStore, opts Options) (*Store, error) {
	if name == "" {
		return nil, NewError(RetCInvalidOperation, "store name must not be empty")
	}
	if backend == nil {
		return nil, NewError(RetCInvalidOperation, "store backend is nil")
	}
	if opts.Codec == "" {
		opts.Codec = codec.Default
	}
	if _, err := codec.New[any](opts.Codec); err != nil {
		return nil, err
	}

	c, err := cache.New(opts.CachePolicy, opts.CacheSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		name:    name,
		backend: backend,
		cache:   c,
		opts:    opts,
	}
	if opts.Stats {
		s.stats = newStatsCollector()
	}
	return s, nil
}

// NewFromParams constructs the backend registered for kind and wraps it in a Store.
// The generic parameters (cache_size, cache_policy, codec, stats) are consumed
// here, all parameters are passed on to the backend constructor.
func NewFromParams(name, kind string, params Params) (*Store, error) {
	opts := DefaultOptions()

	size, err := params.Int(ParamCacheSize, DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	opts.CacheSize = int(size)
	opts.CachePolicy = params.String(ParamCachePolicy, opts.CachePolicy)
	opts.Codec = params.String(ParamCodec, opts.Codec)
	if opts.Stats, err = params.Bool(ParamStats, false); err != nil {
		return nil, err
	}

	backend, err := NewBackend(kind, params)
	if err != nil {
		return nil, err
	}

	s, err := New(name, backend, opts)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}
	return s, nil
}

// --------------------------------------------------------------------------
// Accessors
// --------------------------------------------------------------------------

// Name returns the name of the store
func (s *Store) Name() string { return s.name }

// Kind returns the kind of the backend
func (s *Store) Kind() string { return s.backend.Kind() }

// Backend returns the underlying backend
func (s *Store) Backend() IStore { return s.backend }

// Codec returns the name of the codec used for serialized values
func (s *Store) Codec() string { return s.opts.Codec }

// Params returns everything needed to reconstruct this store with NewFromParams
func (s *Store) Params() Params {
	return s.backend.Params().Merge(Params{
		ParamCacheSize:   fmt.Sprint(s.opts.CacheSize),
		ParamCachePolicy: s.opts.CachePolicy,
		ParamCodec:       s.opts.Codec,
		ParamStats:       fmt.Sprint(s.opts.Stats),
	})
}

// Stats returns a snapshot of the operation timings (nil if stats are disabled)
func (s *Store) Stats() map[string]OpStats {
	if s.stats == nil {
		return nil
	}
	return s.stats.snapshot()
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// Exists returns whether key exists in the backend
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	defer s.stats.time("exists")()
	return s.backend.Exists(ctx, key)
}

// IsCached returns whether a resolved value for key is held locally
func (s *Store) IsCached(key string) bool {
	return s.cache.Contains(key)
}

// GetTimestamp returns the timestamp of the current version of key
func (s *Store) GetTimestamp(ctx context.Context, key string) (float64, error) {
	defer s.stats.time("get_timestamp")()
	return s.backend.GetTimestamp(ctx, key)
}

// Evict removes key from the local cache and asks the backend to evict it.
// Evicting an absent key is not an error.
func (s *Store) Evict(ctx context.Context, key string) error {
	defer s.stats.time("evict")()
	s.cache.Evict(key)
	if err := s.backend.Evict(ctx, key); err != nil {
		return err
	}
	Logger.Debugf("EVICT key='%s' FROM store(name='%s')", key, s.name)
	return nil
}

// Close closes the backend and drops all cached values.
// A registered store is removed from the registry, so a later Open of its
// name constructs a new one.
func (s *Store) Close() error {
	unregisterInstance(s)
	s.cache.Purge()
	return s.backend.Close()
}

// --------------------------------------------------------------------------
// Typed Operations
// --------------------------------------------------------------------------

// Set stores obj under key and returns the key. If key is empty a new unique key is generated.
// With serialize the object is encoded with the store codec, otherwise obj must be a
// []byte and is stored as is (ErrTypeMismatch for any other type).
func Set[T any](ctx context.Context, s *Store, key string, obj T, serialize bool) (string, error) {
	defer s.stats.time("set")()

	if key == "" {
		key = uuid.NewString()
	}

	data, err := encode(s, obj, serialize)
	if err != nil {
		return "", err
	}

	if err := s.backend.SetBytes(ctx, key, data); err != nil {
		return "", err
	}

	// the cached value (if any) is stale now
	s.cache.Evict(key)

	Logger.Debugf("SET key='%s' IN store(name='%s')", key, s.name)
	return key, nil
}

// Get returns the object stored under key. The boolean reports whether the key was found.
//
// The local cache is consulted first. With strict the cached value is only
// trusted if its timestamp matches the timestamp of the current version in
// the backend, otherwise the value is fetched again.
//
// A []byte result is a private copy. Other reference types (maps, slices,
// pointers) are shared with the cache and must not be modified by the caller.
func Get[T any](ctx context.Context, s *Store, key string, serialize, strict bool) (T, bool, error) {
	defer s.stats.time("get")()

	var zero T

	if entry, ok := s.cache.Get(key); ok {
		if v, ok := entry.Value.(T); ok {
			if !strict {
				Logger.Debugf("GET key='%s' FROM store(name='%s'): cache hit", key, s.name)
				return detach(v), true, nil
			}

			ts, err := s.backend.GetTimestamp(ctx, key)
			switch {
			case err == nil && ts == entry.Timestamp:
				Logger.Debugf("GET key='%s' FROM store(name='%s'): cache hit (strict)", key, s.name)
				return detach(v), true, nil
			case err != nil && !errors.Is(err, ErrKeyNotFound):
				return zero, false, err
			}
		}
		s.cache.Evict(key)
	}

	// with strict the timestamp is read before the value, so a concurrent
	// overwrite can only make the recorded timestamp older than the value
	var ts float64
	if strict {
		var err error
		ts, err = s.backend.GetTimestamp(ctx, key)
		if errors.Is(err, ErrKeyNotFound) {
			return zero, false, nil
		} else if err != nil {
			return zero, false, err
		}
	}

	data, ok, err := s.backend.GetBytes(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}

	v, err := decode[T](s, data, serialize)
	if err != nil {
		return zero, false, err
	}

	s.cache.Set(key, cache.Entry{Value: detach(v), Timestamp: ts})
	Logger.Debugf("GET key='%s' FROM store(name='%s'): cache miss", key, s.name)
	return v, true, nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// detach returns a copy of v if it is a byte slice, so cached bytes never
// alias memory owned by a caller or a backend
func detach[T any](v T) T {
	if b, ok := any(v).([]byte); ok && b != nil {
		return any(bytes.Clone(b)).(T)
	}
	return v
}

// encode turns obj into the stored payload
func encode[T any](s *Store, obj T, serialize bool) ([]byte, error) {
	if !serialize {
		data, ok := any(obj).([]byte)
		if !ok {
			return nil, Errorf(RetCTypeMismatch, "data must be of type []byte when serialize is disabled, found %T", obj)
		}
		return data, nil
	}

	c, err := codec.New[T](s.opts.Codec)
	if err != nil {
		return nil, err
	}
	data, err := c.Encode(obj)
	if errors.Is(err, codec.ErrUnsupportedType) {
		return nil, NewError(RetCTypeMismatch, err.Error())
	}
	return data, err
}

// decode turns a stored payload into a T
func decode[T any](s *Store, data []byte, serialize bool) (T, error) {
	if !serialize {
		v, ok := any(data).(T)
		if !ok {
			var zero T
			return zero, Errorf(RetCTypeMismatch, "value is stored as []byte and cannot be returned as %T", zero)
		}
		return v, nil
	}

	c, err := codec.New[T](s.opts.Codec)
	if err != nil {
		var zero T
		return zero, err
	}
	v, err := c.Decode(data)
	if errors.Is(err, codec.ErrUnsupportedType) {
		return v, NewError(RetCTypeMismatch, err.Error())
	}
	return v, err
}
