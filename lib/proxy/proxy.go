package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/vmihailenco/msgpack/v5"
	"sync"
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

type options struct {
	key       string
	evict     bool
	serialize bool
	strict    bool
}

// Option configures the factory of a new proxy
type Option func(*options)

// WithKey stores the value under key instead of a generated one
func WithKey(key string) Option {
	return func(o *options) { o.key = key }
}

// WithEvict makes the proxy read-once: resolving it evicts the value
func WithEvict() Option {
	return func(o *options) { o.evict = true }
}

// WithSerialize sets whether the value is encoded with the store codec (default true).
// Without serialization the value must be a []byte.
func WithSerialize(serialize bool) Option {
	return func(o *options) { o.serialize = serialize }
}

// WithStrict makes resolution verify the timestamp of cached values
func WithStrict() Option {
	return func(o *options) { o.strict = true }
}

func newOptions(opts []Option) options {
	o := options{serialize: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) factory(s *store.Store, key string) Factory {
	return Factory{
		Key:       key,
		Store:     s.Name(),
		Kind:      s.Kind(),
		Params:    s.Params(),
		Evict:     o.evict,
		Serialize: o.serialize,
		Strict:    o.strict,
	}
}

// --------------------------------------------------------------------------
// Proxy
// --------------------------------------------------------------------------

// Proxy is a lazily resolving handle to a value of type T.
//
// The zero value is an unresolved proxy without a factory; it becomes usable
// by unmarshaling a factory into it. All methods are safe for concurrent use.
type Proxy[T any] struct {
	mu       sync.Mutex
	factory  Factory
	value    T
	resolved bool
}

// New stores obj in s and returns an unresolved proxy for it
func New[T any](ctx context.Context, s *store.Store, obj T, opts ...Option) (*Proxy[T], error) {
	o := newOptions(opts)

	key, err := store.Set(ctx, s, o.key, obj, o.serialize)
	if err != nil {
		return nil, err
	}
	return FromFactory[T](o.factory(s, key)), nil
}

// FromKey returns a proxy for a value already stored in s under key.
// WithKey is ignored.
func FromKey[T any](s *store.Store, key string, opts ...Option) *Proxy[T] {
	return FromFactory[T](newOptions(opts).factory(s, key))
}

// FromFactory returns an unresolved proxy for f
func FromFactory[T any](f Factory) *Proxy[T] {
	return &Proxy[T]{factory: f}
}

// Value returns the proxied value, resolving it on first access.
// A failed resolution leaves the proxy unresolved, so it may be retried.
func (p *Proxy[T]) Value(ctx context.Context) (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.resolved {
		return p.value, nil
	}

	v, err := Resolve[T](ctx, p.factory)
	if err != nil {
		var zero T
		return zero, err
	}
	p.value, p.resolved = v, true
	return v, nil
}

// Resolved reports whether the value was materialized
func (p *Proxy[T]) Resolved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resolved
}

// Factory returns the factory of the proxy
func (p *Proxy[T]) Factory() Factory {
	p.mu.Lock()
	defer p.mu.Unlock()
	f := p.factory
	f.Params = f.Params.Clone()
	return f
}

// String prints the resolved value or, if unresolved, the factory
func (p *Proxy[T]) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return fmt.Sprint(p.value)
	}
	return fmt.Sprintf("Proxy(%s)", p.factory)
}

// --------------------------------------------------------------------------
// Serialization (always as the factory)
// --------------------------------------------------------------------------

func (p *Proxy[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Factory())
}

func (p *Proxy[T]) UnmarshalJSON(data []byte) error {
	var f Factory
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	p.reset(f)
	return nil
}

func (p *Proxy[T]) EncodeMsgpack(enc *msgpack.Encoder) error {
	return enc.Encode(p.Factory())
}

func (p *Proxy[T]) DecodeMsgpack(dec *msgpack.Decoder) error {
	var f Factory
	if err := dec.Decode(&f); err != nil {
		return err
	}
	p.reset(f)
	return nil
}

func (p *Proxy[T]) reset(f Factory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var zero T
	p.factory, p.value, p.resolved = f, zero, false
}

var (
	_ json.Marshaler        = (*Proxy[any])(nil)
	_ json.Unmarshaler      = (*Proxy[any])(nil)
	_ msgpack.CustomEncoder = (*Proxy[any])(nil)
	_ msgpack.CustomDecoder = (*Proxy[any])(nil)
	_ fmt.Stringer          = (*Proxy[any])(nil)
)
