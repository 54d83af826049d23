package store

import (
	"fmt"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// --------------------------------------------------------------------------
// Construction Parameters
// --------------------------------------------------------------------------

// Params are the flat construction parameters of a store. They are plain
// strings so that they can be shipped inside a serialized proxy factory and
// interpreted by the constructor registered for the store kind.
type Params map[string]string

// Generic parameters understood by every store (see NewFromParams)
const (
	ParamCacheSize   = "cache_size"
	ParamCachePolicy = "cache_policy"
	ParamCodec       = "codec"
	ParamStats       = "stats"

	DefaultCacheSize = 16
)

// Clone returns a copy of the parameters
func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Merge returns a copy of p overlaid with other
func (p Params) Merge(other Params) Params {
	c := p.Clone()
	for k, v := range other {
		c[k] = v
	}
	return c
}

// String returns the value for key or def if it is not set
func (p Params) String(key, def string) string {
	if v, ok := p[key]; ok && v != "" {
		return v
	}
	return def
}

// Int returns the value for key parsed as an integer or def if it is not set
func (p Params) Int(key string, def int64) (int64, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return def, nil
	}
	i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return i, nil
}

// Bool returns the value for key parsed as a boolean or def if it is not set
func (p Params) Bool(key string, def bool) (bool, error) {
	v, ok := p[key]
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return b, nil
}

// Format renders the parameters sorted by key
func (p Params) Format() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+p[k])
	}
	return strings.Join(parts, ",")
}

// --------------------------------------------------------------------------
// Backend Kinds
// --------------------------------------------------------------------------

// Constructor creates a backend of one kind from its parameters
type Constructor func(params Params) (IStore, error)

var kinds = xsync.NewMapOf[string, Constructor]()

// RegisterKind makes a backend kind available to NewBackend and Open.
// Backend packages call this from init(), so a process must import the
// package of every kind it wants to reconstruct.
func RegisterKind(kind string, ctor Constructor) {
	kinds.Store(kind, ctor)
}

// Kinds returns all registered kinds (sorted)
func Kinds() []string {
	var names []string
	kinds.Range(func(k string, _ Constructor) bool {
		names = append(names, k)
		return true
	})
	sort.Strings(names)
	return names
}

// NewBackend constructs a backend of the given kind
func NewBackend(kind string, params Params) (IStore, error) {
	ctor, ok := kinds.Load(kind)
	if !ok {
		return nil, Errorf(RetCInvalidOperation, "unknown store kind %q (registered: %s)", kind, strings.Join(Kinds(), ", "))
	}
	return ctor(params)
}

// --------------------------------------------------------------------------
// Named Store Instances
// --------------------------------------------------------------------------

var (
	storesMu sync.Mutex
	stores   = map[string]*Store{}
	// opening deduplicates concurrent Open calls for the same name
	opening singleflight.Group
)

// Register adds a store under its name. Registering a second store with the
// same name fails unless it is the same instance.
func Register(s *Store) error {
	storesMu.Lock()
	defer storesMu.Unlock()

	if existing, ok := stores[s.Name()]; ok && existing != s {
		return Errorf(RetCInvalidOperation, "a store named %q is already registered", s.Name())
	}
	stores[s.Name()] = s
	return nil
}

// Lookup returns the registered store with the given name
func Lookup(name string) (*Store, bool) {
	storesMu.Lock()
	defer storesMu.Unlock()
	s, ok := stores[name]
	return s, ok
}

// Unregister removes the store with the given name. The store is not closed.
func Unregister(name string) {
	storesMu.Lock()
	defer storesMu.Unlock()
	delete(stores, name)
}

// Open returns the registered store with the given name or constructs and
// registers a new one from kind and params. This is how a proxy factory
// reconnects in a process that never held the original store.
// Construction (which may dial a remote provider) runs without holding the
// registry lock.
func Open(name, kind string, params Params) (*Store, error) {
	if s, ok := Lookup(name); ok {
		return checkKind(s, kind)
	}

	v, err, _ := opening.Do(name, func() (any, error) {
		if s, ok := Lookup(name); ok {
			return s, nil
		}

		s, err := NewFromParams(name, kind, params)
		if err != nil {
			return nil, err
		}

		storesMu.Lock()
		existing, ok := stores[name]
		if !ok {
			stores[name] = s
		}
		storesMu.Unlock()

		if ok {
			// registered concurrently via Register
			_ = s.Close()
			return existing, nil
		}
		Logger.Infof("opened store name='%s' kind='%s'", name, kind)
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return checkKind(v.(*Store), kind)
}

// unregisterInstance removes s from the registry if it is the store registered under its name
func unregisterInstance(s *Store) {
	storesMu.Lock()
	defer storesMu.Unlock()
	if stores[s.Name()] == s {
		delete(stores, s.Name())
	}
}

func checkKind(s *Store, kind string) (*Store, error) {
	if s.Kind() != kind {
		return nil, Errorf(RetCInvalidOperation, "store %q is of kind %q, not %q", s.Name(), s.Kind(), kind)
	}
	return s, nil
}
