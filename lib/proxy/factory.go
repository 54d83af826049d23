package proxy

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("proxy")

// Factory is everything a process needs to resolve a proxied value.
type Factory struct {
	// Key of the value in the store
	Key string `json:"key" msgpack:"key"`
	// Store is the name of the store instance holding the value
	Store string `json:"store" msgpack:"store"`
	// Kind is the backend kind used to reconstruct the store (see store.RegisterKind)
	Kind string `json:"kind" msgpack:"kind"`
	// Params are the reconnect parameters of the store
	Params store.Params `json:"params,omitempty" msgpack:"params,omitempty"`
	// Evict removes the value from the cache and the backend once it was resolved
	Evict bool `json:"evict,omitempty" msgpack:"evict,omitempty"`
	// Serialize is false if the value is stored as raw bytes
	Serialize bool `json:"serialize" msgpack:"serialize"`
	// Strict only trusts cached values whose timestamp is current
	Strict bool `json:"strict,omitempty" msgpack:"strict,omitempty"`
}

// Validate checks that the factory names a key and a store
func (f Factory) Validate() error {
	switch {
	case f.Key == "":
		return store.NewError(store.RetCInvalidOperation, "factory has no key")
	case f.Store == "":
		return store.NewError(store.RetCInvalidOperation, "factory has no store name")
	case f.Kind == "":
		return store.NewError(store.RetCInvalidOperation, "factory has no store kind")
	}
	return nil
}

func (f Factory) String() string {
	return fmt.Sprintf("Factory(key='%s', store='%s', kind='%s', evict=%t, serialize=%t, strict=%t)",
		f.Key, f.Store, f.Kind, f.Evict, f.Serialize, f.Strict)
}

// Resolve materializes the value described by f.
//
// The store is looked up by name and constructed from Kind and Params if
// this process does not know it yet. An absent key returns
// store.ErrKeyNotFound.
func Resolve[T any](ctx context.Context, f Factory) (T, error) {
	var zero T

	if err := f.Validate(); err != nil {
		return zero, err
	}

	s, err := store.Open(f.Store, f.Kind, f.Params)
	if err != nil {
		return zero, err
	}

	v, ok, err := store.Get[T](ctx, s, f.Key, f.Serialize, f.Strict)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, store.Errorf(store.RetCKeyNotFound, "key '%s' not found in store '%s'", f.Key, f.Store)
	}

	if f.Evict {
		if err := s.Evict(ctx, f.Key); err != nil {
			Logger.Warningf("failed to evict key='%s' from store(name='%s') after resolve: %v", f.Key, f.Store, err)
		}
	}

	Logger.Debugf("RESOLVED key='%s' FROM store(name='%s')", f.Key, f.Store)
	return v, nil
}
