package lstore

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/db/engines/maple"
	"github.com/ValentinKolb/rKV/lib/store"
	"sync/atomic"
)

// Kind is the kind tag of the local store
const Kind = "local"

// ParamShards sets the number of shards of the maple engine (0 = number of CPUs)
const ParamShards = "shards"

func init() {
	store.RegisterKind(Kind, func(params store.Params) (store.IStore, error) {
		shards, err := params.Int(ParamShards, 0)
		if err != nil {
			return nil, err
		}
		return NewLocalStore(func() db.KVDB {
			return maple.NewMapleDB(&maple.DBOptions{NumShards: int(shards)})
		}, params), nil
	})
}

type storeImpl struct {
	db     db.KVDB
	index  atomic.Uint64
	params store.Params
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only lives in this process.
// params are returned unchanged by Params and may be nil.
func NewLocalStore(factory store.DBFactory, params store.Params) store.IStore {
	return &storeImpl{
		db:     factory(),
		params: params.Clone(),
	}
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) SetBytes(ctx context.Context, key string, data []byte) error {
	if !s.db.SupportsFeature(db.FeatureSet) {
		return store.NewError(store.RetCUnsupportedOperation, "Set operation is not supported")
	}
	if store.IsReservedKey(key) {
		return store.Errorf(store.RetCReservedKey, "key %q uses the reserved suffix %q", key, store.TimestampSuffix)
	}
	if err := ctx.Err(); err != nil {
		return store.NewError(store.RetCTimeout, err.Error())
	}
	s.db.Set(store.TimestampKey(key), store.FormatTimestamp(store.NewTimestamp()), s.incAndGetIndex())
	s.db.Set(key, data, s.incAndGetIndex())
	return nil
}

func (s *storeImpl) GetBytes(_ context.Context, key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	val, ok := s.db.Get(key)
	return val, ok, nil
}

func (s *storeImpl) Exists(_ context.Context, key string) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureHas) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Has operation is not supported")
	}
	return s.db.Has(key), nil
}

func (s *storeImpl) GetTimestamp(_ context.Context, key string) (float64, error) {
	raw, ok := s.db.Get(store.TimestampKey(key))
	if !ok {
		return 0, store.Errorf(store.RetCKeyNotFound, "no timestamp for key %q", key)
	}
	return store.ParseTimestamp(raw)
}

// Evict deletes the value and its timestamp, the local store owns its memory
func (s *storeImpl) Evict(_ context.Context, key string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	s.db.Delete(key, s.incAndGetIndex())
	s.db.Delete(store.TimestampKey(key), s.incAndGetIndex())
	return nil
}

func (s *storeImpl) Kind() string { return Kind }

func (s *storeImpl) Params() store.Params { return s.params.Clone() }

func (s *storeImpl) Close() error { return s.db.Close() }

// GetDBInfo returns information about the underlying database
func (s *storeImpl) GetDBInfo() db.DatabaseInfo {
	return s.db.GetInfo()
}

func (s *storeImpl) String() string {
	return fmt.Sprintf("lstore(keys=%d)", s.db.GetInfo().Keys)
}
