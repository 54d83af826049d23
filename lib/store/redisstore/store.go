package redisstore

import (
	"context"
	"errors"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	goredis "github.com/redis/go-redis/v9"
)

var Logger = logger.GetLogger("redisstore")

// Kind is the kind tag of the Redis backend
const Kind = "redis"

// Parameter names understood by the constructor
const (
	ParamAddr     = "addr"
	ParamDB       = "db"
	ParamPassword = "password"

	DefaultAddr = "localhost:6379"
)

func init() {
	store.RegisterKind(Kind, func(params store.Params) (store.IStore, error) {
		return NewRedisStore(params)
	})
}

type storeImpl struct {
	rdb    goredis.UniversalClient
	params store.Params
}

// NewRedisStore connects to the Redis server named by params.
// The connection is established lazily on the first operation.
func NewRedisStore(params store.Params) (store.IStore, error) {
	dbNum, err := params.Int(ParamDB, 0)
	if err != nil {
		return nil, err
	}

	params = params.Clone()
	if params[ParamAddr] == "" {
		params[ParamAddr] = DefaultAddr
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     params[ParamAddr],
		Password: params[ParamPassword],
		DB:       int(dbNum),
	})

	return &storeImpl{rdb: rdb, params: params}, nil
}

// NewRedisStoreFromClient wraps an existing client, the store takes ownership of it
func NewRedisStoreFromClient(rdb goredis.UniversalClient, params store.Params) store.IStore {
	return &storeImpl{rdb: rdb, params: params.Clone()}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) SetBytes(ctx context.Context, key string, data []byte) error {
	if store.IsReservedKey(key) {
		return store.Errorf(store.RetCReservedKey, "key %q uses the reserved suffix %q", key, store.TimestampSuffix)
	}

	// both writes are applied atomically (MULTI/EXEC)
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, store.TimestampKey(key), store.FormatTimestamp(store.NewTimestamp()), 0)
		pipe.Set(ctx, key, data, 0)
		return nil
	})
	return wrapErr(err)
}

func (s *storeImpl) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrapErr(err)
	}
	return b, true, nil
}

func (s *storeImpl) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, wrapErr(err)
	}
	return n > 0, nil
}

func (s *storeImpl) GetTimestamp(ctx context.Context, key string) (float64, error) {
	raw, err := s.rdb.Get(ctx, store.TimestampKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return 0, store.Errorf(store.RetCKeyNotFound, "no timestamp for key %q", key)
	}
	if err != nil {
		return 0, wrapErr(err)
	}
	return store.ParseTimestamp(raw)
}

func (s *storeImpl) Evict(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key, store.TimestampKey(key)).Err(); err != nil {
		return wrapErr(err)
	}
	Logger.Debugf("evicted key='%s'", key)
	return nil
}

func (s *storeImpl) Kind() string { return Kind }

func (s *storeImpl) Params() store.Params { return s.params.Clone() }

func (s *storeImpl) Close() error {
	if err := s.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
		return err
	}
	return nil
}

// wrapErr maps client errors to store errors
func wrapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return store.NewError(store.RetCTimeout, err.Error())
	default:
		return store.NewError(store.RetCInternalError, err.Error())
	}
}
