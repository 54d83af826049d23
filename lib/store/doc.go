// Package store provides the byte level store capability (IStore), the generic
// caching layer on top of it (Store) and the registries used to reconstruct
// stores in other processes.
//
// The package focuses on:
//   - A capability interface implemented independently per backend kind
//   - One caching, serialization and statistics layer shared by all kinds
//   - A unified error taxonomy based on return codes
//
// Key Components:
//
//   - IStore: get/set/exists/timestamp/evict on raw bytes. Implementations are
//     the remote RDMA style provider client (rpc/client, kind "rdma"), the in
//     process store (lstore, kind "local") and a Redis backend (redisstore,
//     kind "redis"). Every SetBytes writes a timestamp entry under the derived
//     key key+"_timestamp" before writing the value.
//
//   - Store: wraps an IStore with a bounded local cache (lib/cache), a codec
//     (lib/codec) and optional go-metrics timers. The typed helpers Set[T] and
//     Get[T] encode/decode values, generate keys and implement strict reads
//     (a cached value is only used if its timestamp is still current).
//
//   - Registries: RegisterKind maps a kind tag to a constructor taking flat
//     Params. Register/Lookup/Open manage named Store instances so that a
//     serialized proxy factory can find (or build) its store by name.
//
//   - Error System: Error carries a RetCode. The sentinels (ErrKeyNotFound,
//     ErrTransferFailed, ErrTransferTooLarge, ErrTypeMismatch, ErrTimeout,
//     ErrMalformedEnvelope, ErrReservedKey) match any Error with the same code
//     through errors.Is.
//
// Usage Example:
//
//	s, err := store.Open("results", "rdma", store.Params{"addr": "tcp://10.0.0.5:9000"})
//	key, err := store.Set(ctx, s, "", result, true)
//	value, ok, err := store.Get[Result](ctx, s, key, true, false)
package store
