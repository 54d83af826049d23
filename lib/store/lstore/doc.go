// Package lstore implements the in-process store backend (kind "local") of
// the store.IStore interface. It is a thin wrapper around a db.KVDB (the maple
// engine by default) with automatic write index management.
//
// Values live in the memory of the current process only. A proxy that is
// reconstructed in another process against a "local" store will find an empty
// store, so this kind is meant for tests, single process pipelines and as the
// reference implementation of the IStore semantics.
//
// Implementation Details:
//
//   - Write Index Management: The store maintains an atomic counter that
//     increments with each write, giving the engine a monotonically increasing
//     logical timestamp for stale write detection.
//
//   - Timestamps: SetBytes stores the creation time of the value under
//     key+"_timestamp" before storing the value itself. Keys ending in the
//     suffix are rejected with store.ErrReservedKey.
//
//   - Evict: unlike the remote backend, the local store owns its memory, so
//     Evict deletes the value and its timestamp.
//
// Usage Example:
//
//	s, err := store.Open("scratch", lstore.Kind, store.Params{"cache_size": "32"})
//	key, err := store.Set(ctx, s, "", []float64{1, 2, 3}, true)
package lstore
