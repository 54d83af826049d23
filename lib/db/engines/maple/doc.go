// Package maple implements the sharded in-memory map (db.KVDB) a provider
// stores its values in.
//
// Key Components:
//
//   - mapleImpl: implements db.KVDB. Keys are spread over a fixed number of
//     shards, each shard is an xsync.MapOf keyed by the full string key, so
//     distinct keys never collide. All mutations go through MapOf.Compute and
//     are atomic per key.
//
//   - Entry: the stored value (always an owned copy) and the write index it
//     was written at.
//
// Internal Mechanisms:
//
//   - Sharding Strategy: String keys are hashed with FNV-1a and a database
//     specific seed. The hash is right-shifted by 7 bits to use higher-quality
//     bits for distribution and taken modulo the number of shards.
//
//   - Write Index: A logical timestamp that orders writes. The caller supplies
//     the index (a provider increments a counter per request), the database
//     only tracks the highest index seen. A write is only applied if its index
//     is greater than or equal to the index of the stored entry, so delayed
//     writes never overwrite newer data.
//
//   - Copy Semantics: Set copies the value before storing it and Get copies it
//     again before returning it. Stored slices are never modified in place, so
//     a reader can copy outside of the map's locks and a provider never holds a
//     lock while a transfer is in flight.
//
//   - Accounting: the number of keys and the total value size are tracked
//     with atomic counters, GetInfo reports them exactly together with the
//     shard distribution.
package maple
