// Package cache provides the bounded, process local cache consulted by the
// store layer before any remote read.
//
// An ICache maps a key to an Entry holding the already deserialized value and
// the timestamp of the version it was read at. Entries are never synchronized
// with the remote store beyond explicit eviction.
//
// Policies:
//
//   - "lru": least recently used eviction backed by hashicorp/golang-lru/v2 (default).
//   - "ristretto": admission and eviction via dgraph-io/ristretto (TinyLFU).
//
// A size of 0 disables caching: New returns a cache that never holds entries,
// so every access goes to the remote store.
package cache
