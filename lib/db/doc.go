// Package db provides the interface of the in-memory map a provider keeps its
// values in.
//
// Key Components:
//
//   - KVDB Interface: Set, Get, SizeOf, Has and Delete on string keys and
//     byte values. Values are copied on write and on read, so callers (e.g. a
//     provider pushing a value to a remote buffer) never hold a reference into
//     the map and never need to hold a lock while a transfer is in flight.
//
//   - Write Index: every write carries a logical timestamp. An entry is only
//     overwritten by writes with an equal or higher index, which gives
//     last-writer-wins in arrival order when the caller increments the index
//     per request.
//
//   - Feature Flags: the Feature type defines capability flags that
//     implementations advertise through SupportsFeature.
//
// Related Packages:
//
// The engines/maple package provides the sharded implementation of the KVDB
// interface. The testing package provides RunKVDBTests, a conformance suite
// every implementation should pass, and RunKVDBBenchmarks.
package db
