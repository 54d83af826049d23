// Package util provides helpers shared by the db.KVDB implementations.
//
// The package contains:
//   - functions: the seeded FNV-1a string hash used to pick shards and seed generation
//   - statistics: summary statistics used to report how evenly keys are spread over shards
package util
