// Package testing holds the conformance tests and benchmarks every db.KVDB
// engine has to pass. The provider keeps its key-value maps in such an
// engine, so the suite covers exactly the operations the provider relies on
// (set, get, has, delete, write index) including concurrent access.
//
// Usage from an engine package (imported as dbtesting):
//
//	func TestMaple(t *testing.T) {
//		dbtesting.RunKVDBTests(t, "maple", func() db.KVDB { return maple.NewMapleDB(nil) })
//	}
//
//	func BenchmarkMaple(b *testing.B) {
//		dbtesting.RunKVDBBenchmarks(b, "maple", func() db.KVDB { return maple.NewMapleDB(nil) })
//	}
package testing
