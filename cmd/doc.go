// Package cmd implements the command-line interface of rKV. It provides a
// hierarchical command structure for running a provider server and for
// talking to one as a client.
//
// The package is organized into several subpackages:
//
//   - serve: starts a provider server (RPC transport, bulk engine, metrics)
//   - kv: byte level operations (set, get, size, exists, timestamp, evict),
//     proxy creation and resolution, and a perf benchmark
//   - util: shared flag and configuration handling (internal use)
//
// Flags can also be set through RKV_<FLAG> environment variables or a .env file.
// See rkv --help for a list of all commands.
package cmd
