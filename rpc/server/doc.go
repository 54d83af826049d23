// Package server implements the provider side of rKV. A server hosts one or
// more providers, each identified by a numeric id and owning its own store map
// (a maple db.KVDB).
//
// Requests arrive through any transport.IRPCServerTransport. The frame shard id
// selects the provider, the serialized common.Message names the operation and
// carries the envelope (key, size, buffer descriptor). Payloads never travel in
// the message: the provider registers a local buffer with its bulk engine and
// pulls (set) or pushes (get, get_size, exists) the bytes directly from or into
// the caller's registered region.
//
// Response status:
//
//   - StatusOk: the operation completed
//   - StatusKeyNotFound: get or get_size on an absent key (get_size still pushes 0)
//   - StatusTransferFailed: the bulk step failed, Err carries the reason
//   - StatusMalformedEnvelope: the envelope or the descriptor could not be decoded
//   - StatusError: unknown provider or operation
//
// The store map is never locked across a transfer. set writes the map only after
// the pull completed, reads take a copy of the value before pushing it.
//
// Usage Example:
//
//	config := common.DefaultServerConfig()
//	config.Endpoint = "tcp://0.0.0.0:9000"
//	config.BulkEndpoint = "0.0.0.0:9001"
//	config.MetricsEndpoint = "0.0.0.0:9100"
//
//	s := server.NewRPCServer(config, tcp.NewTCPServerTransport(), serializer.NewBinarySerializer(), nil)
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// With MetricsEndpoint set, request counters and latency histograms per
// operation are served in the prometheus format at /metrics.
package server
