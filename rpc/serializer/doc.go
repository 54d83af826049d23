// Package serializer encodes and decodes the Messages exchanged between rdma
// clients and providers. Client and provider must use the same serializer.
//
// Implementations:
//
//   - binary: hand written layout with a presence flag per field. Smallest and
//     fastest, the default.
//   - json: readable on the wire, useful when debugging with curl against the
//     http transport. Types and statuses are encoded as their names.
//   - gob: encoding/gob, kept for parity with Go only deployments.
//   - msgpack / cbor: self describing binary formats (vmihailenco/msgpack,
//     fxamacker/cbor) for peers that are not written in Go.
//
// New looks a serializer up by name; this is how the CLI and the "serializer"
// parameter of the rdma store select one.
//
// All implementations are stateless and safe for concurrent use.
//
//	s, _ := serializer.New("binary")
//	data, err := s.Serialize(msg)
//	var received common.Message
//	err = s.Deserialize(data, &received)
package serializer
