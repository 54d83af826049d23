// Package codec turns values into the byte payloads stored by the store
// backends and back.
//
// A Codec[V] is obtained by name with New[V]. Available codecs:
//
//   - "msgpack" (default): vmihailenco/msgpack/v5, compact and fast.
//   - "cbor": fxamacker/cbor/v2 with preferred (unsorted) encoding.
//   - "json": encoding/json, human readable.
//   - "protobuf": google.golang.org/protobuf, V must be a pointer to a generated message.
//   - "raw": identity codec, V must be []byte.
//
// Codecs are stateless and safe for concurrent use.
package codec
