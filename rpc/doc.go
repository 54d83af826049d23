// Package rpc contains the network side of rKV: the envelope protocol
// between clients and providers, the transports carrying it, the bulk
// engine moving values, and the provider server and rdma client built on
// top of them.
//
// The package is organized into several subpackages:
//
//   - common: Message and Envelope types, status codes, addresses, server and
//     client configuration and the zap backed logger factory.
//
//   - serializer: encodes Messages for the wire (binary, json, gob, msgpack, cbor).
//
//   - transport: request/response transports keyed by provider id, with tcp,
//     unix, http and jsonrpc implementations sharing one framing layer (base).
//
//   - bulk: registration of memory regions and one-sided push/pull between
//     a local region and a remote descriptor (tcp and in-process engines).
//
//   - server: the provider. Owns one key-value map per provider id and serves
//     set, get, get_size and exists by transferring values through the bulk engine.
//
//   - client: the rdma store kind, a store.IStore talking to a provider.
package rpc
