// Package client implements the client side of rKV: RPCStore, the store.IStore
// of a remote provider, registered as store kind "rdma".
//
// Every operation registers a fresh buffer with the client's bulk engine, sends
// an envelope (key, size, descriptor token) through the RPC transport and lets
// the provider push into or pull from that buffer. Buffers are never shared
// between in-flight calls.
//
//   - SetBytes writes the timestamp entry (key + "_timestamp") and then the value.
//     Values larger than max_transfer fail with store.ErrTransferTooLarge before
//     any network activity.
//   - GetBytes asks for the size (get_size) and then fetches the value into a
//     buffer of exactly that size (get). An absent key is reported as not loaded.
//   - Exists and GetSize push a flag or an 8 byte length into the caller buffer.
//   - Evict only affects the client, the provider keeps the value.
//
// Provider status codes and transport failures are returned as store errors
// (ErrKeyNotFound, ErrTransferFailed, ErrMalformedEnvelope, ErrTimeout).
//
// Usage Example:
//
//	s, err := store.Open("shared", client.Kind, store.Params{
//	  client.ParamAddr:         "tcp://10.0.0.1:9000",
//	  client.ParamBulkEndpoint: "0.0.0.0:0",
//	  store.ParamCacheSize:     "64",
//	})
//	if err != nil {
//	  log.Fatal(err)
//	}
//	key, err := store.Set(ctx, s, "", []byte("hello world!"), false)
package client
