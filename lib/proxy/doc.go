// Package proxy implements lazily resolving handles to values held in a store.
//
// A Proxy wraps exactly one Factory. The Factory is a plain record naming the
// key, the store (name, kind and reconnect parameters) and the flags that
// control resolution. Until the first call to Value the proxy holds nothing
// but the factory. Value opens (or reconstructs) the store through
// store.Open, reads the object through the store's local cache and keeps the
// result for the lifetime of the proxy.
//
// Proxies serialize as their Factory (JSON and msgpack), never as the
// resolved value. Shipping a proxy to another process therefore ships only
// the recipe; the receiving process resolves it on first access. The
// receiving process must import the package registering the store kind
// (e.g. rpc/client for "rdma").
//
// Usage Example:
//
//	s, _ := store.Open("results", "rdma", store.Params{"addr": "tcp://10.0.0.5:9000"})
//	p, _ := proxy.New(ctx, s, result, proxy.WithEvict())
//	data, _ := json.Marshal(p)
//
//	// somewhere else
//	var q proxy.Proxy[Result]
//	_ = json.Unmarshal(data, &q)
//	r, err := q.Value(ctx)
package proxy
