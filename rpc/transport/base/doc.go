// Package base implements the framed request/response transport shared by the
// tcp and unix transports (and by the tcp bulk engine). Protocol specific
// parts (listening, dialing, socket tuning) are plugged in through the
// IServerConnector and IClientConnector interfaces.
//
// Every message is a frame of a 20 byte header (shard id, request id,
// payload length, big endian) followed by the payload. The request id is
// echoed in the response, so a client can have many requests in flight on
// one connection and match responses as they arrive.
//
// Client:
//
//   - ConnectionsPerEndpoint connections per endpoint, picked round robin.
//   - A reader goroutine per connection delivers responses to the waiting
//     Send by request id. If the stream breaks, all pending requests fail and
//     the connection is redialed with backoff.
//   - Send waits until the response arrives or the context is done, and
//     retries failed attempts up to RetryCount times.
//
// Server:
//
//   - One goroutine per connection reads frames; up to WorkersPerConn
//     requests per connection are handled concurrently. Responses are written
//     under a per connection lock.
//   - Read buffers of BufferSize bytes come from a sync.Pool. Larger
//     payloads get their own allocation.
//   - Idle connections have no read deadline. Close stops the listener,
//     closes all connections and waits for running handlers.
package base
