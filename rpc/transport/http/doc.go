// Package http carries RPC frames as HTTP requests: the payload is the POST
// body and the provider id is the path ("POST /{providerId}"). The response
// body is the serialized response Message.
//
// The client spreads requests round robin over its endpoints and retries
// failed requests. The request context is passed to net/http, so a caller
// deadline aborts the request and surfaces as transport.ErrTimeout.
//
// The server is a plain net/http server. Close shuts it down gracefully.
package http
