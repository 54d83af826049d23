package transport

import (
	"context"
	"errors"
	"github.com/ValentinKolb/rKV/rpc/common"
)

var (
	// ErrTimeout is returned by Send if no response arrived in time
	ErrTimeout = errors.New("transport: request timed out")
	// ErrClosed is returned by Send after Close
	ErrClosed = errors.New("transport: closed")
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is a function type that handles incoming requests
// This function is called by a server transport layer when a request is received
// It takes a shardId and a request as parameters and returns a response.
// ctx is cancelled when the transport is closed.
type ServerHandleFunc func(ctx context.Context, shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers a handler for the transport layer
	// This handler should be called when a request is received
	// The transport layer is responsible for routing the request to the appropriate shard
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport layer and serves requests until Close is called.
	// It returns nil after Close.
	Listen(config common.ServerConfig) error
	// Close stops listening, closes all connections and waits for running handlers
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response.
	// It fails with ErrTimeout if ctx expires (or the configured timeout
	// elapses when ctx has no deadline) before the response arrives.
	Send(ctx context.Context, shardId uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}

// SendContext derives the context a Send call waits on. If ctx has no deadline
// the configured timeout (if any) is applied.
func SendContext(ctx context.Context, timeoutSecond int) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || timeoutSecond <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, secondsToDuration(timeoutSecond))
}

// CtxErr maps the error of a finished context to the transport errors
func CtxErr(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ErrTimeout
	}
	return ctx.Err()
}
