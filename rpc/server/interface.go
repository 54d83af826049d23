package server

import (
	"context"
	"github.com/ValentinKolb/rKV/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response.
	// Failures are reported in the Status and Err fields of the response, never by panicking.
	Handle(ctx context.Context, req *common.Message) (resp *common.Message)
}
