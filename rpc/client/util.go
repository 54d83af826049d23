package client

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/serializer"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/http"
	"github.com/ValentinKolb/rKV/rpc/transport/jsonrpc"
	"github.com/ValentinKolb/rKV/rpc/transport/tcp"
	"github.com/ValentinKolb/rKV/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the RPCStore with composition pattern
type rpcClientAdapter struct {
	providerId uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// NewClientTransport returns the client transport for a protocol (see common.ParseAddress)
func NewClientTransport(protocol string) (transport.IRPCClientTransport, error) {
	switch protocol {
	case common.ProtocolTCP:
		return tcp.NewTCPClientTransport(), nil
	case common.ProtocolUnix:
		return unix.NewUnixClientTransport(), nil
	case common.ProtocolHTTP:
		return http.NewHttpClientTransport(), nil
	case common.ProtocolJSONRPC:
		return jsonrpc.NewJSONRPCClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", protocol)
	}
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a request message, sends it to the provider and returns the response.
// Transport failures are returned as store errors (ErrTimeout for timeouts), a
// response with a status other than Ok is returned together with the matching store error.
func (a *rpcClientAdapter) invokeRPCRequest(ctx context.Context, req *common.Message) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, store.Errorf(store.RetCInternalError, "failed to serialize request: %v", err)
	}

	// Send the request
	respBytes, err := a.transport.Send(ctx, a.providerId, reqBytes)
	if err != nil {
		if errors.Is(err, transport.ErrTimeout) {
			return nil, store.Errorf(store.RetCTimeout, "%s: %v", req.MsgType, err)
		}
		return nil, store.Errorf(store.RetCInternalError, "%s: %v", req.MsgType, err)
	}

	// Deserialize the response
	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.Errorf(store.RetCInternalError, "failed to deserialize response: %v", err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError {
		if resp.Status == common.StatusOk {
			resp.Status = common.StatusError
		}
		return resp, statusError(resp)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, store.Errorf(store.RetCInternalError, "unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	return resp, statusError(resp)
}

// statusError maps the status of a response to a store error (nil for StatusOk)
func statusError(resp *common.Message) error {
	var code store.RetCode
	switch resp.Status {
	case common.StatusOk:
		return nil
	case common.StatusKeyNotFound:
		code = store.RetCKeyNotFound
	case common.StatusTransferFailed:
		code = store.RetCTransferFailed
	case common.StatusMalformedEnvelope:
		code = store.RetCMalformedEnvelope
	default:
		code = store.RetCInternalError
	}
	return store.NewError(code, resp.Err)
}
