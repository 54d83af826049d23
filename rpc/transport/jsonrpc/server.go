package jsonrpc

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/gorilla/rpc/v2"
	"github.com/gorilla/rpc/v2/json2"
	"github.com/lni/dragonboat/v4/logger"
	"net"
	"net/http"
	"sync"
	"time"
)

var Logger = logger.GetLogger("transport/rpc")

const (
	// serviceName is the name the provider service is registered under
	serviceName = "Provider"
	// callMethod is the json-rpc method carrying a framed request
	callMethod = serviceName + ".Call"
	// path is the http path the json-rpc endpoint is served on
	path = "/rpc"
)

// CallArgs are the params of a Provider.Call request
type CallArgs struct {
	ShardID uint64 `json:"shard_id"`
	Payload []byte `json:"payload"`
}

// CallReply is the result of a Provider.Call request
type CallReply struct {
	Payload []byte `json:"payload"`
}

// service is the receiver registered at the gorilla rpc server
type service struct {
	handler transport.ServerHandleFunc
}

// Call hands the payload to the registered handler
func (s *service) Call(r *http.Request, args *CallArgs, reply *CallReply) error {
	if s.handler == nil {
		return fmt.Errorf("no handler registered")
	}
	reply.Payload = s.handler(r.Context(), args.ShardID, args.Payload)
	return nil
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

type jsonRPCServerTransport struct {
	svc      *service
	listener net.Listener

	mu     sync.Mutex
	server *http.Server
	closed bool
}

// NewJSONRPCServerTransport creates a server transport speaking JSON-RPC 2.0 over http
func NewJSONRPCServerTransport() transport.IRPCServerTransport {
	return &jsonRPCServerTransport{svc: &service{}}
}

// NewJSONRPCServerTransportFromListener creates a JSON-RPC server transport serving on an open listener
func NewJSONRPCServerTransportFromListener(listener net.Listener) transport.IRPCServerTransport {
	return &jsonRPCServerTransport{svc: &service{}, listener: listener}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *jsonRPCServerTransport) RegisterHandler(handler transport.ServerHandleFunc) {
	t.svc.handler = handler
}

func (t *jsonRPCServerTransport) Listen(config common.ServerConfig) error {
	if t.svc.handler == nil {
		return fmt.Errorf("no handler registered")
	}

	rpcServer := rpc.NewServer()
	rpcServer.RegisterCodec(json2.NewCodec(), "application/json")
	if err := rpcServer.RegisterService(t.svc, serviceName); err != nil {
		return fmt.Errorf("failed to register json-rpc service: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle(path, rpcServer)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	listener := t.listener
	if listener == nil {
		var err error
		if listener, err = net.Listen("tcp", config.ListenEndpoint()); err != nil {
			t.mu.Unlock()
			return fmt.Errorf("failed to create listener: %v", err)
		}
	}
	t.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	server := t.server
	t.mu.Unlock()

	Logger.Infof("Starting JSON-RPC server on %s%s", listener.Addr(), path)

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (t *jsonRPCServerTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	if t.server == nil {
		if t.listener != nil {
			return t.listener.Close()
		}
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return t.server.Shutdown(ctx)
}
