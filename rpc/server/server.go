package server

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/db/engines/maple"
	"github.com/ValentinKolb/rKV/rpc/bulk"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/serializer"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/http"
	"github.com/ValentinKolb/rKV/rpc/transport/jsonrpc"
	"github.com/ValentinKolb/rKV/rpc/transport/tcp"
	"github.com/ValentinKolb/rKV/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	nethttp "net/http"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"
)

var Logger = logger.GetLogger("provider")

// serverProvider is a provider hosted by the RPC server.
// It contains the store map it encapsulates and the adapter that handles requests for it
type serverProvider struct {
	DB      db.KVDB
	Adapter IRPCServerAdapter
}

// RPCServer routes the requests of a transport to the providers it hosts
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	engine     bulk.IEngine
	ownsEngine bool
	providers  *xsync.MapOf[uint64, serverProvider]
	metrics    *providerMetrics

	mu            sync.Mutex // guards engine and metricsServer between Serve and Close
	metricsServer *nethttp.Server
	closeOnce     sync.Once
}

// NewRPCServer creates a new RPC server
// It takes a config, transport, serializer and bulk engine as parameters.
// If engine is nil, a TCP engine is started on config.BulkEndpoint by Serve.
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPServerTransport(),
//		serializer.NewBinarySerializer(),
//		nil,
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
	engine bulk.IEngine,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created RPC Server")
	Logger.Debugf(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		engine:     engine,
		providers:  xsync.NewMapOf[uint64, serverProvider](),
		metrics:    newProviderMetrics(),
	}
}

// NewServerTransport returns the server transport for a protocol (see common.ParseAddress)
func NewServerTransport(protocol string) (transport.IRPCServerTransport, error) {
	switch protocol {
	case common.ProtocolTCP:
		return tcp.NewTCPServerTransport(), nil
	case common.ProtocolUnix:
		return unix.NewUnixServerTransport(), nil
	case common.ProtocolHTTP:
		return http.NewHttpServerTransport(), nil
	case common.ProtocolJSONRPC:
		return jsonrpc.NewJSONRPCServerTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", protocol)
	}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// Serve initializes the providers and the bulk engine and serves requests until Close is called
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}
	return s.transport.Listen(s.config)
}

// Close stops the transport, the metrics endpoint and an engine created by Serve
func (s *RPCServer) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		errs = append(errs, s.transport.Close())

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			errs = append(errs, s.metricsServer.Shutdown(ctx))
			cancel()
		}
		if s.ownsEngine && s.engine != nil {
			errs = append(errs, s.engine.Close())
		}
		s.providers.Range(func(id uint64, p serverProvider) bool {
			errs = append(errs, p.DB.Close())
			return true
		})
	})
	return errors.Join(errs...)
}

// BulkAddr returns the address of the bulk engine (empty before Serve if no engine was given)
func (s *RPCServer) BulkAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine == nil {
		return ""
	}
	return s.engine.Addr()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.config.ProviderIDs) == 0 {
		return fmt.Errorf("no provider ids configured")
	}

	// Create the bulk engine
	if s.engine == nil {
		engine, err := bulk.NewTCPEngine(s.config.BulkEndpoint, "")
		if err != nil {
			return fmt.Errorf("failed to start bulk engine: %w", err)
		}
		s.engine = engine
		s.ownsEngine = true
	}

	// Create one store map per provider
	for _, id := range s.config.ProviderIDs {
		opts := maple.DefaultOptions()
		if s.config.DBShards > 0 {
			opts.NumShards = s.config.DBShards
		}
		kv := maple.NewMapleDB(opts)
		s.providers.Store(id, serverProvider{
			DB:      kv,
			Adapter: NewProviderAdapter(id, kv, s.engine, s.metrics),
		})
		Logger.Infof("created provider %d", id)
	}

	if s.config.MetricsEndpoint != "" {
		if err := s.serveMetrics(); err != nil {
			return err
		}
	}

	Logger.Infof("rKV setup completed successfully, bulk engine on %s", s.engine.Addr())

	// Configure the transport layer
	s.registerTransportHandler()
	return nil
}

func (s *RPCServer) registerTransportHandler() {
	s.transport.RegisterHandler(func(ctx context.Context, providerId uint64, req []byte) []byte {
		var msg common.Message
		var respMsg *common.Message

		// Get appropriate provider
		provider, ok := s.providers.Load(providerId)

		// Case provider does not exist -> error
		if !ok {
			respMsg = common.NewErrorResponse(common.StatusError, fmt.Sprintf("provider %d not found", providerId))
		} else if err := s.serializer.Deserialize(req, &msg); err != nil {
			respMsg = common.NewErrorResponse(common.StatusMalformedEnvelope, fmt.Sprintf("failed to deserialize request: %s", err))
		} else {
			// Let the adapter handle the request
			respMsg = handleSafe(ctx, provider.Adapter, &msg)
		}

		// Return result
		val, err := s.serializer.Serialize(*respMsg)
		if err != nil {
			Logger.Errorf("failed to serialize response: %v", err)
			val, _ = s.serializer.Serialize(*common.NewErrorResponse(common.StatusError, fmt.Sprintf("failed to serialize response: %s", err)))
		}
		return val
	})
}

// serveMetrics exposes the provider metrics at /metrics
func (s *RPCServer) serveMetrics() error {
	listener, err := net.Listen("tcp", s.config.MetricsEndpoint)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", s.config.MetricsEndpoint, err)
	}
	mux := nethttp.NewServeMux()
	mux.Handle("/metrics", s.metrics.handler())
	s.metricsServer = &nethttp.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.metricsServer.Serve(listener); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			Logger.Errorf("metrics endpoint stopped: %v", err)
		}
	}()
	Logger.Infof("Serving metrics on http://%s/metrics", listener.Addr())
	return nil
}

// handleSafe runs the adapter and turns a panic into an error response.
// The store map is only written after a completed transfer, so it stays consistent.
func handleSafe(ctx context.Context, adapter IRPCServerAdapter, msg *common.Message) (resp *common.Message) {
	defer func() {
		if r := recover(); r != nil {
			Logger.Errorf("panic while handling %s: %v", msg.MsgType, r)
			resp = common.NewErrorResponse(common.StatusError, fmt.Sprintf("internal error: %v", r))
		}
	}()
	return adapter.Handle(ctx, msg)
}
