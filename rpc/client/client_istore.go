package client

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/rpc/bulk"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/serializer"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"strconv"
)

// Kind is the kind tag of the remote store
const Kind = "rdma"

// Parameters of the rdma store kind
const (
	ParamAddr         = "addr"          // provider address <protocol>://<host>:<port>
	ParamProvider     = "provider"      // provider id
	ParamMaxTransfer  = "max_transfer"  // largest value in bytes
	ParamTimeout      = "timeout"       // request timeout in seconds
	ParamBulkEndpoint = "bulk_endpoint" // listen address of the client bulk engine ("local" = in-process)
	ParamSerializer   = "serializer"    // rpc serializer (binary, json, gob, msgpack, cbor)
	ParamRetries      = "retries"       // attempts per request
	ParamConnections  = "connections"   // connections opened to the provider

	DefaultMaxTransfer  = (514 * 1024 * 1024) / 4
	DefaultBulkEndpoint = "0.0.0.0:0"
	LocalBulkEndpoint   = "local"
)

// attempts of a get whose value grew between get_size and get
const maxGetAttempts = 3

func init() {
	store.RegisterKind(Kind, func(params store.Params) (store.IStore, error) {
		return NewRPCStoreFromParams(params)
	})
}

// RPCStore is the store.IStore of a remote provider. Only envelopes travel
// through the RPC transport, values are moved by the bulk engine between a
// buffer registered per call and the provider's memory.
type RPCStore struct {
	rpcClientAdapter
	engine      bulk.IEngine
	ownsEngine  bool
	maxTransfer uint64
	params      store.Params
}

// NewRPCStoreFromParams creates a remote store from its construction parameters.
// The transport is derived from the scheme of the addr parameter.
func NewRPCStoreFromParams(params store.Params) (*RPCStore, error) {
	addr := params.String(ParamAddr, "")
	if addr == "" {
		return nil, store.Errorf(store.RetCInvalidOperation, "parameter %q is required", ParamAddr)
	}
	protocol, _, err := common.ParseAddress(addr)
	if err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, err.Error())
	}
	t, err := NewClientTransport(protocol)
	if err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, err.Error())
	}
	s, err := serializer.New(params.String(ParamSerializer, serializer.NameBinary))
	if err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, err.Error())
	}

	var engine bulk.IEngine
	switch endpoint := params.String(ParamBulkEndpoint, DefaultBulkEndpoint); endpoint {
	case LocalBulkEndpoint:
		engine = bulk.NewLocalEngine()
	default:
		if engine, err = bulk.NewTCPEngine(endpoint, ""); err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
	}

	rs, err := NewRPCStore(params, t, s, engine)
	if err != nil {
		_ = engine.Close()
		return nil, err
	}
	rs.ownsEngine = true
	return rs, nil
}

// NewRPCStore creates a remote store using the given transport, serializer and engine.
// params must contain the provider address, the engine is not closed by Close.
//
// Usage:
//
//	s, err := client.NewRPCStore(
//		store.Params{client.ParamAddr: "tcp://10.0.0.1:9000"},
//		tcp.NewTCPClientTransport(),
//		serializer.NewBinarySerializer(),
//		engine,
//	)
func NewRPCStore(
	params store.Params,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
	engine bulk.IEngine,
) (*RPCStore, error) {
	addr := params.String(ParamAddr, "")
	_, endpoint, err := common.ParseAddress(addr)
	if err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, err.Error())
	}

	providerId, err := params.Int(ParamProvider, int64(common.DefaultProviderID))
	if err != nil || providerId < 0 {
		return nil, store.Errorf(store.RetCInvalidOperation, "invalid provider id %q", params[ParamProvider])
	}
	maxTransfer, err := params.Int(ParamMaxTransfer, DefaultMaxTransfer)
	if err != nil || maxTransfer <= 0 {
		return nil, store.Errorf(store.RetCInvalidOperation, "invalid max transfer %q", params[ParamMaxTransfer])
	}

	config := common.DefaultClientConfig(endpoint)
	timeout, err := params.Int(ParamTimeout, int64(config.TimeoutSecond))
	if err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, err.Error())
	}
	config.TimeoutSecond = int(timeout)
	retries, err := params.Int(ParamRetries, int64(config.RetryCount))
	if err != nil || retries < 1 {
		return nil, store.Errorf(store.RetCInvalidOperation, "invalid retries %q", params[ParamRetries])
	}
	config.RetryCount = int(retries)
	conns, err := params.Int(ParamConnections, int64(config.ConnectionsPerEndpoint))
	if err != nil || conns < 1 {
		return nil, store.Errorf(store.RetCInvalidOperation, "invalid connections %q", params[ParamConnections])
	}
	config.ConnectionsPerEndpoint = int(conns)

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, store.Errorf(store.RetCInternalError, "failed to connect to %s: %v", addr, err)
	}

	Logger.Infof("Connected rdma store to provider %d at %s (bulk engine %s)", providerId, addr, engine.Addr())

	return &RPCStore{
		rpcClientAdapter: rpcClientAdapter{
			providerId: uint64(providerId),
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
		engine:      engine,
		maxTransfer: uint64(maxTransfer),
		params: params.Merge(store.Params{
			ParamProvider:    strconv.FormatInt(providerId, 10),
			ParamMaxTransfer: strconv.FormatInt(maxTransfer, 10),
		}),
	}, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *RPCStore) SetBytes(ctx context.Context, key string, data []byte) error {
	if store.IsReservedKey(key) {
		return store.Errorf(store.RetCReservedKey, "key %q uses the reserved suffix %q", key, store.TimestampSuffix)
	}
	if uint64(len(data)) > s.maxTransfer {
		return store.Errorf(store.RetCTransferTooLarge, "value of %d bytes exceeds the maximum transfer size of %d bytes", len(data), s.maxTransfer)
	}

	// timestamp first, a reader never sees a value without one
	if err := s.set(ctx, store.TimestampKey(key), store.FormatTimestamp(store.NewTimestamp())); err != nil {
		return err
	}
	return s.set(ctx, key, data)
}

func (s *RPCStore) GetBytes(ctx context.Context, key string) ([]byte, bool, error) {
	size, ok, err := s.GetSize(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	for attempt := 1; ; attempt++ {
		if size > s.maxTransfer {
			return nil, false, store.Errorf(store.RetCTransferTooLarge, "value of %d bytes exceeds the maximum transfer size of %d bytes", size, s.maxTransfer)
		}

		buf := make([]byte, size)
		resp, err := s.call(ctx, common.MsgTGet, key, buf, bulk.WriteOnly)
		switch {
		case err == nil && resp.Size > size:
			return nil, false, store.Errorf(store.RetCTransferFailed, "provider reported %d bytes for a buffer of %d bytes", resp.Size, size)
		case err == nil:
			return buf[:resp.Size], true, nil
		case errors.Is(err, store.ErrKeyNotFound):
			// evicted between get_size and get
			return nil, false, nil
		case errors.Is(err, store.ErrTransferFailed) && resp != nil && resp.Size > size && attempt < maxGetAttempts:
			// overwritten with a larger value between get_size and get
			Logger.Debugf("value of key %q grew from %d to %d bytes, retrying", key, size, resp.Size)
			size = resp.Size
		default:
			return nil, false, err
		}
	}
}

func (s *RPCStore) Exists(ctx context.Context, key string) (bool, error) {
	buf := make([]byte, common.ExistsFieldLen)
	if _, err := s.call(ctx, common.MsgTExists, key, buf, bulk.WriteOnly); err != nil {
		return false, err
	}
	return buf[0] == 1, nil
}

func (s *RPCStore) GetTimestamp(ctx context.Context, key string) (float64, error) {
	raw, ok, err := s.GetBytes(ctx, store.TimestampKey(key))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, store.Errorf(store.RetCKeyNotFound, "key %q does not exist on the remote server", key)
	}
	return store.ParseTimestamp(raw)
}

// Evict is client side only: the provider has no delete operation, the value
// stays in remote memory. The local cache is dropped by store.Store.Evict.
func (s *RPCStore) Evict(_ context.Context, key string) error {
	Logger.Debugf("EVICT key='%s' FROM rdma store (provider %d) is client side only", key, s.providerId)
	return nil
}

func (s *RPCStore) Kind() string { return Kind }

func (s *RPCStore) Params() store.Params { return s.params.Clone() }

func (s *RPCStore) Close() error {
	err := s.transport.Close()
	if s.ownsEngine {
		err = errors.Join(err, s.engine.Close())
	}
	return err
}

// --------------------------------------------------------------------------
// Additional Methods
// --------------------------------------------------------------------------

// GetSize returns the size in bytes of the value of key. The boolean indicates whether the key was found.
func (s *RPCStore) GetSize(ctx context.Context, key string) (uint64, bool, error) {
	buf := make([]byte, common.SizeFieldLen)
	_, err := s.call(ctx, common.MsgTGetSize, key, buf, bulk.WriteOnly)
	if errors.Is(err, store.ErrKeyNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return binary.BigEndian.Uint64(buf), true, nil
}

// MaxTransfer returns the largest value in bytes this store transfers
func (s *RPCStore) MaxTransfer() uint64 { return s.maxTransfer }

func (s *RPCStore) String() string {
	return fmt.Sprintf("rdma(addr=%s, provider=%d)", s.params[ParamAddr], s.providerId)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCStore) set(ctx context.Context, key string, data []byte) error {
	_, err := s.call(ctx, common.MsgTSet, key, data, bulk.ReadOnly)
	return err
}

// call registers buf for the duration of one request of type t on key
func (s *RPCStore) call(ctx context.Context, t common.MessageType, key string, buf []byte, mode bulk.AccessMode) (*common.Message, error) {
	region, err := s.engine.Register(buf, mode)
	if err != nil {
		return nil, err
	}
	defer s.engine.Deregister(region)

	req := common.NewRequest(t, common.Envelope{
		Key:    key,
		Size:   uint64(len(buf)),
		Buffer: region.Descriptor().Token(),
	})
	return s.invokeRPCRequest(ctx, req)
}
