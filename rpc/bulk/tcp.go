package bulk

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/ValentinKolb/rKV/rpc/transport"
	"github.com/ValentinKolb/rKV/rpc/transport/tcp"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// frame shard ids of the bulk wire protocol
const (
	opWrite uint64 = 1
	opRead  uint64 = 2
)

const (
	headerLen = 24 // region(8) offset(8) size(8)

	respOk     byte = 0
	respFailed byte = 1
)

// TCPEngine serves one-sided reads and writes of its regions to peers over
// the framed tcp transport, and issues them against other TCP engines.
type TCPEngine struct {
	table  *regionTable
	server transport.IRPCServerTransport
	peers  *xsync.MapOf[string, transport.IRPCClientTransport]
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once

	clientConfig common.ClientConfig
}

// NewTCPEngine starts an engine listening on endpoint ("host:port", port 0 picks a free port).
// advertise is the address handed to peers, if empty it is derived from the listener.
func NewTCPEngine(endpoint, advertise string) (*TCPEngine, error) {
	_, hostPort, err := common.ParseAddress(endpoint)
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for bulk transfers on %s: %w", hostPort, err)
	}

	if advertise == "" {
		advertise = advertiseAddr(listener.Addr().(*net.TCPAddr))
	}
	if !strings.Contains(advertise, "://") {
		advertise = common.ProtocolTCP + "://" + advertise
	}

	e := &TCPEngine{
		table:        newRegionTable(advertise),
		server:       tcp.NewTCPServerTransportFromListener(listener),
		peers:        xsync.NewMapOf[string, transport.IRPCClientTransport](),
		done:         make(chan struct{}),
		clientConfig: common.DefaultClientConfig(),
	}
	e.server.RegisterHandler(e.handle)

	cfg := common.DefaultServerConfig()
	cfg.TimeoutSecond = 0
	go func() {
		defer close(e.done)
		if err := e.server.Listen(cfg); err != nil {
			Logger.Errorf("bulk engine %s stopped: %v", advertise, err)
		}
	}()

	Logger.Infof("Bulk engine listening on %s (advertised as %s)", listener.Addr(), advertise)
	return e, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IEngine)
// --------------------------------------------------------------------------

func (e *TCPEngine) Register(buf []byte, mode AccessMode) (*Region, error) {
	if e.closed.Load() {
		return nil, transferFailed("engine %s is closed", e.Addr())
	}
	return e.table.register(buf, mode)
}

func (e *TCPEngine) Deregister(r *Region) {
	e.table.deregister(r)
}

func (e *TCPEngine) Transfer(ctx context.Context, op Op, remote Descriptor, remoteOffset uint64, local *Region, localOffset uint64, size uint64) error {
	if ctx.Err() != nil {
		return ctxErr(ctx)
	}
	data, err := checkTransfer(op, remote, remoteOffset, local, localOffset, size)
	if err != nil {
		return err
	}

	// loopback
	if remote.Addr == e.Addr() {
		return copyRegion(e.table, op, remote.Region, remoteOffset, data)
	}

	peer, err := e.peer(remote.Addr)
	if err != nil {
		return err
	}

	req := make([]byte, headerLen, headerLen+len(data))
	binary.BigEndian.PutUint64(req[0:8], remote.Region)
	binary.BigEndian.PutUint64(req[8:16], remoteOffset)
	binary.BigEndian.PutUint64(req[16:24], size)

	wireOp := opRead
	if op == Push {
		wireOp = opWrite
		req = append(req, data...)
	}

	resp, err := peer.Send(ctx, wireOp, req)
	if err != nil {
		if errors.Is(err, transport.ErrTimeout) || ctx.Err() == context.DeadlineExceeded {
			return timeout("%s to %s timed out", op, remote)
		}
		return transferFailed("%s to %s failed: %v", op, remote, err)
	}
	if len(resp) == 0 {
		return transferFailed("%s to %s: empty response", op, remote)
	}
	if resp[0] != respOk {
		return transferFailed("%s to %s: %s", op, remote, resp[1:])
	}

	if op == Pull {
		if uint64(len(resp)-1) != size {
			return transferFailed("%s from %s returned %d bytes, expected %d", op, remote, len(resp)-1, size)
		}
		copy(data, resp[1:])
	}
	return nil
}

func (e *TCPEngine) Addr() string {
	return e.table.addr
}

func (e *TCPEngine) Close() error {
	var err error
	e.once.Do(func() {
		e.closed.Store(true)
		err = e.server.Close()
		<-e.done
		e.peers.Range(func(addr string, c transport.IRPCClientTransport) bool {
			_ = c.Close()
			return true
		})
		e.peers.Clear()
		e.table.clear()
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handle serves a read or write of a peer against the local region table
func (e *TCPEngine) handle(_ context.Context, shardId uint64, req []byte) []byte {
	if len(req) < headerLen {
		return failure("short bulk request")
	}
	id := binary.BigEndian.Uint64(req[0:8])
	off := binary.BigEndian.Uint64(req[8:16])
	size := binary.BigEndian.Uint64(req[16:24])
	payload := req[headerLen:]

	switch shardId {
	case opWrite:
		if uint64(len(payload)) != size {
			return failure(fmt.Sprintf("payload of %d bytes does not match size %d", len(payload), size))
		}
		if err := e.table.writeFrom(id, off, payload); err != nil {
			return failure(err.Error())
		}
		return []byte{respOk}
	case opRead:
		resp := make([]byte, 1+size)
		if err := e.table.readInto(id, off, resp[1:]); err != nil {
			return failure(err.Error())
		}
		resp[0] = respOk
		return resp
	default:
		return failure(fmt.Sprintf("unknown bulk op %d", shardId))
	}
}

// peer returns a connected client for addr, connecting on first use
func (e *TCPEngine) peer(addr string) (transport.IRPCClientTransport, error) {
	if c, ok := e.peers.Load(addr); ok {
		return c, nil
	}
	if e.closed.Load() {
		return nil, transferFailed("engine %s is closed", e.Addr())
	}

	protocol, endpoint, err := common.ParseAddress(addr)
	if err != nil || protocol != common.ProtocolTCP {
		return nil, transferFailed("unsupported peer address %s", addr)
	}

	var connectErr error
	c, _ := e.peers.Compute(addr, func(old transport.IRPCClientTransport, loaded bool) (transport.IRPCClientTransport, bool) {
		if loaded {
			return old, false
		}
		cfg := e.clientConfig
		cfg.Endpoints = []string{endpoint}
		c := tcp.NewTCPClientTransport()
		if connectErr = c.Connect(cfg); connectErr != nil {
			return nil, true
		}
		return c, false
	})
	if connectErr != nil {
		return nil, transferFailed("peer %s unreachable: %v", addr, connectErr)
	}
	return c, nil
}

func failure(msg string) []byte {
	return append([]byte{respFailed}, msg...)
}

// advertiseAddr returns host:port for a listener, replacing a wildcard host with the hostname
func advertiseAddr(addr *net.TCPAddr) string {
	host := addr.IP.String()
	if addr.IP.IsUnspecified() {
		if h, err := os.Hostname(); err == nil {
			host = h
		} else {
			host = "127.0.0.1"
		}
	}
	return net.JoinHostPort(host, fmt.Sprint(addr.Port))
}
