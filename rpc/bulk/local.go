package bulk

import (
	"context"
	"fmt"
	"github.com/puzpuzpuz/xsync/v3"
	"strings"
	"sync/atomic"
)

// LocalScheme prefixes the address of in-process engines
const LocalScheme = "local://"

var (
	localEngines = xsync.NewMapOf[string, *LocalEngine]()
	localCounter atomic.Uint64
)

// LocalEngine is an engine whose peers live in the same process.
// Transfers between local engines are plain memory copies.
type LocalEngine struct {
	table  *regionTable
	closed atomic.Bool
}

// NewLocalEngine creates an in-process engine reachable as local://<n>
func NewLocalEngine() *LocalEngine {
	addr := fmt.Sprintf("%s%d", LocalScheme, localCounter.Add(1))
	e := &LocalEngine{table: newRegionTable(addr)}
	localEngines.Store(addr, e)
	return e
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IEngine)
// --------------------------------------------------------------------------

func (e *LocalEngine) Register(buf []byte, mode AccessMode) (*Region, error) {
	if e.closed.Load() {
		return nil, transferFailed("engine %s is closed", e.Addr())
	}
	return e.table.register(buf, mode)
}

func (e *LocalEngine) Deregister(r *Region) {
	e.table.deregister(r)
}

func (e *LocalEngine) Transfer(ctx context.Context, op Op, remote Descriptor, remoteOffset uint64, local *Region, localOffset uint64, size uint64) error {
	if err := ctx.Err(); err != nil {
		return ctxErr(ctx)
	}
	data, err := checkTransfer(op, remote, remoteOffset, local, localOffset, size)
	if err != nil {
		return err
	}
	peer, ok := localEngines.Load(remote.Addr)
	if !ok || !strings.HasPrefix(remote.Addr, LocalScheme) {
		return transferFailed("unknown peer %s", remote.Addr)
	}
	return copyRegion(peer.table, op, remote.Region, remoteOffset, data)
}

func (e *LocalEngine) Addr() string {
	return e.table.addr
}

func (e *LocalEngine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	localEngines.Delete(e.Addr())
	e.table.clear()
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// copyRegion performs a transfer against a region table of this process
func copyRegion(t *regionTable, op Op, id, off uint64, data []byte) error {
	if op == Push {
		return t.writeFrom(id, off, data)
	}
	return t.readInto(id, off, data)
}

func ctxErr(ctx context.Context) error {
	if ctx.Err() == context.DeadlineExceeded {
		return timeout("transfer deadline exceeded")
	}
	return transferFailed("transfer cancelled: %v", ctx.Err())
}
