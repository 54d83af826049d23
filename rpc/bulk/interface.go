package bulk

import (
	"context"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("bulk")

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// IEngine moves byte ranges between registered memory regions of two processes.
// A region is exported with Register; its Descriptor can be handed to a peer,
// which then reads (Pull) or writes (Push) the region without the owner being
// involved in the copy.
type IEngine interface {
	// Register exports buf for remote access with the given mode.
	// The engine keeps a reference to buf until Deregister is called.
	Register(buf []byte, mode AccessMode) (*Region, error)
	// Deregister revokes remote access to a region. Later transfers fail.
	Deregister(r *Region)
	// Transfer copies size bytes between local[localOffset:] and remote[remoteOffset:].
	// Push writes the local bytes into the remote region, Pull reads the remote bytes into local.
	Transfer(ctx context.Context, op Op, remote Descriptor, remoteOffset uint64, local *Region, localOffset uint64, size uint64) error
	// Addr returns the address peers use to reach this engine
	Addr() string
	// Close deregisters all regions and stops serving peers
	Close() error
}

// --------------------------------------------------------------------------
// Access modes and operations
// --------------------------------------------------------------------------

// AccessMode defines what peers may do with a registered region
type AccessMode uint8

const (
	ReadOnly AccessMode = iota + 1
	WriteOnly
	ReadWrite
)

// CanRead reports whether peers may pull from a region with this mode
func (m AccessMode) CanRead() bool { return m == ReadOnly || m == ReadWrite }

// CanWrite reports whether peers may push into a region with this mode
func (m AccessMode) CanWrite() bool { return m == WriteOnly || m == ReadWrite }

func (m AccessMode) String() string {
	switch m {
	case ReadOnly:
		return "read_only"
	case WriteOnly:
		return "write_only"
	case ReadWrite:
		return "read_write"
	default:
		return "invalid"
	}
}

// Op is the direction of a transfer seen from the caller
type Op uint8

const (
	// Push sends local memory to a remote region
	Push Op = iota + 1
	// Pull reads a remote region into local memory
	Pull
)

func (o Op) String() string {
	switch o {
	case Push:
		return "push"
	case Pull:
		return "pull"
	default:
		return "invalid"
	}
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

// transferFailed returns a store.ErrTransferFailed class error
func transferFailed(format string, args ...any) error {
	return store.Errorf(store.RetCTransferFailed, format, args...)
}

// timeout returns a store.ErrTimeout class error
func timeout(format string, args ...any) error {
	return store.Errorf(store.RetCTimeout, format, args...)
}
