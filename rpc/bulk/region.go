package bulk

import (
	"encoding/base64"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/vmihailenco/msgpack/v5"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Region
// --------------------------------------------------------------------------

// Region is a registered memory region.
// mu guards buf against peer copies; Deregister takes it exclusively so the
// owner observes every completed remote write once Deregister returns.
type Region struct {
	mu       sync.RWMutex
	id       uint64
	buf      []byte
	mode     AccessMode
	addr     string
	released atomic.Bool
}

// ID returns the engine local id of the region
func (r *Region) ID() uint64 { return r.id }

// Bytes returns the registered memory
func (r *Region) Bytes() []byte { return r.buf }

// Len returns the size of the region in bytes
func (r *Region) Len() uint64 { return uint64(len(r.buf)) }

// Mode returns the remote access mode of the region
func (r *Region) Mode() AccessMode { return r.mode }

// Descriptor returns the handle a peer needs to access the region
func (r *Region) Descriptor() Descriptor {
	return Descriptor{Addr: r.addr, Region: r.id, Length: uint64(len(r.buf)), Mode: r.mode}
}

// --------------------------------------------------------------------------
// Descriptor
// --------------------------------------------------------------------------

// Descriptor identifies a region of a (possibly remote) engine.
// It is only valid while the region is registered and is never persisted.
type Descriptor struct {
	Addr   string     `msgpack:"a"`
	Region uint64     `msgpack:"r"`
	Length uint64     `msgpack:"l"`
	Mode   AccessMode `msgpack:"m"`
}

// Token encodes the descriptor as an opaque string that can travel in an envelope
func (d Descriptor) Token() string {
	b, err := msgpack.Marshal(&d)
	if err != nil {
		// a struct of scalars always encodes
		panic(fmt.Sprintf("bulk: failed to encode descriptor: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

func (d Descriptor) String() string {
	return fmt.Sprintf("%s/%d[%d,%s]", d.Addr, d.Region, d.Length, d.Mode)
}

// ParseDescriptor decodes a token created by Descriptor.Token
func ParseDescriptor(token string) (Descriptor, error) {
	var d Descriptor
	if token == "" {
		return d, store.NewError(store.RetCMalformedEnvelope, "empty buffer descriptor")
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return d, store.Errorf(store.RetCMalformedEnvelope, "invalid buffer descriptor: %v", err)
	}
	if err := msgpack.Unmarshal(b, &d); err != nil {
		return d, store.Errorf(store.RetCMalformedEnvelope, "invalid buffer descriptor: %v", err)
	}
	if d.Addr == "" || d.Mode < ReadOnly || d.Mode > ReadWrite {
		return d, store.Errorf(store.RetCMalformedEnvelope, "invalid buffer descriptor %s", d)
	}
	return d, nil
}

// --------------------------------------------------------------------------
// Region table (shared by all engines)
// --------------------------------------------------------------------------

// regionTable holds the regions registered at one engine
type regionTable struct {
	addr    string
	regions *xsync.MapOf[uint64, *Region]
	nextID  atomic.Uint64
}

func newRegionTable(addr string) *regionTable {
	return &regionTable{addr: addr, regions: xsync.NewMapOf[uint64, *Region]()}
}

func (t *regionTable) register(buf []byte, mode AccessMode) (*Region, error) {
	if mode < ReadOnly || mode > ReadWrite {
		return nil, transferFailed("invalid access mode %d", mode)
	}
	r := &Region{
		id:   t.nextID.Add(1),
		buf:  buf,
		mode: mode,
		addr: t.addr,
	}
	t.regions.Store(r.id, r)
	return r, nil
}

func (t *regionTable) deregister(r *Region) {
	if r == nil {
		return
	}
	t.regions.Delete(r.id)
	r.mu.Lock()
	r.released.Store(true)
	r.mu.Unlock()
}

func (t *regionTable) clear() {
	t.regions.Range(func(_ uint64, r *Region) bool {
		r.mu.Lock()
		r.released.Store(true)
		r.mu.Unlock()
		return true
	})
	t.regions.Clear()
}

// lookup returns the registered region id if [off, off+size) is inside it
// and the region grants the requested access
func (t *regionTable) lookup(id, off, size uint64, write bool) (*Region, error) {
	r, ok := t.regions.Load(id)
	if !ok {
		return nil, transferFailed("unknown region %d at %s", id, t.addr)
	}
	if write && !r.mode.CanWrite() {
		return nil, transferFailed("region %d at %s is %s", id, t.addr, r.mode)
	}
	if !write && !r.mode.CanRead() {
		return nil, transferFailed("region %d at %s is %s", id, t.addr, r.mode)
	}
	if !inBounds(off, size, r.Len()) {
		return nil, transferFailed("range [%d, %d) exceeds region %d of %d bytes", off, off+size, id, r.Len())
	}
	return r, nil
}

// readInto copies len(dst) bytes at off of region id into dst
func (t *regionTable) readInto(id, off uint64, dst []byte) error {
	r, err := t.lookup(id, off, uint64(len(dst)), false)
	if err != nil {
		return err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.released.Load() {
		return transferFailed("region %d at %s was deregistered", id, t.addr)
	}
	copy(dst, r.buf[off:off+uint64(len(dst))])
	return nil
}

// writeFrom copies src into region id at off
func (t *regionTable) writeFrom(id, off uint64, src []byte) error {
	r, err := t.lookup(id, off, uint64(len(src)), true)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released.Load() {
		return transferFailed("region %d at %s was deregistered", id, t.addr)
	}
	copy(r.buf[off:], src)
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func inBounds(off, size, length uint64) bool {
	return off <= length && size <= length-off
}

// checkTransfer validates the caller side of a transfer and returns the local byte range
func checkTransfer(op Op, remote Descriptor, remoteOffset uint64, local *Region, localOffset uint64, size uint64) ([]byte, error) {
	if op != Push && op != Pull {
		return nil, transferFailed("invalid transfer op %d", op)
	}
	if local == nil || local.released.Load() {
		return nil, transferFailed("local region is not registered")
	}
	if !inBounds(localOffset, size, local.Len()) {
		return nil, transferFailed("range [%d, %d) exceeds local region of %d bytes", localOffset, localOffset+size, local.Len())
	}
	if !inBounds(remoteOffset, size, remote.Length) {
		return nil, transferFailed("range [%d, %d) exceeds remote region %s", remoteOffset, remoteOffset+size, remote)
	}
	if op == Push && !remote.Mode.CanWrite() {
		return nil, transferFailed("remote region %s does not accept writes", remote)
	}
	if op == Pull && !remote.Mode.CanRead() {
		return nil, transferFailed("remote region %s does not accept reads", remote)
	}
	return local.buf[localOffset : localOffset+size], nil
}
