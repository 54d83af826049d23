package server

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/db"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/ValentinKolb/rKV/rpc/bulk"
	"github.com/ValentinKolb/rKV/rpc/common"
	"sync/atomic"
	"time"
)

// NewProviderAdapter creates the adapter of one provider. It owns the store map db
// and moves all payloads with engine.
func NewProviderAdapter(id uint64, kv db.KVDB, engine bulk.IEngine, m *providerMetrics) IRPCServerAdapter {
	p := &providerAdapterImpl{
		id:      id,
		db:      kv,
		engine:  engine,
		metrics: m,
	}
	p.writeIdx.Store(kv.WriteIdx())
	return p
}

type providerAdapterImpl struct {
	id      uint64
	db      db.KVDB
	engine  bulk.IEngine
	metrics *providerMetrics

	// index of the last mutation, equal indexes resolve to the last writer
	writeIdx atomic.Uint64
}

// --------------------------------------------------------------------------
// Interface Methods (docu see IRPCServerAdapter)
// --------------------------------------------------------------------------

func (p *providerAdapterImpl) Handle(ctx context.Context, req *common.Message) *common.Message {
	start := time.Now()

	var resp *common.Message
	switch req.MsgType {
	case common.MsgTSet, common.MsgTGet, common.MsgTGetSize, common.MsgTExists:
		env, err := common.DecodeEnvelope(req.Envelope)
		if err != nil {
			resp = common.NewResponse(req.MsgType, common.StatusMalformedEnvelope, 0, err)
			break
		}
		remote, err := bulk.ParseDescriptor(env.Buffer)
		if err != nil {
			resp = common.NewResponse(req.MsgType, common.StatusMalformedEnvelope, 0, err)
			break
		}
		switch req.MsgType {
		case common.MsgTSet:
			resp = p.set(ctx, env, remote)
		case common.MsgTGet:
			resp = p.get(ctx, env, remote)
		case common.MsgTGetSize:
			resp = p.getSize(ctx, env, remote)
		default:
			resp = p.exists(ctx, env, remote)
		}
	default:
		resp = common.NewErrorResponse(common.StatusError,
			fmt.Sprintf("provider %d: unsupported message type: %s", p.id, req.MsgType))
	}

	p.metrics.observe(req.MsgType, resp.Status, start)
	if resp.Status != common.StatusOk && resp.Status != common.StatusKeyNotFound {
		Logger.Warningf("provider %d: %s failed with %s: %s", p.id, req.MsgType, resp.Status, resp.Err)
	}
	return resp
}

// --------------------------------------------------------------------------
// Operations
// --------------------------------------------------------------------------

// set pulls env.Size bytes from the caller and stores them under env.Key
func (p *providerAdapterImpl) set(ctx context.Context, env common.Envelope, remote bulk.Descriptor) *common.Message {
	if env.Size > remote.Length {
		return common.NewResponse(common.MsgTSet, common.StatusTransferFailed, 0,
			fmt.Errorf("size %d exceeds the remote buffer of %d bytes", env.Size, remote.Length))
	}

	buf := make([]byte, env.Size)
	if err := p.transfer(ctx, bulk.Pull, remote, buf); err != nil {
		return transferFailed(common.MsgTSet, err)
	}

	// the map is only touched after the transfer completed
	p.db.Set(env.Key, buf, p.nextIndex())
	p.metrics.bytesIn.Add(len(buf))
	return common.NewResponse(common.MsgTSet, common.StatusOk, env.Size, nil)
}

// get pushes the value of env.Key into the caller's buffer
func (p *providerAdapterImpl) get(ctx context.Context, env common.Envelope, remote bulk.Descriptor) *common.Message {
	value, ok := p.db.Get(env.Key)
	if !ok {
		return common.NewResponse(common.MsgTGet, common.StatusKeyNotFound, 0,
			fmt.Errorf("key %q not found", env.Key))
	}

	size := uint64(len(value))
	if size > env.Size || size > remote.Length {
		return common.NewResponse(common.MsgTGet, common.StatusTransferFailed, size,
			fmt.Errorf("value of %d bytes does not fit the remote buffer of %d bytes", size, min(env.Size, remote.Length)))
	}

	if err := p.transfer(ctx, bulk.Push, remote, value); err != nil {
		return transferFailed(common.MsgTGet, err)
	}
	p.metrics.bytesOut.Add(len(value))
	return common.NewResponse(common.MsgTGet, common.StatusOk, size, nil)
}

// getSize pushes the length of the value of env.Key as 8 byte big endian integer.
// For an absent key 0 is pushed and the status is KeyNotFound.
func (p *providerAdapterImpl) getSize(ctx context.Context, env common.Envelope, remote bulk.Descriptor) *common.Message {
	size, ok := p.db.SizeOf(env.Key)
	if !ok {
		size = 0
	}

	buf := make([]byte, common.SizeFieldLen)
	binary.BigEndian.PutUint64(buf, uint64(size))
	if err := p.transfer(ctx, bulk.Push, remote, buf); err != nil {
		return transferFailed(common.MsgTGetSize, err)
	}

	if !ok {
		return common.NewResponse(common.MsgTGetSize, common.StatusKeyNotFound, 0,
			fmt.Errorf("key %q not found", env.Key))
	}
	return common.NewResponse(common.MsgTGetSize, common.StatusOk, uint64(size), nil)
}

// exists pushes a single byte (1 = present, 0 = absent)
func (p *providerAdapterImpl) exists(ctx context.Context, env common.Envelope, remote bulk.Descriptor) *common.Message {
	flag := byte(0)
	if p.db.Has(env.Key) {
		flag = 1
	}
	if err := p.transfer(ctx, bulk.Push, remote, []byte{flag}); err != nil {
		return transferFailed(common.MsgTExists, err)
	}
	return common.NewResponse(common.MsgTExists, common.StatusOk, common.ExistsFieldLen, nil)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// transfer registers buf for the duration of one push or pull against remote
func (p *providerAdapterImpl) transfer(ctx context.Context, op bulk.Op, remote bulk.Descriptor, buf []byte) error {
	region, err := p.engine.Register(buf, bulk.ReadWrite)
	if err != nil {
		return err
	}
	defer p.engine.Deregister(region)
	return p.engine.Transfer(ctx, op, remote, 0, region, 0, uint64(len(buf)))
}

// nextIndex returns the write index for the next mutation of the store map
func (p *providerAdapterImpl) nextIndex() uint64 {
	return p.writeIdx.Add(1)
}

func transferFailed(t common.MessageType, err error) *common.Message {
	// a timeout of the engine is still a failed transfer from the caller's point of view
	if errors.Is(err, store.ErrTimeout) {
		err = fmt.Errorf("transfer timed out: %w", err)
	}
	return common.NewResponse(t, common.StatusTransferFailed, 0, err)
}
