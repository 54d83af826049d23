// Package bulk provides the transfer engine used for the payload of every
// provider operation. Only small envelopes travel through the RPC layer, the
// values themselves are moved between registered memory regions.
//
// A process registers a buffer with IEngine.Register and ships the token of
// the region's Descriptor to a peer. The peer then pushes into or pulls from
// that region with IEngine.Transfer, one-sided, the owner does not take part.
//
// Two engines exist:
//
//   - TCPEngine serves reads and writes of its regions over the framed tcp
//     transport (rpc/transport/tcp). The frame shard id carries the bulk op.
//
//   - LocalEngine connects engines of the same process with plain copies.
//     It is addressed as local://<n> and is used by tests and co-located
//     clients.
//
// Bounds or access mode violations, unknown regions and unreachable peers fail
// with a store.ErrTransferFailed class error. An expired context fails with
// store.ErrTimeout.
package bulk
