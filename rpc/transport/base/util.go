package base

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"net"
)

// frameHeaderSize is the size of the header in front of every payload:
//
//	[0:8]   shard id (the provider id for rpc frames, the op code for bulk frames)
//	[8:16]  request id, echoed in the response
//	[16:20] payload length
//
// All fields are big endian.
const frameHeaderSize = 20

// MaxFrameSize is the largest payload a frame can carry
const MaxFrameSize = math.MaxUint32

func writeFrame(conn net.Conn, shardID uint64, requestID uint64, data []byte) error {
	if uint64(len(data)) > MaxFrameSize {
		return fmt.Errorf("frame payload of %d bytes exceeds %d bytes", len(data), uint64(MaxFrameSize))
	}

	var header [frameHeaderSize]byte
	binary.BigEndian.PutUint64(header[:8], shardID)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	// one writev for header and payload
	b := net.Buffers{header[:], data}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads one frame. The payload is read into buf if it fits (buf may
// be pooled by the caller), otherwise a new slice is allocated. The returned
// payload is only valid until buf is reused.
func readFrame(conn net.Conn, buf []byte) (shardID uint64, requestID uint64, payload []byte, err error) {
	var header [frameHeaderSize]byte
	if _, err = io.ReadFull(conn, header[:]); err != nil {
		return 0, 0, nil, err
	}

	shardID = binary.BigEndian.Uint64(header[:8])
	requestID = binary.BigEndian.Uint64(header[8:16])
	n := int(binary.BigEndian.Uint32(header[16:20]))

	if n == 0 {
		return shardID, requestID, []byte{}, nil
	}
	if len(buf) < n {
		buf = make([]byte, n)
	}
	if _, err = io.ReadFull(conn, buf[:n]); err != nil {
		return 0, 0, nil, err
	}
	return shardID, requestID, buf[:n], nil
}
