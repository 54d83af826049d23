package serializer

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"github.com/ValentinKolb/rKV/rpc/common"
	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// marshalSerializer adapts a generic marshal/unmarshal pair to IRPCSerializer
type marshalSerializer struct {
	marshal   func(v any) ([]byte, error)
	unmarshal func(data []byte, v any) error
}

func (m marshalSerializer) Serialize(msg common.Message) ([]byte, error) {
	return m.marshal(&msg)
}

func (m marshalSerializer) Deserialize(b []byte, msg *common.Message) error {
	// fields absent in b must not survive from a previous message
	*msg = common.Message{}
	return m.unmarshal(b, msg)
}

// NewJSONSerializer creates a serializer using json encoding
func NewJSONSerializer() IRPCSerializer {
	return marshalSerializer{marshal: json.Marshal, unmarshal: json.Unmarshal}
}

// NewMsgpackSerializer creates a serializer using MessagePack encoding
func NewMsgpackSerializer() IRPCSerializer {
	return marshalSerializer{marshal: msgpack.Marshal, unmarshal: msgpack.Unmarshal}
}

// NewCBORSerializer creates a serializer using CBOR (RFC 8949) encoding
func NewCBORSerializer() IRPCSerializer {
	return marshalSerializer{marshal: cbor.Marshal, unmarshal: cbor.Unmarshal}
}

// NewGOBSerializer creates a serializer using Go's gob format.
// Every message carries its own type description, so gob messages are the largest.
func NewGOBSerializer() IRPCSerializer {
	return marshalSerializer{
		marshal: func(v any) ([]byte, error) {
			var buf bytes.Buffer
			if err := gob.NewEncoder(&buf).Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
		unmarshal: func(data []byte, v any) error {
			return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
		},
	}
}
