package serializer

import (
	"fmt"
	"github.com/ValentinKolb/rKV/rpc/common"
	"strings"
)

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message
	// It takes a byte array and a pointer to a Message as parameters
	// It returns an error if any
	Deserialize(b []byte, msg *common.Message) error
}

// Names of the available serializers
const (
	NameBinary  = "binary"
	NameJSON    = "json"
	NameGOB     = "gob"
	NameMsgpack = "msgpack"
	NameCBOR    = "cbor"
)

// New returns the serializer registered under name (empty = binary)
func New(name string) (IRPCSerializer, error) {
	switch strings.ToLower(name) {
	case "", NameBinary:
		return NewBinarySerializer(), nil
	case NameJSON:
		return NewJSONSerializer(), nil
	case NameGOB:
		return NewGOBSerializer(), nil
	case NameMsgpack:
		return NewMsgpackSerializer(), nil
	case NameCBOR:
		return NewCBORSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q (expected one of binary, json, gob, msgpack, cbor)", name)
	}
}
