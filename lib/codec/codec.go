package codec

import (
	"errors"
	"fmt"
	"strings"
)

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
	// Name returns the registered name of the codec
	Name() string
}

// ErrUnsupportedType is returned when a codec cannot handle the value type
var ErrUnsupportedType = errors.New("codec: unsupported value type")

const (
	NameMsgpack  = "msgpack"
	NameCBOR     = "cbor"
	NameJSON     = "json"
	NameProtobuf = "protobuf"
	NameRaw      = "raw"

	// Default is the codec used when none is configured
	Default = NameMsgpack
)

// Names returns all known codec names
func Names() []string {
	return []string{NameMsgpack, NameCBOR, NameJSON, NameProtobuf, NameRaw}
}

// New returns the codec registered under name for values of type V.
// An empty name selects the Default codec.
func New[V any](name string) (Codec[V], error) {
	switch strings.ToLower(name) {
	case "", NameMsgpack:
		return Msgpack[V]{}, nil
	case NameCBOR:
		return NewCBOR[V]()
	case NameJSON:
		return JSON[V]{}, nil
	case NameProtobuf:
		return Protobuf[V]{}, nil
	case NameRaw:
		return Raw[V]{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q (expected one of %s)", name, strings.Join(Names(), ", "))
	}
}
