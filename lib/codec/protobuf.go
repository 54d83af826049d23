package codec

import (
	"fmt"
	"google.golang.org/protobuf/proto"
	"reflect"
)

// Protobuf is a Codec for generated protobuf messages. V must be a pointer
// type implementing proto.Message (e.g. *mypb.User), otherwise Encode and
// Decode fail with ErrUnsupportedType.
type Protobuf[V any] struct{}

func (Protobuf[V]) Name() string { return NameProtobuf }

func (Protobuf[V]) Encode(v V) ([]byte, error) {
	m, ok := any(v).(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a proto.Message", ErrUnsupportedType, v)
	}
	return proto.Marshal(m)
}

func (Protobuf[V]) Decode(b []byte) (V, error) {
	var zero V
	t := reflect.TypeOf((*V)(nil)).Elem()
	if t.Kind() != reflect.Pointer {
		return zero, fmt.Errorf("%w: %s is not a pointer to a proto.Message", ErrUnsupportedType, t)
	}

	// allocate a fresh message of the concrete type
	m, ok := reflect.New(t.Elem()).Interface().(proto.Message)
	if !ok {
		return zero, fmt.Errorf("%w: %s is not a proto.Message", ErrUnsupportedType, t)
	}
	if err := proto.Unmarshal(b, m); err != nil {
		return zero, err
	}
	return m.(V), nil
}
