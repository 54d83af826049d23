package codec

import "fmt"

// Raw is an identity codec for []byte values. Any other V fails with ErrUnsupportedType.
type Raw[V any] struct{}

func (Raw[V]) Name() string { return NameRaw }

func (Raw[V]) Encode(v V) ([]byte, error) {
	b, ok := any(v).([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: raw codec expects []byte, got %T", ErrUnsupportedType, v)
	}
	return b, nil
}

func (Raw[V]) Decode(b []byte) (V, error) {
	v, ok := any(b).(V)
	if !ok {
		var zero V
		return zero, fmt.Errorf("%w: raw codec cannot decode into %T", ErrUnsupportedType, zero)
	}
	return v, nil
}
