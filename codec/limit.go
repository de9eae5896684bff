package codec

import (
	"errors"
	"fmt"
)

// ErrTooLarge reports a payload over a LimitCodec bound.
var ErrTooLarge = errors.New("codec: payload too large")

// LimitCodec bounds payload sizes around Inner, which must be set. A limit <= 0
// is disabled.
//
// MaxEncode keeps oversized values out of a shared store (the factory still
// returns them to its caller). MaxDecode protects against oversized bytes
// written there by someone else.
type LimitCodec[V any] struct {
	Inner     Codec[V]
	MaxEncode int
	MaxDecode int
}

var _ Codec[struct{}] = LimitCodec[struct{}]{}

func (c LimitCodec[V]) Encode(v V) ([]byte, error) {
	b, err := c.Inner.Encode(v)
	if err != nil {
		return nil, err
	}
	if c.MaxEncode > 0 && len(b) > c.MaxEncode {
		return nil, fmt.Errorf("%w: encoded %d > %d", ErrTooLarge, len(b), c.MaxEncode)
	}
	return b, nil
}

func (c LimitCodec[V]) Decode(b []byte) (V, error) {
	if c.MaxDecode > 0 && len(b) > c.MaxDecode {
		var zero V
		return zero, fmt.Errorf("%w: %d > %d", ErrTooLarge, len(b), c.MaxDecode)
	}
	return c.Inner.Decode(b)
}
