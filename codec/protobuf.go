package codec

import (
	"fmt"

	"google.golang.org/protobuf/proto"
)

// Protobuf serializes generated proto messages. Encoding is deterministic;
// decoding drops unknown fields so a message cached by a newer schema still
// decodes into an older one.
type Protobuf[T proto.Message] struct {
	empty func() T
}

// NewProtobuf returns a codec that decodes into messages built by empty, e.g.
// func() *pb.Order { return &pb.Order{} }.
func NewProtobuf[T proto.Message](empty func() T) Protobuf[T] {
	return Protobuf[T]{empty: empty}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.empty()
	if err := (proto.UnmarshalOptions{DiscardUnknown: true}).Unmarshal(b, m); err != nil {
		return m, fmt.Errorf("codec: protobuf: %w", err)
	}
	return m, nil
}
