package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type order struct {
	ID    int      `json:"id" msgpack:"id" cbor:"id"`
	Lines []string `json:"lines" msgpack:"lines" cbor:"lines"`
}

func TestByName_RoundTrip(t *testing.T) {
	in := order{ID: 7, Lines: []string{"a", "b"}}
	for _, name := range []string{"", "json", "msgpack", "cbor"} {
		t.Run(name, func(t *testing.T) {
			c, err := ByName[order](name)
			require.NoError(t, err)
			b, err := c.Encode(in)
			require.NoError(t, err)
			out, err := c.Decode(b)
			require.NoError(t, err)
			require.Equal(t, in, out)
		})
	}
}

func TestByName_Unknown(t *testing.T) {
	_, err := ByName[order]("gob")
	require.ErrorContains(t, err, `unknown codec "gob"`)
}

func TestMsgpack_UsesJSONNames(t *testing.T) {
	type invoice struct {
		Number string `json:"number"`
	}
	b, err := Msgpack[invoice]{}.Encode(invoice{Number: "F-1"})
	require.NoError(t, err)
	m, err := Msgpack[map[string]string]{}.Decode(b)
	require.NoError(t, err)
	require.Equal(t, map[string]string{"number": "F-1"}, m)
}

func TestCBOR_DeterministicMaps(t *testing.T) {
	c := MustCBOR[map[string]int](true)
	m := map[string]int{"z": 1, "a": 2, "m": 3}
	first, err := c.Encode(m)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b, err := c.Encode(m)
		require.NoError(t, err)
		require.Equal(t, first, b)
	}
}

func TestLimitCodec(t *testing.T) {
	c := LimitCodec[string]{Inner: String{}, MaxDecode: 4}
	b, err := c.Encode("hello")
	require.NoError(t, err)
	_, err = c.Decode(b)
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = LimitCodec[string]{Inner: String{}, MaxEncode: 3}.Encode("hello")
	require.ErrorIs(t, err, ErrTooLarge)

	v, err := c.Decode([]byte("ok"))
	require.NoError(t, err)
	require.Equal(t, "ok", v)

	unlimited := LimitCodec[string]{Inner: String{}}
	v, err = unlimited.Decode(b)
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func TestProtobuf(t *testing.T) {
	c := NewProtobuf(func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} })
	b, err := c.Encode(wrapperspb.String("invoice-42"))
	require.NoError(t, err)
	out, err := c.Decode(b)
	require.NoError(t, err)
	require.True(t, proto.Equal(wrapperspb.String("invoice-42"), out))

	_, err = c.Decode([]byte{0xff, 0xff})
	require.Error(t, err)
}

func TestRaw(t *testing.T) {
	b, err := Bytes{}.Encode([]byte{1, 2})
	require.NoError(t, err)
	out, err := Bytes{}.Decode(b)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2}, out)
}
