package wire

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEntry_RoundTrip(t *testing.T) {
	for _, tc := range []struct {
		seq     uint64
		payload []byte
	}{
		{0, nil},
		{42, []byte("hello")},
		{math.MaxUint64, []byte{0, 1, 2, 3, 4}},
	} {
		seq, p, err := DecodeEntry(EncodeEntry(tc.seq, tc.payload))
		require.NoError(t, err)
		require.Equal(t, tc.seq, seq)
		require.Len(t, p, len(tc.payload))
		if len(tc.payload) > 0 {
			require.Equal(t, tc.payload, p)
		}
	}
}

func TestDecodeEntry_Corrupt(t *testing.T) {
	enc := EncodeEntry(1, []byte("abc"))
	mutate := func(f func([]byte) []byte) []byte {
		return f(append([]byte(nil), enc...))
	}

	cases := map[string][]byte{
		"trailing bytes": append(append([]byte(nil), enc...), 0xDE, 0xAD),
		"bad magic":      mutate(func(b []byte) []byte { b[0] = 'X'; return b }),
		"bad version":    mutate(func(b []byte) []byte { b[4] = version + 1; return b }),
		"bad kind":       mutate(func(b []byte) []byte { b[5] = kindEntry + 1; return b }),
		"length past end": mutate(func(b []byte) []byte {
			binary.BigEndian.PutUint32(b[lenOff:headerLen], 4)
			return b
		}),
		"truncated": enc[:len(enc)-1],
		"short":     []byte("DEPC"),
	}
	for name, b := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeEntry(b)
			require.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestPeekSeq(t *testing.T) {
	enc := append(EncodeEntry(99, []byte("payload")), 0xFF)
	seq, ok := PeekSeq(enc)
	require.True(t, ok, "payload length is not checked")
	require.Equal(t, uint64(99), seq)

	_, ok = PeekSeq([]byte("nope"))
	require.False(t, ok)
}
