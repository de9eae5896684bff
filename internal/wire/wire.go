// Package wire frames values kept in byte-oriented providers. The header carries
// the provider-assigned entry sequence so a removal notification that only sees
// the stored bytes can be matched to the Set that wrote them.
//
// Layout: "DEPC" | version(1) | kind(1) | seq(u64 be) | len(u32 be) | payload.
package wire

import (
	"encoding/binary"
	"errors"
)

const (
	version   byte = 1
	kindEntry byte = 1

	seqOff    = 6
	lenOff    = seqOff + 8
	headerLen = lenOff + 4
)

const magic = "DEPC"

var ErrCorrupt = errors.New("depcache: corrupt entry")

// EncodeEntry returns a new buffer holding the framed payload.
func EncodeEntry(seq uint64, payload []byte) []byte {
	b := make([]byte, 0, headerLen+len(payload))
	b = append(b, magic...)
	b = append(b, version, kindEntry)
	b = binary.BigEndian.AppendUint64(b, seq)
	b = binary.BigEndian.AppendUint32(b, uint32(len(payload)))
	return append(b, payload...)
}

// DecodeEntry validates framing strictly: trailing bytes are corruption. The
// returned payload aliases b.
func DecodeEntry(b []byte) (seq uint64, payload []byte, err error) {
	if !validHeader(b) {
		return 0, nil, ErrCorrupt
	}
	n := binary.BigEndian.Uint32(b[lenOff:headerLen])
	if uint64(n) != uint64(len(b)-headerLen) {
		return 0, nil, ErrCorrupt
	}
	return binary.BigEndian.Uint64(b[seqOff:lenOff]), b[headerLen:], nil
}

// PeekSeq reads the sequence from the header only; the payload is not checked.
func PeekSeq(b []byte) (uint64, bool) {
	if !validHeader(b) {
		return 0, false
	}
	return binary.BigEndian.Uint64(b[seqOff:lenOff]), true
}

func validHeader(b []byte) bool {
	return len(b) >= headerLen &&
		string(b[:len(magic)]) == magic &&
		b[4] == version &&
		b[5] == kindEntry
}
