// Package wire implements the length-prefixed frame protocol that connects
// extensions to the hub, and the WebSocket frame protocol that connects UI
// clients to the hub.
package wire

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// ErrVarintOverflow is returned when a varint would require more than the
// maximum number of continuation bytes for its target width.
var ErrVarintOverflow = errors.New("wire: varint overflows target width")

const (
	maxVarint32Bytes = 5 // ceil(32/7)
	maxVarint16Bytes = 3 // ceil(16/7)
)

// PutUvarint32 appends the unsigned LEB128 encoding of v to buf and returns
// the extended slice. Values <= 0x7F encode to exactly one byte.
func PutUvarint32(buf []byte, v uint32) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}

// PutUvarint16 appends the unsigned LEB128 encoding of v to buf.
func PutUvarint16(buf []byte, v uint16) []byte {
	return PutUvarint32(buf, uint32(v))
}

// ReadUvarint32 decodes an unsigned LEB128 varint from r, rejecting any
// encoding that would require more than maxVarint32Bytes continuation bytes.
func ReadUvarint32(r io.ByteReader) (uint32, error) {
	var v uint32
	for i := 0; i < maxVarint32Bytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if i == maxVarint32Bytes-1 && b >= 0x10 {
			// fifth byte may only contribute 4 more bits (32 - 4*7 = 4)
			return 0, ErrVarintOverflow
		}
		v |= uint32(b&0x7f) << uint(7*i)
		if b < 0x80 {
			return v, nil
		}
	}
	return 0, ErrVarintOverflow
}

// ReadUvarint16 decodes an unsigned LEB128 varint, rejecting anything that
// wouldn't fit in 16 bits or that overruns its continuation-byte budget.
func ReadUvarint16(r io.ByteReader) (uint16, error) {
	var v uint32
	for i := 0; i < maxVarint16Bytes; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		v |= uint32(b&0x7f) << uint(7*i)
		if b < 0x80 {
			if v > 0xffff {
				return 0, ErrVarintOverflow
			}
			return uint16(v), nil
		}
	}
	return 0, ErrVarintOverflow
}

// *bufio.Reader satisfies io.ByteReader, so ReadUvarint32/16 can be used
// directly against a buffered stream socket.
var _ io.ByteReader = (*bufio.Reader)(nil)
