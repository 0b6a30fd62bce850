package wire

import (
	"bufio"
	"bytes"
	"testing"
)

func TestVarint32RoundTrip(t *testing.T) {
	values := []uint32{0, 1, 0x7f, 0x80, 0x3fff, 0x4000, 0xffffffff, 123456789}
	for _, v := range values {
		buf := PutUvarint32(nil, v)
		got, err := ReadUvarint32(bufio.NewReader(bytes.NewReader(buf)))
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("decode(%d) = %d", v, got)
		}
	}
}

func TestVarint32SingleByte(t *testing.T) {
	for v := uint32(0); v <= 0x7f; v++ {
		buf := PutUvarint32(nil, v)
		if len(buf) != 1 {
			t.Fatalf("encode(%d) produced %d bytes, want 1", v, len(buf))
		}
	}
}

func TestVarint32OverflowRejected(t *testing.T) {
	// Five continuation bytes followed by a sixth is always invalid: the
	// maximum width for a 32-bit varint is 5 bytes.
	buf := []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}
	_, err := ReadUvarint32(bufio.NewReader(bytes.NewReader(buf)))
	if err != ErrVarintOverflow {
		t.Fatalf("got %v, want ErrVarintOverflow", err)
	}
}

func TestVarint16RoundTrip(t *testing.T) {
	values := []uint16{0, 1, 0x7f, 0x80, 0x3fff, 0xffff}
	for _, v := range values {
		buf := PutUvarint16(nil, v)
		got, err := ReadUvarint16(bufio.NewReader(bytes.NewReader(buf)))
		if err != nil {
			t.Fatalf("decode(%d): %v", v, err)
		}
		if got != v {
			t.Fatalf("decode(%d) = %d", v, got)
		}
	}
}

func TestVarint16RejectsOutOfRange(t *testing.T) {
	// encodes 0x1ffff, too large for a varu16
	buf := []byte{0xff, 0xff, 0x07}
	_, err := ReadUvarint16(bufio.NewReader(bytes.NewReader(buf)))
	if err != ErrVarintOverflow {
		t.Fatalf("got %v, want ErrVarintOverflow", err)
	}
}
