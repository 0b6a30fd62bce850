package wire

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// MaxUIFrame is the largest payload accepted on a UI WebSocket connection
// (spec: 1 MiB including the length prefix's accounted payload).
const MaxUIFrame = 1 << 20

// ErrUIFrameTooLarge is returned by DecodeUIFrame when a declared length
// exceeds MaxUIFrame. The caller should close the connection with a
// "frame too large" error, per spec; it must not forward any partial
// message to the core task.
var ErrUIFrameTooLarge = errors.New("wire: UI frame too large")

// EncodeUIFrame prepends a 4-byte little-endian length to payload, as used
// for binary WebSocket messages between the hub and UI clients.
func EncodeUIFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxUIFrame {
		return nil, ErrUIFrameTooLarge
	}
	out := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out, nil
}

// DecodeUIFrame validates and strips the 4-byte length prefix from a
// WebSocket binary message, returning the payload.
func DecodeUIFrame(msg []byte) ([]byte, error) {
	if len(msg) < 4 {
		return nil, ErrInvalidFrame
	}
	n := binary.LittleEndian.Uint32(msg[:4])
	if n > MaxUIFrame {
		return nil, ErrUIFrameTooLarge
	}
	if int(n) != len(msg)-4 {
		return nil, ErrInvalidFrame
	}
	return msg[4:], nil
}
