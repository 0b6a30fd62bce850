package wire

import (
	"bufio"
	"io"
	"net"

	"github.com/pkg/errors"
)

// MaxExtensionFrame bounds the payload size accepted from an extension, to
// keep a single malformed message from exhausting hub memory.
const MaxExtensionFrame = 16 << 20 // 16 MiB

// Errors returned while framing the extension<->hub protocol.
var (
	ErrFrameTooLarge   = errors.New("wire: frame exceeds maximum size")
	ErrUnknownCommand  = errors.New("wire: unknown command id")
	ErrInvalidFrame    = errors.New("wire: invalid frame")
)

// UnknownCommandError carries the offending opcode for logging.
type UnknownCommandError struct {
	ID uint16
}

func (e *UnknownCommandError) Error() string {
	return errors.Wrapf(ErrUnknownCommand, "id=%d", e.ID).Error()
}

// Frame is a single decoded extension<->hub message: an opcode plus its
// payload bytes. The payload is not yet interpreted as a particular command's
// fields -- that's the job of the protocol package built on top of wire.
type Frame struct {
	Command uint16
	Payload []byte
}

// FrameReader incrementally decodes frames off a buffered stream socket. It
// tolerates a connection that delivers bytes in arbitrary chunks: ReadFrame
// blocks until a complete frame is available or the connection errs out.
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps conn for frame-oriented reads.
func NewFrameReader(conn net.Conn) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(conn, 4096)}
}

// ReadFrame reads and returns the next frame. It returns io.EOF if the
// connection closed cleanly between frames.
func (fr *FrameReader) ReadFrame() (Frame, error) {
	length, err := ReadUvarint32(fr.r)
	if err != nil {
		if err == io.EOF {
			return Frame{}, io.EOF
		}
		return Frame{}, errors.Wrap(err, "reading frame length")
	}
	if length > MaxExtensionFrame {
		return Frame{}, ErrFrameTooLarge
	}

	cmd, err := ReadUvarint16(fr.r)
	if err != nil {
		return Frame{}, errors.Wrap(err, "reading command id")
	}

	// length covers the command id plus the payload; we've already
	// consumed the command id's bytes, so their count is recomputed by
	// re-encoding the decoded id with PutUvarint16.
	cmdLen := len(PutUvarint16(nil, cmd))
	if uint32(cmdLen) > length {
		return Frame{}, ErrInvalidFrame
	}
	payloadLen := length - uint32(cmdLen)

	payload := make([]byte, payloadLen)
	if payloadLen > 0 {
		if _, err := io.ReadFull(fr.r, payload); err != nil {
			return Frame{}, errors.Wrap(err, "reading frame payload")
		}
	}

	return Frame{Command: cmd, Payload: payload}, nil
}

// FrameWriter encodes frames onto a stream socket.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps conn for frame-oriented writes.
func NewFrameWriter(conn net.Conn) *FrameWriter {
	return &FrameWriter{w: conn}
}

// WriteFrame encodes and writes a single frame.
func (fw *FrameWriter) WriteFrame(cmd uint16, payload []byte) error {
	cmdBuf := PutUvarint16(nil, cmd)
	total := uint32(len(cmdBuf)) + uint32(len(payload))

	buf := PutUvarint32(nil, total)
	buf = append(buf, cmdBuf...)
	buf = append(buf, payload...)

	_, err := fw.w.Write(buf)
	return errors.Wrap(err, "writing frame")
}
