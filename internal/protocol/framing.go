package protocol

import (
	"bytes"
	"errors"
	"io"
)

// DefaultMaxFrameSize bounds a single line. A peer that exceeds it is
// misbehaving and gets its connection closed.
const DefaultMaxFrameSize = 64 * 1024

// ErrFrameTooLarge is returned when a line grows past the configured cap.
// Callers must treat it as fatal for the connection.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// Reader frames LF-terminated lines out of a byte stream. A truncated final
// fragment is retained across calls until more bytes arrive, so it is safe
// to resume after a read timeout.
type Reader struct {
	r        io.Reader
	buf      []byte
	maxFrame int
	scratch  [4096]byte
}

// NewReader wraps r with a line framer. maxFrame <= 0 selects the default cap.
func NewReader(r io.Reader, maxFrame int) *Reader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Reader{r: r, maxFrame: maxFrame}
}

// ReadLine returns the next non-empty line without its trailing LF.
// The returned slice is owned by the caller. Read errors from the underlying
// stream (including timeouts) pass through untouched; buffered bytes survive
// them.
func (fr *Reader) ReadLine() ([]byte, error) {
	for {
		if i := bytes.IndexByte(fr.buf, '\n'); i >= 0 {
			line := fr.buf[:i]
			fr.buf = fr.buf[i+1:]
			if len(line) == 0 {
				continue
			}
			out := make([]byte, len(line))
			copy(out, line)
			return out, nil
		}

		if len(fr.buf) > fr.maxFrame {
			return nil, ErrFrameTooLarge
		}

		n, err := fr.r.Read(fr.scratch[:])
		if n > 0 {
			fr.buf = append(fr.buf, fr.scratch[:n]...)
			continue
		}
		if err != nil {
			return nil, err
		}
	}
}

// Buffered reports how many bytes are held awaiting a newline.
func (fr *Reader) Buffered() int {
	return len(fr.buf)
}

// WriteMessage encodes m and writes it as one line to w.
func WriteMessage(w io.Writer, m Message) error {
	line, err := Encode(m)
	if err != nil {
		return err
	}
	_, err = w.Write(line)
	return err
}
