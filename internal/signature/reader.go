package signature

import (
	"bytes"
	"fmt"
	"io"
)

// Reader is a bounded cursor over an in-memory buffer. Parsers only access
// data through it, so a truncated or lying header can never cause an out of
// range access.
type Reader struct {
	data []byte
	pos  int
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// Read fills buf entirely. Reads crossing the end of the data consume
// what is left and report io.ErrUnexpectedEOF.
func (r *Reader) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}

	n := copy(buf, r.data[r.pos:])
	r.pos += n
	if n < len(buf) {
		return n, io.ErrUnexpectedEOF
	}
	return n, nil
}

func (r *Reader) Discard(n int) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("negative discard: %d", n)
	}

	m := min(n, r.Remaining())
	r.pos += m
	if m < n {
		return m, io.EOF
	}
	return m, nil
}

// Peek returns the next n bytes without consuming them. Fewer bytes are
// returned, together with io.EOF, when the data is shorter.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative peek: %d", n)
	}

	end := min(r.pos+n, len(r.data))
	buf := r.data[r.pos:end]
	if len(buf) < n {
		return buf, io.EOF
	}
	return buf, nil
}

func (r *Reader) BytesRead() uint64 {
	return uint64(r.pos)
}

func (r *Reader) Remaining() int {
	return len(r.data) - r.pos
}

// SeekAt searches sig within the next n bytes and, if found, positions the
// reader at its first byte.
func SeekAt(r *Reader, sig []byte, n int) bool {
	end := min(r.pos+n+len(sig), len(r.data))
	if end <= r.pos {
		return false
	}

	idx := bytes.Index(r.data[r.pos:end], sig)
	if idx < 0 {
		return false
	}
	r.pos += idx
	return true
}
