package signature

import (
	"errors"
	"io"
)

// maxDecodedSize bounds the output produced while confirming a compressed
// stream. Streams still going at the limit are sized to the end of the data.
const maxDecodedSize = 256 << 20

// minTrustedOutput is the decoded size a stream must reach, when it cannot be
// followed to its end, to be reported with medium confidence.
const minTrustedOutput = 1024

// byteCounter hands bytes one at a time to a decompressor, so that the
// position reached when the stream ends is exactly its compressed length.
type byteCounter struct {
	data []byte
	pos  int
}

func (c *byteCounter) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	n := copy(p, c.data[c.pos:])
	c.pos += n
	return n, nil
}

func (c *byteCounter) ReadByte() (byte, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

// endsEarly reports whether err means the data ran out inside the stream,
// as opposed to the stream being corrupt.
func (c *byteCounter) endsEarly(err error) bool {
	return errors.Is(err, io.ErrUnexpectedEOF) && c.pos >= len(c.data)
}

// partialConfidence rates a stream whose end was not reached.
func partialConfidence(decoded int64) uint8 {
	if decoded >= minTrustedOutput {
		return ConfidenceMedium
	}
	return ConfidenceLow
}

// drain decodes r up to maxDecodedSize and reports the decoded size and
// whether the stream ended before the limit.
func drain(r io.Reader) (int64, bool, error) {
	n, err := io.CopyN(io.Discard, r, maxDecodedSize)
	if err == io.EOF {
		return n, true, nil
	}
	if err != nil {
		return n, false, err
	}
	return n, false, nil
}
