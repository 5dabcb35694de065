// Copyright (c) 2025 Stefano Scafiti
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
package signature

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const (
	tarBlockSize   = 512
	tarMagicOffset = 257
)

// ParseTAR walks ustar headers, verifying each header checksum, until the
// end-of-archive zero blocks or the first block which is not a header. Once
// an entry is found, an archive cut short is sized to the end of the data.
func ParseTAR(data []byte, offset int) (Match, error) {
	r := NewReader(data[offset:])

	entries := 0
	for {
		block, err := r.Peek(tarBlockSize)
		if err != nil {
			if entries > 0 && !isZeroBlock(block) {
				// The data ends inside the next header.
				_, _ = r.Discard(len(block))
				return tarTruncated(r, entries), nil
			}
			break
		}
		if isZeroBlock(block) {
			// End of archive: two zero blocks, the second one may be missing.
			_, _ = r.Discard(tarBlockSize)
			if next, err := r.Peek(tarBlockSize); err == nil && isZeroBlock(next) {
				_, _ = r.Discard(tarBlockSize)
			}
			break
		}

		size, err := parseTarHeader(block)
		if err != nil {
			if entries == 0 {
				return Match{}, err
			}
			break
		}

		_, _ = r.Discard(tarBlockSize)
		entries++
		if _, err := r.Discard(int((size + tarBlockSize - 1) / tarBlockSize * tarBlockSize)); err != nil {
			// The entry data runs past the end of the data.
			return tarTruncated(r, entries), nil
		}
	}

	if entries == 0 {
		return Match{}, fmt.Errorf("tar: no entries")
	}

	return Match{
		Size:        r.BytesRead(),
		Confidence:  ConfidenceHigh,
		Description: fmt.Sprintf("POSIX tar archive, %d entries", entries),
	}, nil
}

func tarTruncated(r *Reader, entries int) Match {
	return Match{
		Size:        r.BytesRead(),
		Confidence:  ConfidenceMedium,
		Description: fmt.Sprintf("POSIX tar archive, %d entries, truncated", entries),
	}
}

func isZeroBlock(block []byte) bool {
	for _, b := range block {
		if b != 0 {
			return false
		}
	}
	return true
}

// parseTarHeader checks a header block and returns the entry data size.
func parseTarHeader(block []byte) (int64, error) {
	if !bytes.HasPrefix(block[tarMagicOffset:], []byte("ustar")) {
		return 0, fmt.Errorf("tar: missing ustar magic")
	}

	want, err := parseOctal(block[148:156])
	if err != nil {
		return 0, fmt.Errorf("tar: invalid checksum field: %w", err)
	}

	// The checksum is computed with the checksum field set to spaces.
	var sum int64
	for i, b := range block {
		if i >= 148 && i < 156 {
			b = ' '
		}
		sum += int64(b)
	}
	if sum != want {
		return 0, fmt.Errorf("tar: header checksum mismatch")
	}

	size, err := parseOctal(block[124:136])
	if err != nil {
		return 0, fmt.Errorf("tar: invalid size field: %w", err)
	}
	if size < 0 {
		return 0, fmt.Errorf("tar: negative entry size")
	}
	return size, nil
}

func parseOctal(field []byte) (int64, error) {
	s := strings.Trim(string(field), " \x00")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 8, 64)
}
