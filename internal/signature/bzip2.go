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
	"compress/bzip2"
	"errors"
	"fmt"
)

var (
	bzip2BlockMagic = []byte{0x31, 0x41, 0x59, 0x26, 0x53, 0x59}
	bzip2EndMagic   = []byte{0x17, 0x72, 0x45, 0x38, 0x50, 0x90}
)

// ParseBZIP2 decodes a bzip2 stream to find where it ends.
func ParseBZIP2(data []byte, offset int) (Match, error) {
	hdr := data[offset:min(len(data), offset+10)]
	if len(hdr) < 10 || hdr[3] < '1' || hdr[3] > '9' {
		return Match{}, fmt.Errorf("bzip2: invalid block size")
	}
	if !bytes.Equal(hdr[4:], bzip2BlockMagic) && !bytes.Equal(hdr[4:], bzip2EndMagic) {
		return Match{}, fmt.Errorf("bzip2: missing block magic")
	}

	src := &byteCounter{data: data[offset:]}
	decoded, complete, err := drain(bzip2.NewReader(src))

	consumed := src.pos
	truncated := false
	if err != nil {
		// Data following the stream is reported as a bad continuation:
		// the two bytes read to look for another "BZ" header are not ours.
		var serr bzip2.StructuralError
		switch {
		case src.endsEarly(err):
			truncated = true
		case errors.As(err, &serr) && string(serr) == "bad magic value in continuation file":
			consumed -= 2
			complete = true
		default:
			return Match{}, fmt.Errorf("bzip2: %w", err)
		}
	}

	desc := fmt.Sprintf("bzip2 compressed data, block size = %dk", hdr[3]-'0')
	if truncated || !complete {
		suffix := ", truncated"
		if !truncated {
			suffix = ", truncated scan"
		}
		return Match{
			Size:        uint64(len(data) - offset),
			Confidence:  partialConfidence(decoded),
			Description: desc + suffix,
		}, nil
	}

	return Match{
		Size:        uint64(consumed),
		Confidence:  ConfidenceHigh,
		Description: fmt.Sprintf("%s, decompressed size: %d", desc, decoded),
	}, nil
}
