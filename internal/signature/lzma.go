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
	"encoding/binary"
	"fmt"

	"github.com/ulikunitz/xz/lzma"
)

const lzmaHeaderSize = 13

// ParseLZMA checks the properties of an LZMA-alone header and decodes the
// stream to find where it ends.
func ParseLZMA(data []byte, offset int) (Match, error) {
	hdr := data[offset:min(len(data), offset+lzmaHeaderSize)]
	if len(hdr) < lzmaHeaderSize {
		return Match{}, fmt.Errorf("lzma: short header")
	}

	// lc + lp*9 + pb*45, with lc <= 8, lp <= 4 and pb <= 4.
	if hdr[0] >= 9*5*5 {
		return Match{}, fmt.Errorf("lzma: invalid properties 0x%02x", hdr[0])
	}

	dictSize := binary.LittleEndian.Uint32(hdr[1:5])
	if dictSize < 1<<12 || dictSize > 1<<30 || !isPowerOfTwo(dictSize) {
		return Match{}, fmt.Errorf("lzma: unusual dictionary size %d", dictSize)
	}

	size := binary.LittleEndian.Uint64(hdr[5:13])
	knownSize := size != ^uint64(0)
	if knownSize && size >= 1<<38 {
		return Match{}, fmt.Errorf("lzma: implausible uncompressed size %d", size)
	}

	src := &byteCounter{data: data[offset:]}
	zr, err := lzma.NewReader(src)
	if err != nil {
		return Match{}, fmt.Errorf("lzma: %w", err)
	}

	decoded, complete, err := drain(zr)
	truncated := err != nil && src.endsEarly(err)
	if err != nil && !truncated {
		return Match{}, fmt.Errorf("lzma: %w", err)
	}

	desc := fmt.Sprintf("LZMA compressed data, properties: 0x%02X, dictionary size: %d bytes", hdr[0], dictSize)
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

	// Tiny outputs are too easily produced from garbage.
	return Match{
		Size:        uint64(src.pos),
		Confidence:  partialConfidence(decoded),
		Description: fmt.Sprintf("%s, uncompressed size: %d bytes", desc, decoded),
	}, nil
}
