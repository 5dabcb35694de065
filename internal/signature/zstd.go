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
)

const zstdMaxBlockSize = 128 << 10

// ParseZSTD walks a Zstandard frame: header, blocks up to the last one and
// the optional content checksum. Block contents are not decoded.
// A frame cut short is sized to the end of the data.
func ParseZSTD(data []byte, offset int) (Match, error) {
	r := NewReader(data[offset:])

	var magic [4]byte
	if _, err := r.Read(magic[:]); err != nil {
		return Match{}, err
	}

	fhd, err := r.ReadByte()
	if err != nil {
		return Match{}, err
	}
	if fhd&0x08 != 0 {
		return Match{}, fmt.Errorf("zstd: reserved frame header bit set")
	}

	singleSegment := fhd&0x20 != 0
	hasChecksum := fhd&0x04 != 0
	dictIDSize := [4]int{0, 1, 2, 4}[fhd&0x03]
	fcsSize := [4]int{0, 2, 4, 8}[fhd>>6]
	if fcsSize == 0 && singleSegment {
		fcsSize = 1
	}

	var (
		contentSize uint64
		haveSize    bool
	)
	describe := func(blocks int) string {
		desc := fmt.Sprintf("Zstandard compressed data, %d block(s)", blocks)
		if haveSize {
			desc += fmt.Sprintf(", content size: %d", contentSize)
		}
		return desc
	}

	// Past the frame header descriptor, running out of data means the frame
	// was cut short: it is sized to the end of the data.
	truncated := func(blocks int) (Match, error) {
		return Match{
			Size:        uint64(len(data) - offset),
			Confidence:  ConfidenceMedium,
			Description: describe(blocks) + ", truncated",
		}, nil
	}

	if !singleSegment {
		// Window descriptor.
		if _, err := r.Discard(1); err != nil {
			return truncated(0)
		}
	}
	if _, err := r.Discard(dictIDSize); err != nil {
		return truncated(0)
	}

	fcs, err := r.Peek(fcsSize)
	if err != nil {
		return truncated(0)
	}
	switch fcsSize {
	case 1:
		contentSize = uint64(fcs[0])
	case 2:
		contentSize = uint64(binary.LittleEndian.Uint16(fcs)) + 256
	case 4:
		contentSize = uint64(binary.LittleEndian.Uint32(fcs))
	case 8:
		contentSize = binary.LittleEndian.Uint64(fcs)
	}
	haveSize = fcsSize > 0
	_, _ = r.Discard(fcsSize)

	blocks := 0
	for {
		var hdr [4]byte
		if _, err := r.Read(hdr[:3]); err != nil {
			return truncated(blocks)
		}
		bh := binary.LittleEndian.Uint32(hdr[:])
		last := bh&1 != 0
		blockType := (bh >> 1) & 0x03
		blockSize := int(bh >> 3)

		switch blockType {
		case 0, 2: // raw, compressed
			if blockSize > zstdMaxBlockSize {
				return Match{}, fmt.Errorf("zstd: block too large (%d)", blockSize)
			}
		case 1: // RLE
			blockSize = 1
		default:
			return Match{}, fmt.Errorf("zstd: reserved block type")
		}

		blocks++
		if _, err := r.Discard(blockSize); err != nil {
			return truncated(blocks)
		}

		if last {
			break
		}
	}

	if hasChecksum {
		if _, err := r.Discard(4); err != nil {
			return truncated(blocks)
		}
	}

	return Match{
		Size:        r.BytesRead(),
		Confidence:  ConfidenceHigh,
		Description: describe(blocks),
	}, nil
}
