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

const (
	tiffHeaderLittle = "\x49\x49\x2A\x00"
	tiffHeaderBig    = "\x4D\x4D\x00\x2A"
)

// ParseTIFF follows the IFD chain. The reported size ends at the last IFD,
// which is a lower bound of the file size.
func ParseTIFF(data []byte, offset int) (Match, error) {
	const tiffHeaderSize = 8

	r := NewReader(data[offset:])

	header, err := r.Peek(tiffHeaderSize)
	if err != nil {
		return Match{}, fmt.Errorf("not enough data for TIFF header: %w", err)
	}

	var (
		byteOrder binary.ByteOrder
		endian    string
	)
	switch string(header[0:2]) {
	case "II":
		byteOrder, endian = binary.LittleEndian, "little-endian"
	case "MM":
		byteOrder, endian = binary.BigEndian, "big-endian"
	default:
		return Match{}, fmt.Errorf("invalid endian marker: %x", header[0:2])
	}

	if magic := byteOrder.Uint16(header[2:4]); magic != 42 {
		return Match{}, fmt.Errorf("invalid TIFF magic number: 0x%04x", magic)
	}

	firstIFDOffset := byteOrder.Uint32(header[4:8])
	if firstIFDOffset < tiffHeaderSize {
		return Match{}, fmt.Errorf("invalid IFD offset: %d", firstIFDOffset)
	}

	_, _ = r.Discard(tiffHeaderSize)
	if _, err := r.Discard(int(firstIFDOffset - tiffHeaderSize)); err != nil {
		return Match{}, fmt.Errorf("failed to reach first IFD at offset %d", firstIFDOffset)
	}

	ifds := 0
	for {
		var buf [4]byte

		if _, err := r.Read(buf[:2]); err != nil {
			return Match{}, fmt.Errorf("failed to read IFD entry count: %w", err)
		}
		entryCount := byteOrder.Uint16(buf[:])
		if entryCount == 0 {
			return Match{}, fmt.Errorf("empty IFD")
		}

		// Each entry is 12 bytes.
		if _, err := r.Discard(int(entryCount) * 12); err != nil {
			return Match{}, fmt.Errorf("failed to skip IFD entries: %w", err)
		}

		if _, err := r.Read(buf[:]); err != nil {
			return Match{}, fmt.Errorf("failed to read next IFD offset: %w", err)
		}
		nextOffset := byteOrder.Uint32(buf[:])
		ifds++

		if nextOffset == 0 {
			break
		}

		skip := int64(nextOffset) - int64(r.BytesRead())
		if skip < 0 {
			return Match{}, fmt.Errorf("invalid backward IFD pointer")
		}
		if _, err := r.Discard(int(skip)); err != nil {
			return Match{}, fmt.Errorf("failed to skip to next IFD: %w", err)
		}
	}

	return Match{
		Size:        r.BytesRead(),
		Confidence:  ConfidenceMedium,
		Description: fmt.Sprintf("TIFF image data, %s, %d IFD(s)", endian, ifds),
	}, nil
}
