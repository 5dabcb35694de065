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
	"encoding/binary"
	"fmt"
)

var (
	Rar15Signature = []byte{0x52, 0x61, 0x72, 0x21, 0x1a, 0x07, 0x00}
	Rar50Signature = []byte{0x52, 0x61, 0x72, 0x21, 0x1a, 0x07, 0x01, 0x00}
)

const (
	rarMHDPasswordFlag  = 0x0080
	rar15ArchiveHeader  = 0x73
	rar15EndOfArchive   = 0x7B
	rar15LongBlockFlag  = 0x8000
	rar15MinBlockHeader = 7
)

// ParseRAR walks the blocks of a RAR 1.5-4.x archive up to the end of archive
// block. RAR 5 archives are recognized but only sized to the buffer end.
func ParseRAR(data []byte, offset int) (Match, error) {
	r := NewReader(data[offset:])

	if sig, _ := r.Peek(len(Rar50Signature)); bytes.Equal(sig, Rar50Signature) {
		return Match{
			Size:        uint64(len(data) - offset),
			Confidence:  ConfidenceLow,
			Description: "RAR archive data, version 5",
		}, nil
	}

	// Signature (7 bytes), then the archive header:
	// CRC-16 (2 bytes), type 0x73 (1 byte), flags (2 bytes), size (2 bytes).
	var buf [14]byte
	if _, err := r.Read(buf[:]); err != nil {
		return Match{}, err
	}
	if !bytes.Equal(buf[:7], Rar15Signature) {
		return Match{}, fmt.Errorf("invalid RAR 1.5 signature")
	}
	if buf[9] != rar15ArchiveHeader {
		return Match{}, fmt.Errorf("invalid RAR 1.5 header type: expected 0x73, got 0x%02x", buf[9])
	}

	encrypted := binary.LittleEndian.Uint16(buf[10:12])&rarMHDPasswordFlag != 0

	hdrSize := int(binary.LittleEndian.Uint16(buf[12:14]))
	if hdrSize < rar15MinBlockHeader {
		return Match{}, fmt.Errorf("invalid RAR archive header size: %d", hdrSize)
	}
	if _, err := r.Discard(hdrSize - rar15MinBlockHeader); err != nil {
		return Match{}, fmt.Errorf("error discarding RAR header: %w", err)
	}

	files := 0
	for {
		// Block header: CRC-16 (2), type (1), flags (2), size (2), then an
		// optional 4-byte data size when the long block flag is set.
		var hdrBuf [rar15MinBlockHeader]byte
		if _, err := r.Read(hdrBuf[:]); err != nil {
			return Match{}, err
		}

		hdrType := hdrBuf[2]
		flags := binary.LittleEndian.Uint16(hdrBuf[3:5])
		if hdrType < 0x72 || hdrType > rar15EndOfArchive {
			return Match{}, fmt.Errorf("invalid RAR block type 0x%02x", hdrType)
		}
		if hdrType == rar15EndOfArchive {
			blockSize := int(binary.LittleEndian.Uint16(hdrBuf[5:7]))
			if blockSize > rar15MinBlockHeader {
				if _, err := r.Discard(blockSize - rar15MinBlockHeader); err != nil {
					return Match{}, err
				}
			}
			break
		}

		blockSize := uint64(binary.LittleEndian.Uint16(hdrBuf[5:7]))
		if blockSize < rar15MinBlockHeader {
			return Match{}, fmt.Errorf("invalid RAR block size %d", blockSize)
		}

		if hdrType == 0x74 {
			files++
		}

		if flags&rar15LongBlockFlag != 0 || hdrType == 0x74 || hdrType == 0x7A {
			sizeBuf, err := r.Peek(4)
			if err != nil {
				return Match{}, err
			}
			blockSize += uint64(binary.LittleEndian.Uint32(sizeBuf))
		}

		if _, err := r.Discard(int(blockSize - rar15MinBlockHeader)); err != nil {
			return Match{}, fmt.Errorf("error discarding RAR block: %w", err)
		}
	}

	desc := fmt.Sprintf("RAR archive data, version 4, %d file(s)", files)
	if encrypted {
		desc += ", encrypted headers"
	}
	return Match{
		Size:               r.BytesRead(),
		Confidence:         ConfidenceHigh,
		Description:        desc,
		ExtractionDeclined: encrypted,
	}, nil
}
