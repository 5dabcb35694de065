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

// fmtChunkMinSize is the size of a PCM 'fmt ' sub-chunk.
const fmtChunkMinSize = 16

// ParseWAV walks the sub-chunks of a RIFF/WAVE file, requiring a 'fmt '
// chunk before the 'data' chunk. The size is the one declared by RIFF.
func ParseWAV(data []byte, offset int) (Match, error) {
	r := NewReader(data[offset:])

	var hdr [12]byte
	if _, err := r.Read(hdr[:]); err != nil {
		return Match{}, fmt.Errorf("failed to read RIFF chunk header: %w", err)
	}
	if string(hdr[0:4]) != "RIFF" {
		return Match{}, fmt.Errorf("missing RIFF signature")
	}
	if string(hdr[8:12]) != "WAVE" {
		return Match{}, fmt.Errorf("missing WAVE format identifier")
	}

	// The RIFF size excludes the chunk ID and size fields.
	total := uint64(binary.LittleEndian.Uint32(hdr[4:8])) + 8

	var (
		channels, bits uint16
		rate           uint32
		fmtSeen        bool
	)
	for r.BytesRead() < total {
		var chunk [8]byte
		if _, err := r.Read(chunk[:]); err != nil {
			return Match{}, fmt.Errorf("failed to read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < fmtChunkMinSize {
				return Match{}, fmt.Errorf("short 'fmt ' chunk (%d)", size)
			}
			body, err := r.Peek(fmtChunkMinSize)
			if err != nil {
				return Match{}, err
			}
			channels = binary.LittleEndian.Uint16(body[2:4])
			rate = binary.LittleEndian.Uint32(body[4:8])
			bits = binary.LittleEndian.Uint16(body[14:16])
			if channels == 0 || rate == 0 {
				return Match{}, fmt.Errorf("invalid 'fmt ' chunk")
			}
			fmtSeen = true
		case "data":
			if !fmtSeen {
				return Match{}, fmt.Errorf("'data' chunk before 'fmt ' chunk")
			}
			if uint64(size)+r.BytesRead() > total {
				return Match{}, fmt.Errorf("'data' chunk exceeds RIFF size")
			}
			return Match{
				Size:        total,
				Confidence:  ConfidenceHigh,
				Description: fmt.Sprintf("RIFF (little-endian) data, WAVE audio, %d channel(s), %d Hz, %d bit", channels, rate, bits),
			}, nil
		}

		// Chunks are word aligned.
		skip := int(size) + int(size&1)
		if _, err := r.Discard(skip); err != nil {
			return Match{}, err
		}
	}
	return Match{}, fmt.Errorf("missing 'data' sub-chunk")
}
