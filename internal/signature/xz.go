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
	"hash/crc32"
)

const (
	xzHeaderSize = 12
	xzFooterSize = 12
)

var xzFooterMagic = []byte("YZ")

// ParseXZ validates the stream header and looks for the matching stream
// footer, whose CRC covers the backward size and the stream flags.
func ParseXZ(data []byte, offset int) (Match, error) {
	buf := data[offset:]
	if len(buf) < xzHeaderSize+xzFooterSize {
		return Match{}, fmt.Errorf("xz: stream too short")
	}

	flags := buf[6:8]
	if flags[0] != 0 || flags[1]&0xF0 != 0 {
		return Match{}, fmt.Errorf("xz: invalid stream flags")
	}
	if crc32.ChecksumIEEE(flags) != binary.LittleEndian.Uint32(buf[8:12]) {
		return Match{}, fmt.Errorf("xz: stream header CRC mismatch")
	}

	pos := xzHeaderSize + xzFooterSize - len(xzFooterMagic)
	for pos < len(buf) {
		idx := bytes.Index(buf[pos:], xzFooterMagic)
		if idx < 0 {
			break
		}
		end := pos + idx + len(xzFooterMagic)
		pos = end - 1

		footer := buf[end-xzFooterSize : end]
		if !bytes.Equal(footer[8:10], flags) {
			continue
		}
		if crc32.ChecksumIEEE(footer[4:10]) != binary.LittleEndian.Uint32(footer[0:4]) {
			continue
		}
		// The stream size is a multiple of four.
		if end%4 != 0 {
			continue
		}

		return Match{
			Size:        uint64(end),
			Confidence:  ConfidenceHigh,
			Description: fmt.Sprintf("XZ compressed data, checksum type: %s", xzCheckName(flags[1])),
		}, nil
	}
	return Match{}, fmt.Errorf("xz: stream footer not found")
}

func xzCheckName(check byte) string {
	switch check {
	case 0x00:
		return "none"
	case 0x01:
		return "CRC32"
	case 0x04:
		return "CRC64"
	case 0x0A:
		return "SHA256"
	}
	return fmt.Sprintf("0x%02x", check)
}
