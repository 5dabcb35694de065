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

const SQLiteSignature = "SQLite format 3\x00"

// ParseSQLite reads the 100-byte database header and derives the database
// size from the in-header page count.
// See https://www.sqlite.org/fileformat2.html#the_database_header.
func ParseSQLite(data []byte, offset int) (Match, error) {
	r := NewReader(data[offset:])

	var hdr [100]byte
	if _, err := r.Read(hdr[:]); err != nil {
		return Match{}, fmt.Errorf("failed to read SQLite header: %w", err)
	}
	if !bytes.Equal(hdr[:len(SQLiteSignature)], []byte(SQLiteSignature)) {
		return Match{}, fmt.Errorf("invalid SQLite magic header")
	}

	pageSize := int(binary.BigEndian.Uint16(hdr[16:18]))
	if pageSize == 1 {
		pageSize = 65536
	}
	if !isPowerOfTwo(uint32(pageSize)) || pageSize < 512 || pageSize > 65536 {
		return Match{}, fmt.Errorf("invalid SQLite page size: %d", pageSize)
	}

	// Payload fractions are fixed by the file format.
	if hdr[21] != 64 || hdr[22] != 32 || hdr[23] != 32 {
		return Match{}, fmt.Errorf("invalid SQLite payload fractions")
	}

	fileChangeCounter := binary.BigEndian.Uint32(hdr[24:28])
	pages := binary.BigEndian.Uint32(hdr[28:32])
	versionValidFor := binary.BigEndian.Uint32(hdr[92:96])

	// The in-header page count is only valid when the version-valid-for
	// number matches the change counter.
	if pages == 0 || fileChangeCounter != versionValidFor {
		return Match{}, fmt.Errorf("could not determine SQLite database size")
	}

	return Match{
		Size:        uint64(pages) * uint64(pageSize),
		Confidence:  ConfidenceHigh,
		Description: fmt.Sprintf("SQLite 3.x database, page size %d, %d page(s)", pageSize, pages),
	}, nil
}

func isPowerOfTwo(x uint32) bool {
	return x != 0 && (x&(x-1)) == 0
}
