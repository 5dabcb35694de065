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

// Package cpio parses SVR4 "newc" cpio headers.
package cpio

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	HeaderSize  = 110
	Trailer     = "TRAILER!!!"
	MaxNameSize = 4096
)

const (
	ModeTypeMask = 0o170000
	ModeDir      = 0o040000
	ModeRegular  = 0o100000
	ModeSymlink  = 0o120000
)

var ErrInvalidHeader = errors.New("invalid cpio header")

// Entry is a parsed header.
type Entry struct {
	Name     string
	Mode     uint32
	FileSize uint32
	// HeaderSize covers the fixed header and the name, padded to four bytes.
	HeaderSize int
	// DataSize is the file size padded to four bytes.
	DataSize int
}

func (e Entry) IsTrailer() bool {
	return e.Name == Trailer
}

// ParseHeader parses the header at the start of buf.
func ParseHeader(buf []byte) (Entry, error) {
	if len(buf) < HeaderSize {
		return Entry{}, fmt.Errorf("%w: short header", ErrInvalidHeader)
	}
	if magic := string(buf[:6]); magic != "070701" && magic != "070702" {
		return Entry{}, fmt.Errorf("%w: magic %q", ErrInvalidHeader, magic)
	}

	// Thirteen 8-digit hex fields follow the magic.
	field := func(i int) (uint32, error) {
		start := 6 + i*8
		v, err := strconv.ParseUint(string(buf[start:start+8]), 16, 32)
		if err != nil {
			return 0, fmt.Errorf("%w: field %d: %s", ErrInvalidHeader, i, err)
		}
		return uint32(v), nil
	}

	mode, err := field(1)
	if err != nil {
		return Entry{}, err
	}
	fileSize, err := field(6)
	if err != nil {
		return Entry{}, err
	}
	nameSize, err := field(11)
	if err != nil {
		return Entry{}, err
	}
	if nameSize == 0 || nameSize > MaxNameSize {
		return Entry{}, fmt.Errorf("%w: name size %d", ErrInvalidHeader, nameSize)
	}

	end := HeaderSize + int(nameSize)
	if end > len(buf) {
		return Entry{}, fmt.Errorf("%w: truncated name", ErrInvalidHeader)
	}
	if buf[end-1] != 0 {
		return Entry{}, fmt.Errorf("%w: unterminated name", ErrInvalidHeader)
	}

	return Entry{
		Name:       string(buf[HeaderSize : end-1]),
		Mode:       mode,
		FileSize:   fileSize,
		HeaderSize: Align4(end),
		DataSize:   Align4(int(fileSize)),
	}, nil
}

func Align4(n int) int {
	return (n + 3) &^ 3
}
