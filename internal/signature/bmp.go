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
	"errors"
	"fmt"
)

// BMP Compression Types
const (
	BI_RGB            = 0
	BI_RLE8           = 1
	BI_RLE4           = 2
	BI_BITFIELDS      = 3
	BI_JPEG           = 4
	BI_PNG            = 5
	BI_ALPHABITFIELDS = 6
	BI_CMYK           = 11
	BI_CMYKRLE8       = 12
	BI_CMYKRLE4       = 13
)

// BMPHeader represents the BITMAPFILEHEADER structure of a BMP file.
type BMPHeader struct {
	Signature  [2]byte // BM
	FileSize   uint32  // Size of the BMP file in bytes
	Reserved1  uint16  // Must be 0
	Reserved2  uint16  // Must be 0
	DataOffset uint32  // Offset to the start of the bitmap data
}

// DIBHeader is the BITMAPINFOHEADER layout. Larger headers (V4, V5) start
// with the same fields.
type DIBHeader struct {
	HeaderSize      uint32
	Width           int32
	Height          int32 // negative for top-down bitmaps
	Planes          uint16
	BitsPerPixel    uint16
	Compression     uint32
	ImageSize       uint32 // may be 0 for BI_RGB
	XPixelsPerMeter int32
	YPixelsPerMeter int32
	ColorsUsed      uint32
	ColorsImportant uint32
}

// ParseBMP validates the file and DIB headers. The two-byte magic is weak,
// so the header fields are cross-checked before trusting FileSize.
func ParseBMP(data []byte, offset int) (Match, error) {
	r := NewReader(data[offset:])

	var bmpHeader BMPHeader
	if err := binary.Read(r, binary.LittleEndian, &bmpHeader); err != nil {
		return Match{}, fmt.Errorf("failed to read BMP file header: %w", err)
	}

	if bmpHeader.Signature[0] != 'B' || bmpHeader.Signature[1] != 'M' {
		return Match{}, errors.New("invalid BMP signature: expected 'BM'")
	}
	if bmpHeader.Reserved1 != 0 || bmpHeader.Reserved2 != 0 {
		return Match{}, errors.New("invalid BMP header: reserved fields are not zero")
	}
	if bmpHeader.FileSize < 14+40 {
		return Match{}, errors.New("invalid BMP header: file size too small to contain basic headers")
	}

	sizeBuf, err := r.Peek(4)
	if err != nil {
		return Match{}, fmt.Errorf("failed to read DIB header size: %w", err)
	}

	// BITMAPCOREHEADER (12) has a different layout and is not accepted.
	var dibHeader DIBHeader
	switch hdrSize := binary.LittleEndian.Uint32(sizeBuf); hdrSize {
	case 40, 52, 56, 64, 108, 124:
		buf, err := r.Peek(int(hdrSize))
		if err != nil {
			return Match{}, fmt.Errorf("incomplete DIB header: %w", err)
		}
		if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &dibHeader); err != nil {
			return Match{}, fmt.Errorf("failed to parse DIB header: %w", err)
		}
	default:
		return Match{}, fmt.Errorf("unsupported DIB header size: %d", hdrSize)
	}

	if dibHeader.Planes != 1 {
		return Match{}, errors.New("invalid DIB header: number of planes must be 1")
	}

	switch dibHeader.BitsPerPixel {
	case 1, 4, 8, 16, 24, 32:
	default:
		return Match{}, fmt.Errorf("unsupported bits per pixel: %d", dibHeader.BitsPerPixel)
	}

	switch dibHeader.Compression {
	case BI_RGB, BI_RLE8, BI_RLE4, BI_BITFIELDS, BI_JPEG, BI_PNG,
		BI_ALPHABITFIELDS, BI_CMYK, BI_CMYKRLE8, BI_CMYKRLE4:
	default:
		return Match{}, fmt.Errorf("unrecognized BMP compression type: %d", dibHeader.Compression)
	}

	if dibHeader.Width <= 0 || dibHeader.Height == 0 || dibHeader.Height == -1<<31 {
		return Match{}, errors.New("invalid DIB header: image dimensions are invalid")
	}

	// The pixel array follows the headers and the optional palette.
	expectedMinDataOffset := uint64(14) + uint64(dibHeader.HeaderSize)
	if dibHeader.BitsPerPixel <= 8 {
		colors := uint64(dibHeader.ColorsUsed)
		if colors == 0 {
			colors = 1 << dibHeader.BitsPerPixel
		}
		expectedMinDataOffset += colors * 4
	}
	if uint64(bmpHeader.DataOffset) < expectedMinDataOffset {
		return Match{}, fmt.Errorf("invalid BMP header: data offset (%d) is less than expected minimum (%d)", bmpHeader.DataOffset, expectedMinDataOffset)
	}

	// Rows are padded to a 4-byte boundary.
	rowSize := (uint64(dibHeader.Width)*uint64(dibHeader.BitsPerPixel) + 31) / 32 * 4

	absHeight := int64(dibHeader.Height)
	if absHeight < 0 {
		absHeight = -absHeight
	}
	expectedImageDataSize := rowSize * uint64(absHeight)

	imageDataSize := uint64(dibHeader.ImageSize)
	if dibHeader.Compression == BI_RGB {
		if imageDataSize != 0 && imageDataSize < expectedImageDataSize {
			return Match{}, fmt.Errorf("invalid DIB header: image size (%d) is less than calculated minimum (%d)", dibHeader.ImageSize, expectedImageDataSize)
		}
		imageDataSize = expectedImageDataSize
	}

	if expectedTotalSize := uint64(bmpHeader.DataOffset) + imageDataSize; uint64(bmpHeader.FileSize) < expectedTotalSize {
		return Match{}, fmt.Errorf("inconsistent file size: header states %d, expected at least %d", bmpHeader.FileSize, expectedTotalSize)
	}

	confidence := ConfidenceLow
	if uint64(bmpHeader.FileSize) <= uint64(len(data)-offset) {
		confidence = ConfidenceMedium
	}

	return Match{
		Size:        uint64(bmpHeader.FileSize),
		Confidence:  confidence,
		Description: fmt.Sprintf("PC bitmap, %d x %d x %d", dibHeader.Width, absHeight, dibHeader.BitsPerPixel),
	}, nil
}
