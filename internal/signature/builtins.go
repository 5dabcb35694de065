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
	"github.com/ostafen/binwalk/internal/extractor"
)

func carver(ext string) *extractor.Extractor {
	return &extractor.Extractor{
		Utility:      extractor.Internal(extractor.DecoderCarve),
		Extension:    ext,
		DoNotRecurse: true,
	}
}

func decoder(id string) *extractor.Extractor {
	return &extractor.Extractor{
		Utility: extractor.Internal(id),
	}
}

// Builtins returns the built-in signatures in table order. Every call returns
// fresh values, so callers may not affect each other.
func Builtins() []*Signature {
	sigs := []*Signature{
		{
			Name:        "png",
			Description: "PNG image",
			Magic:       [][]byte{[]byte(pngHeader)},
			Extractor:   carver("png"),
			Parse:       ParsePNG,
		},
		{
			Name:        "jpeg",
			Description: "JPEG image",
			Magic:       [][]byte{{0xFF, 0xD8, 0xFF}},
			Extractor:   carver("jpg"),
			Parse:       ParseJPEG,
		},
		{
			Name:        "gif",
			Description: "GIF image",
			Magic:       [][]byte{[]byte("GIF87a"), []byte("GIF89a")},
			Extractor:   carver("gif"),
			Parse:       ParseGIF,
		},
		{
			Name:        "bmp",
			Description: "PC bitmap",
			Magic:       [][]byte{[]byte("BM")},
			Extractor:   carver("bmp"),
			Parse:       ParseBMP,
		},
		{
			Name:        "tiff",
			Description: "TIFF image",
			Magic:       [][]byte{[]byte(tiffHeaderLittle), []byte(tiffHeaderBig)},
			Extractor:   carver("tif"),
			Parse:       ParseTIFF,
		},
		{
			Name:        "pdf",
			Description: "PDF document",
			Magic:       [][]byte{[]byte("%PDF-")},
			Extractor:   carver("pdf"),
			Parse:       ParsePDF,
		},
		{
			Name:        "zip",
			Description: "ZIP archive",
			Magic:       [][]byte{{'P', 'K', 0x03, 0x04}, {'P', 'K', '0', '0', 'P', 'K', 0x03, 0x04}},
			Extractor:   decoder(extractor.DecoderZip),
			Parse:       ParseZIP,
		},
		{
			Name:        "rar",
			Description: "RAR archive",
			Magic:       [][]byte{Rar15Signature},
			Extractor: &extractor.Extractor{
				Utility:   extractor.External("unrar"),
				Extension: "rar",
				Arguments: []string{"x", "-y", "-o+", "-p-", extractor.SourcePlaceholder, extractor.OutputPlaceholder + "/"},
				ExitCodes: []int{0},
			},
			Parse: ParseRAR,
		},
		{
			Name:        "sqlite",
			Description: "SQLite 3.x database",
			Magic:       [][]byte{[]byte(SQLiteSignature)},
			Extractor:   carver("sqlite"),
			Parse:       ParseSQLite,
		},
		{
			Name:        "wav",
			Description: "WAVE audio",
			Magic:       [][]byte{[]byte("RIFF")},
			Extractor:   carver("wav"),
			Parse:       ParseWAV,
		},
		{
			Name:        "gzip",
			Description: "gzip compressed data",
			Magic:       [][]byte{{0x1F, 0x8B, 0x08}},
			Extractor:   decoder(extractor.DecoderGzip),
			Parse:       ParseGZIP,
		},
		{
			Name:        "bzip2",
			Description: "bzip2 compressed data",
			Magic:       [][]byte{[]byte("BZh")},
			Extractor:   decoder(extractor.DecoderBzip2),
			Parse:       ParseBZIP2,
		},
		{
			Name:        "xz",
			Description: "XZ compressed data",
			Magic:       [][]byte{{0xFD, '7', 'z', 'X', 'Z', 0x00}},
			Extractor:   decoder(extractor.DecoderXz),
			Parse:       ParseXZ,
		},
		{
			Name:        "lzma",
			Description: "LZMA compressed data",
			Magic:       [][]byte{{0x5D, 0x00, 0x00}},
			Extractor:   decoder(extractor.DecoderLzma),
			Parse:       ParseLZMA,
		},
		{
			Name:        "zstd",
			Description: "Zstandard compressed data",
			Magic:       [][]byte{{0x28, 0xB5, 0x2F, 0xFD}},
			Extractor:   decoder(extractor.DecoderZstd),
			Parse:       ParseZSTD,
		},
		{
			Name:          "elf",
			Description:   "ELF binary",
			Magic:         [][]byte{{0x7F, 'E', 'L', 'F'}},
			AlwaysDisplay: true,
			Extractor:     &extractor.Extractor{Utility: extractor.None()},
			Parse:         ParseELF,
		},
		{
			Name:        "tar",
			Description: "POSIX tar archive",
			Magic:       [][]byte{[]byte("ustar")},
			MagicOffset: tarMagicOffset,
			Extractor:   decoder(extractor.DecoderTar),
			Parse:       ParseTAR,
		},
		{
			Name:        "cpio",
			Description: "ASCII cpio archive",
			Magic:       [][]byte{[]byte("070701"), []byte("070702")},
			Extractor:   decoder(extractor.DecoderCpio),
			Parse:       ParseCPIO,
		},
	}

	for _, sig := range sigs {
		sig.Short = isShort(sig.Magic)
	}
	return sigs
}

// isShort reports whether every magic of a signature is at most three bytes.
func isShort(magic [][]byte) bool {
	for _, m := range magic {
		if len(m) > 3 {
			return false
		}
	}
	return true
}

// DefaultTable returns the table of built-in signatures.
func DefaultTable() *Table {
	t, err := NewTable(Builtins())
	if err != nil {
		panic(err)
	}
	return t
}
