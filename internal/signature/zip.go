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
	"io"
	"math"
)

var ErrInvalidZip = errors.New("invalid zip file")

const (
	// ZipSignature4 is the local file header signature ['P', 'K', 0x03, 0x04].
	ZipSignature4 uint32 = 0x04034B50
	// ZipSignature8 marks WinZIPv8-compressed files ['P', 'K', '0', '0', 'P', 'K', 0x03, 0x04].
	ZipSignature8 uint64 = 0x04034B5030304B50

	ZipCentralDirHeader    uint32 = 0x02014B50
	ZipFileEntryHeader     uint32 = 0x04034B50
	ZipEndCentralDirHeader uint32 = 0x06054B50

	// ZipFileEntrySize is the size of the fixed part of a local file header,
	// signature excluded.
	ZipFileEntrySize = 26

	// zipMaxCentralDirSearch bounds the search of the end of central
	// directory record past the first central directory header.
	zipMaxCentralDirSearch = 66 * 1024

	zipFlagEncrypted      = 0x0001
	zipFlagDataDescriptor = 0x0008
)

var (
	zipDescriptorSignature = []byte{0x50, 0x4B, 0x07, 0x08}
	zipEOCDSignature       = []byte{0x50, 0x4B, 0x05, 0x06}
)

// ZipFileEntry is the fixed-size portion of a local file header.
type ZipFileEntry struct {
	Version          uint16
	Flags            uint16
	Compression      uint16
	LastModTime      uint16
	LastModDate      uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	FilenameLength   uint16
	ExtraLength      uint16
}

type zipDecoder struct {
	entries   int
	encrypted bool
	// headerSeen is set once a local file header has been read in full.
	headerSeen bool

	contentTypesSeen    bool
	relsSeen            bool
	wordDocumentSeen    bool
	pptPresentationSeen bool
	xlWorkbookSeen      bool
	jarManifestSeen     bool
}

// ParseZIP walks the local file entries up to the central directory, then
// locates the end of central directory record to size the archive. Once a
// local file header has been read, an archive running past the end of the
// data is sized to the end of the data.
func ParseZIP(data []byte, offset int) (Match, error) {
	var dec zipDecoder

	r := NewReader(data[offset:])
	if err := dec.readHeader(r); err != nil {
		return Match{}, err
	}

	fail := func(err error) (Match, error) {
		if !dec.headerSeen || !(errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
			return Match{}, err
		}
		return Match{
			Size:               uint64(len(data) - offset),
			Confidence:         ConfidenceMedium,
			Description:        dec.describe() + ", truncated",
			ExtractionDeclined: dec.encrypted,
		}, nil
	}

	var hdrBuf [4]byte
	for {
		if _, err := r.Read(hdrBuf[:]); err != nil {
			return fail(err)
		}

		switch hdr := binary.LittleEndian.Uint32(hdrBuf[:]); hdr {
		case ZipFileEntryHeader:
			if err := dec.parseZipFileEntry(r); err != nil {
				return fail(err)
			}
			dec.entries++
		case ZipCentralDirHeader:
			if dec.entries == 0 {
				return Match{}, fmt.Errorf("%w: zip file doesn't contain any file", ErrInvalidZip)
			}
			size, err := dec.parseZipCentralDir(r)
			if err != nil {
				return fail(err)
			}
			return Match{
				Size:               size,
				Confidence:         ConfidenceHigh,
				Description:        dec.describe(),
				ExtractionDeclined: dec.encrypted,
			}, nil
		default:
			return Match{}, ErrInvalidZip
		}
	}
}

func (dec *zipDecoder) readHeader(r *Reader) error {
	buf, err := r.Peek(8)
	if err != nil && len(buf) < 4 {
		return fmt.Errorf("%w: invalid signature", ErrInvalidZip)
	}

	if binary.LittleEndian.Uint32(buf[:4]) == ZipSignature4 {
		return nil
	}
	if len(buf) == 8 && binary.LittleEndian.Uint64(buf) == ZipSignature8 {
		// Skip the WinZIPv8 "PK00" prefix.
		_, err := r.Discard(4)
		return err
	}
	return fmt.Errorf("%w: invalid signature", ErrInvalidZip)
}

// parseZipFileEntry parses a local file entry, its file name and extra field,
// and skips its data, following the data descriptor when sizes are deferred.
func (dec *zipDecoder) parseZipFileEntry(r *Reader) error {
	var entry ZipFileEntry
	if err := binary.Read(r, binary.LittleEndian, &entry); err != nil {
		return err
	}
	dec.headerSeen = true

	name, err := r.Peek(int(entry.FilenameLength))
	if err != nil {
		return err
	}
	dec.processFileName(string(name))
	_, _ = r.Discard(len(name))

	if _, err := r.Discard(int(entry.ExtraLength)); err != nil {
		return err
	}

	if entry.Flags&zipFlagEncrypted != 0 {
		dec.encrypted = true
	}

	size := entry.UncompressedSize
	if entry.Compression != 0 {
		size = entry.CompressedSize
	}

	hasDesc := entry.Flags&zipFlagDataDescriptor != 0
	if hasDesc && size != 0 {
		return fmt.Errorf("%w: unexpected data descriptor bit set", ErrInvalidZip)
	}

	if hasDesc {
		return seekToZIPDescriptor(r)
	}
	_, err = r.Discard(int(size))
	return err
}

// seekToZIPDescriptor skips entry data up to the data descriptor and consumes it.
func seekToZIPDescriptor(r *Reader) error {
	if !SeekAt(r, zipDescriptorSignature, math.MaxUint32) {
		// The search covers the rest of the data.
		return fmt.Errorf("zip: entry descriptor not found: %w", io.ErrUnexpectedEOF)
	}

	// Signature, CRC-32, compressed size and uncompressed size.
	var descBuf [16]byte
	if _, err := r.Read(descBuf[:]); err != nil {
		return err
	}
	if !bytes.Equal(descBuf[:4], zipDescriptorSignature) {
		return fmt.Errorf("%w: unable to seek at the beginning of a zip descriptor", ErrInvalidZip)
	}
	return nil
}

// parseZipCentralDir locates the end of central directory record and returns
// the archive size, comment included.
func (dec *zipDecoder) parseZipCentralDir(r *Reader) (uint64, error) {
	if !SeekAt(r, zipEOCDSignature, zipMaxCentralDirSearch) {
		if r.Remaining() <= zipMaxCentralDirSearch+len(zipEOCDSignature) {
			return 0, fmt.Errorf("zip: end of central directory not found: %w", io.ErrUnexpectedEOF)
		}
		return 0, fmt.Errorf("%w: unable to locate end of central directory", ErrInvalidZip)
	}

	// The EOCD record is 22 bytes long, signature included.
	var buf [22]byte
	if _, err := r.Read(buf[:]); err != nil {
		return 0, err
	}

	commentLen := binary.LittleEndian.Uint16(buf[20:])
	return r.BytesRead() + uint64(commentLen), nil
}

func (dec *zipDecoder) processFileName(name string) {
	switch name {
	case "[Content_Types].xml":
		dec.contentTypesSeen = true
	case "_rels/.rels":
		dec.relsSeen = true
	case "word/document.xml":
		dec.wordDocumentSeen = true
	case "ppt/presentation.xml":
		dec.pptPresentationSeen = true
	case "xl/workbook.xml":
		dec.xlWorkbookSeen = true
	case "META-INF/MANIFEST.MF":
		dec.jarManifestSeen = true
	}
}

func (dec *zipDecoder) describe() string {
	isOfficeDocType := dec.contentTypesSeen && dec.relsSeen

	var kind string
	switch {
	case isOfficeDocType && dec.wordDocumentSeen:
		kind = "Microsoft Word 2007+ document (zip)"
	case isOfficeDocType && dec.pptPresentationSeen:
		kind = "Microsoft PowerPoint 2007+ presentation (zip)"
	case isOfficeDocType && dec.xlWorkbookSeen:
		kind = "Microsoft Excel 2007+ workbook (zip)"
	case dec.jarManifestSeen:
		kind = "Java archive (zip)"
	default:
		kind = "Zip archive data"
	}

	desc := fmt.Sprintf("%s, %d file entries", kind, dec.entries)
	if dec.encrypted {
		desc += ", encrypted"
	}
	return desc
}
