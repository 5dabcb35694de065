package signature

import (
	"encoding/binary"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
)

var ErrChunkOrderError = fmt.Errorf("invalid PNG chunk order")

const (
	dsStart = iota
	dsSeenIHDR
	dsSeenPLTE
	dsSeentRNS
	dsSeenIDAT
	dsSeenIEND
)

const pngHeader = "\x89PNG\r\n\x1a\n"

type pngDecoder struct {
	r     *Reader
	crc   hash.Hash32
	stage int
	tmp   [8]byte

	width, height uint32
	depth, color  byte
}

func (d *pngDecoder) checkHeader() error {
	if _, err := d.r.Read(d.tmp[:len(pngHeader)]); err != nil {
		return err
	}
	if string(d.tmp[:len(pngHeader)]) != pngHeader {
		return fmt.Errorf("not a PNG file")
	}
	return nil
}

func (d *pngDecoder) parseChunk() error {
	// Read the length and chunk type.
	if _, err := d.r.Read(d.tmp[:8]); err != nil {
		return err
	}
	length := binary.BigEndian.Uint32(d.tmp[:4])
	if length > 0x7fffffff {
		return fmt.Errorf("bad chunk length: %d", length)
	}
	d.crc.Reset()
	d.crc.Write(d.tmp[4:8])

	switch string(d.tmp[4:8]) {
	case "IHDR":
		if d.stage != dsStart || length != 13 {
			return ErrChunkOrderError
		}
		d.stage = dsSeenIHDR

		hdr, err := d.r.Peek(int(length))
		if err != nil {
			return err
		}
		d.width = binary.BigEndian.Uint32(hdr[0:4])
		d.height = binary.BigEndian.Uint32(hdr[4:8])
		d.depth, d.color = hdr[8], hdr[9]
		if d.width == 0 || d.height == 0 {
			return fmt.Errorf("invalid PNG dimensions")
		}
	case "PLTE":
		if d.stage != dsSeenIHDR {
			return ErrChunkOrderError
		}
		d.stage = dsSeenPLTE
	case "tRNS":
		d.stage = dsSeentRNS
	case "IDAT":
		if d.stage < dsSeenIHDR || d.stage > dsSeenIDAT {
			return ErrChunkOrderError
		}
		d.stage = dsSeenIDAT
	case "IEND":
		if d.stage != dsSeenIDAT {
			return ErrChunkOrderError
		}
		d.stage = dsSeenIEND
	default:
		if d.stage == dsStart {
			return ErrChunkOrderError
		}
	}

	chunk, err := d.r.Peek(int(length))
	if err != nil {
		return io.ErrUnexpectedEOF
	}
	d.crc.Write(chunk)
	_, _ = d.r.Discard(len(chunk))

	return d.verifyChecksum()
}

func (d *pngDecoder) verifyChecksum() error {
	if _, err := d.r.Read(d.tmp[:4]); err != nil {
		return err
	}
	if binary.BigEndian.Uint32(d.tmp[:4]) != d.crc.Sum32() {
		return fmt.Errorf("invalid checksum")
	}
	return nil
}

// ParsePNG walks the chunk list up to IEND, verifying every CRC.
func ParsePNG(data []byte, offset int) (Match, error) {
	d := &pngDecoder{
		r:   NewReader(data[offset:]),
		crc: crc32.NewIEEE(),
	}

	if err := d.checkHeader(); err != nil {
		return Match{}, err
	}

	for d.stage != dsSeenIEND {
		if err := d.parseChunk(); err != nil {
			return Match{}, err
		}
	}

	return Match{
		Size:        d.r.BytesRead(),
		Confidence:  ConfidenceHigh,
		Description: fmt.Sprintf("PNG image, %d x %d, %d-bit/color type %d", d.width, d.height, d.depth, d.color),
	}, nil
}
