package signature

import (
	"errors"
	"fmt"
)

// Section indicators.
const (
	sExtension       = 0x21
	sImageDescriptor = 0x2C
	sTrailer         = 0x3B
)

// Extensions.
const (
	eText           = 0x01 // Plain Text
	eGraphicControl = 0xF9 // Graphic Control
	eComment        = 0xFE // Comment
	eApplication    = 0xFF // Application
)

// Masks
const (
	fColorTable         = 1 << 7
	fColorTableBitsMask = 7
)

type gifDecoder struct {
	r *Reader

	width, height       int
	imageFields         byte
	hasGlobalColorTable bool
	frames              int

	tmp [256]byte
}

// ParseGIF walks GIF blocks up to the trailer, requiring at least one frame.
func ParseGIF(data []byte, offset int) (Match, error) {
	d := gifDecoder{r: NewReader(data[offset:])}

	if err := d.readHeaderAndScreenDescriptor(); err != nil {
		return Match{}, err
	}

	for {
		c, err := d.r.ReadByte()
		if err != nil {
			return Match{}, fmt.Errorf("gif: reading frames: %w", err)
		}
		switch c {
		case sExtension:
			err = d.readExtension()
		case sImageDescriptor:
			err = d.readImageDescriptor()
		case sTrailer:
			if d.frames == 0 {
				return Match{}, errors.New("gif: missing image data")
			}
			return Match{
				Size:        d.r.BytesRead(),
				Confidence:  ConfidenceHigh,
				Description: fmt.Sprintf("GIF image data, %d x %d, %d frame(s)", d.width, d.height, d.frames),
			}, nil
		default:
			return Match{}, fmt.Errorf("gif: unknown block type: 0x%.2x", c)
		}
		if err != nil {
			return Match{}, err
		}
	}
}

func (d *gifDecoder) readExtension() error {
	extension, err := d.r.ReadByte()
	if err != nil {
		return fmt.Errorf("gif: reading extension: %w", err)
	}
	switch extension {
	case eGraphicControl:
		return d.readGraphicControl()
	case eText, eComment, eApplication:
	default:
		return fmt.Errorf("gif: unknown extension 0x%.2x", extension)
	}
	return d.skipBlocks()
}

func (d *gifDecoder) readGraphicControl() error {
	if _, err := d.r.Read(d.tmp[:6]); err != nil {
		return fmt.Errorf("gif: can't read graphic control: %w", err)
	}
	if d.tmp[0] != 4 {
		return fmt.Errorf("gif: invalid graphic control extension block size: %d", d.tmp[0])
	}
	if d.tmp[5] != 0 {
		return fmt.Errorf("gif: invalid graphic control extension block terminator: %d", d.tmp[5])
	}
	return nil
}

func (d *gifDecoder) readImageDescriptor() error {
	if _, err := d.r.Read(d.tmp[:9]); err != nil {
		return fmt.Errorf("gif: can't read image descriptor: %w", err)
	}
	left := int(d.tmp[0]) + int(d.tmp[1])<<8
	top := int(d.tmp[2]) + int(d.tmp[3])<<8
	width := int(d.tmp[4]) + int(d.tmp[5])<<8
	height := int(d.tmp[6]) + int(d.tmp[7])<<8
	d.imageFields = d.tmp[8]

	// Each image must fit within the logical screen.
	if left+width > d.width || top+height > d.height {
		return errors.New("gif: frame bounds larger than image bounds")
	}

	if d.imageFields&fColorTable != 0 {
		if err := d.skipColorTable(d.imageFields); err != nil {
			return err
		}
	} else if !d.hasGlobalColorTable {
		return errors.New("gif: no color table")
	}

	litWidth, err := d.r.ReadByte()
	if err != nil {
		return fmt.Errorf("gif: reading image data: %w", err)
	}
	if litWidth < 2 || litWidth > 8 {
		return fmt.Errorf("gif: pixel size in decode out of range: %d", litWidth)
	}

	if err := d.skipBlocks(); err != nil {
		return err
	}
	d.frames++
	return nil
}

// skipBlocks discards data sub-blocks up to the zero-length terminator.
func (d *gifDecoder) skipBlocks() error {
	for {
		size, err := d.r.ReadByte()
		if err != nil {
			return fmt.Errorf("gif: reading data block: %w", err)
		}
		if size == 0 {
			return nil
		}
		if _, err := d.r.Discard(int(size)); err != nil {
			return err
		}
	}
}

func (d *gifDecoder) readHeaderAndScreenDescriptor() error {
	if _, err := d.r.Read(d.tmp[:13]); err != nil {
		return fmt.Errorf("gif: reading header: %w", err)
	}
	version := string(d.tmp[:6])
	if version != "GIF87a" && version != "GIF89a" {
		return fmt.Errorf("gif: can't recognize format %q", version)
	}

	d.width = int(d.tmp[6]) + int(d.tmp[7])<<8
	d.height = int(d.tmp[8]) + int(d.tmp[9])<<8
	if d.width == 0 || d.height == 0 {
		return errors.New("gif: empty logical screen")
	}

	if fields := d.tmp[10]; fields&fColorTable != 0 {
		d.hasGlobalColorTable = true
		return d.skipColorTable(fields)
	}
	return nil
}

func (d *gifDecoder) skipColorTable(fields byte) error {
	n := 1 << (1 + uint(fields&fColorTableBitsMask))
	if _, err := d.r.Discard(3 * n); err != nil {
		return fmt.Errorf("gif: reading color table: %w", err)
	}
	return nil
}
