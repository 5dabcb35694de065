package signature

import (
	"encoding/binary"
	"fmt"
)

const (
	sof0Marker = 0xc0 // Start Of Frame (Baseline Sequential).
	sof1Marker = 0xc1 // Start Of Frame (Extended Sequential).
	sof2Marker = 0xc2 // Start Of Frame (Progressive).
	dhtMarker  = 0xc4 // Define Huffman Table.
	rst0Marker = 0xd0 // ReSTart (0).
	rst7Marker = 0xd7 // ReSTart (7).
	soiMarker  = 0xd8 // Start Of Image.
	eoiMarker  = 0xd9 // End Of Image.
	sosMarker  = 0xda // Start Of Scan.
	dqtMarker  = 0xdb // Define Quantization Table.
	driMarker  = 0xdd // Define Restart Interval.
	comMarker  = 0xfe // COMment.
	// "APPlication specific" markers aren't part of the JPEG spec per se,
	// but in practice, their use is described at
	// https://www.sno.phy.queensu.ca/~phil/exiftool/TagNames/JPEG.html
	app0Marker  = 0xe0
	app14Marker = 0xee
	app15Marker = 0xef
)

// ParseJPEG walks the JPEG segments until the End Of Image marker. It follows
// the segment loop of image/jpeg, tolerating fill bytes, byte stuffing
// (0xFF00) and stray restart markers the way libjpeg does.
func ParseJPEG(data []byte, offset int) (Match, error) {
	r := NewReader(data[offset:])

	var tmp [2]byte
	if _, err := r.Read(tmp[:]); err != nil {
		return Match{}, err
	}
	if tmp[0] != 0xff || tmp[1] != soiMarker {
		return Match{}, fmt.Errorf("missing SOI marker")
	}

	var width, height uint16
	for {
		if _, err := r.Read(tmp[:]); err != nil {
			return Match{}, err
		}
		for tmp[0] != 0xff {
			// Extraneous data, e.g. the entropy-coded segment following SOS,
			// is silently skipped.
			var err error
			tmp[0] = tmp[1]
			tmp[1], err = r.ReadByte()
			if err != nil {
				return Match{}, err
			}
		}
		marker := tmp[1]
		if marker == 0 {
			// Treat "\xff\x00" as extraneous data.
			continue
		}
		for marker == 0xff {
			// Any marker may be preceded by fill bytes.
			var err error
			marker, err = r.ReadByte()
			if err != nil {
				return Match{}, err
			}
		}
		if marker == eoiMarker {
			break
		}
		if rst0Marker <= marker && marker <= rst7Marker {
			continue
		}

		// The 16-bit segment length includes the length field itself.
		if _, err := r.Read(tmp[:]); err != nil {
			return Match{}, err
		}
		n := int(tmp[0])<<8 + int(tmp[1]) - 2
		if n < 0 {
			return Match{}, fmt.Errorf("short segment length")
		}

		switch {
		case marker == sof0Marker || marker == sof1Marker || marker == sof2Marker:
			frame, err := r.Peek(5)
			if err != nil || n < 5 {
				return Match{}, fmt.Errorf("short SOF segment")
			}
			height = binary.BigEndian.Uint16(frame[1:3])
			width = binary.BigEndian.Uint16(frame[3:5])
		case marker == dhtMarker, marker == dqtMarker, marker == sosMarker, marker == driMarker:
		case app0Marker <= marker && marker <= app15Marker, marker == comMarker:
		case marker == 0xc3, marker >= 0xc5 && marker <= 0xcf && marker != 0xc8:
			// Remaining SOFn (lossless, arithmetic) and DAC.
		default:
			return Match{}, fmt.Errorf("unknown marker 0x%02x", marker)
		}

		if _, err := r.Discard(n); err != nil {
			return Match{}, err
		}
	}

	return Match{
		Size:        r.BytesRead(),
		Confidence:  ConfidenceHigh,
		Description: fmt.Sprintf("JPEG image data, %d x %d", width, height),
	}, nil
}
