package signature

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

const maxPDFScan = 64 << 20

// ParsePDF sizes a PDF document from its linearization dictionary ("/L n")
// when present, falling back to the last %EOF marker.
func ParsePDF(data []byte, offset int) (Match, error) {
	buf := data[offset:min(len(data), offset+maxPDFScan)]

	if len(buf) < 8 || !bytes.HasPrefix(buf, []byte("%PDF-")) {
		return Match{}, errors.New("missing PDF header")
	}

	version := ""
	if eol := bytes.IndexAny(buf[:min(len(buf), 16)], "\r\n"); eol > 5 {
		version = string(buf[5:eol])
	}
	desc := fmt.Sprintf("PDF document, version %s", version)

	if size, ok := linearizedSize(buf); ok && size <= uint64(len(buf)) {
		return Match{Size: size, Confidence: ConfidenceHigh, Description: desc + ", linearized"}, nil
	}

	lastEOF := bytes.LastIndex(buf, []byte("%%EOF"))
	if lastEOF == -1 {
		return Match{}, errors.New("could not determine PDF size")
	}

	size := lastEOF + len("%%EOF")
	// Keep the end-of-line following the marker.
	for size < len(buf) && size < lastEOF+len("%%EOF")+2 && (buf[size] == '\r' || buf[size] == '\n') {
		size++
	}
	return Match{Size: uint64(size), Confidence: ConfidenceMedium, Description: desc}, nil
}

func linearizedSize(buf []byte) (uint64, bool) {
	// The linearization dictionary is the first object of the file.
	head := buf[:min(len(buf), 1024)]
	linearizedIndex := bytes.Index(head, []byte("/Linearized"))
	if linearizedIndex < 0 {
		return 0, false
	}

	end := linearizedIndex + 200
	if end > len(buf) {
		end = len(buf)
	}
	segment := buf[linearizedIndex:end]

	for i := 0; i < len(segment)-3; i++ {
		if segment[i] == '/' && segment[i+1] == 'L' && segment[i+2] == ' ' {
			j := i + 3
			for j < len(segment) && segment[j] == ' ' {
				j++
			}
			start := j
			for j < len(segment) && segment[j] >= '0' && segment[j] <= '9' {
				j++
			}
			if size, err := strconv.ParseUint(string(segment[start:j]), 10, 64); err == nil && size > 0 {
				return size, true
			}
		}
	}
	return 0, false
}
