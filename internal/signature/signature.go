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
	"errors"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/ostafen/binwalk/internal/extractor"
)

// Confidence levels reported by parsers.
const (
	ConfidenceLow    uint8 = 0
	ConfidenceMedium uint8 = 128
	ConfidenceHigh   uint8 = 250
)

// ErrNoMatch is returned by parsers when the data at the given offset does not
// hold a well-formed instance of the format.
var ErrNoMatch = errors.New("no match")

// Match is what a parser learns about a confirmed signature.
type Match struct {
	Size               uint64
	Confidence         uint8
	Description        string
	ExtractionDeclined bool
}

// ParseFunc validates the structure starting at data[offset:]. The magic
// bytes of the signature have already been matched at offset+MagicOffset.
type ParseFunc func(data []byte, offset int) (Match, error)

// Signature describes a known file format.
type Signature struct {
	Name        string
	Description string

	// Magic holds the byte patterns identifying the format.
	Magic [][]byte
	// MagicOffset is the distance of the magic from the start of the format.
	MagicOffset int

	// Short signatures have weak magics. Away from offset 0 their matches
	// need at least ConfidenceMedium to be reported.
	Short bool

	// AlwaysDisplay matches are reported even inside another match.
	AlwaysDisplay bool

	Extractor *extractor.Extractor
	Parse     ParseFunc
}

// Result is a confirmed signature occurrence within a buffer.
type Result struct {
	Offset             uint64               `json:"offset"`
	ID                 string               `json:"id"`
	Size               uint64               `json:"size"`
	Name               string               `json:"name"`
	Confidence         uint8                `json:"confidence"`
	Description        string               `json:"description"`
	AlwaysDisplay      bool                 `json:"always_display"`
	ExtractionDeclined bool                 `json:"extraction_declined"`
	PreferredExtractor *extractor.Extractor `json:"preferred_extractor,omitempty"`
}

func (r *Result) String() string {
	return fmt.Sprintf("SignatureResult(offset=%d, name=%q, size=%d, confidence=%d)",
		r.Offset, r.Name, r.Size, r.Confidence)
}

// ResultID derives a stable identifier from a result's name and range, so
// that scanning the same buffer twice yields identical identifiers.
func ResultID(name string, offset, size uint64) string {
	h := xxhash.New()
	_, _ = h.WriteString(name)
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(strconv.FormatUint(offset, 10))
	_, _ = h.WriteString(":")
	_, _ = h.WriteString(strconv.FormatUint(size, 10))
	return strconv.FormatUint(h.Sum64(), 16)
}
