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
	"fmt"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ParseGZIP decodes a single gzip member. A stream that decodes cleanly up to
// the end of the data is reported as truncated, with medium confidence only
// once enough output was produced to trust the short magic.
func ParseGZIP(data []byte, offset int) (Match, error) {
	src := &byteCounter{data: data[offset:]}

	zr, err := gzip.NewReader(src)
	if err != nil {
		return Match{}, err
	}
	defer zr.Close()
	zr.Multistream(false)

	decoded, complete, err := drain(zr)
	truncated := err != nil && src.endsEarly(err)
	if err != nil && !truncated {
		return Match{}, fmt.Errorf("gzip: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("gzip compressed data")
	if zr.Name != "" {
		fmt.Fprintf(&sb, ", original file name: %q", zr.Name)
	}
	if !zr.ModTime.IsZero() {
		fmt.Fprintf(&sb, ", last modified: %s", zr.ModTime.UTC().Format("2006-01-02 15:04:05"))
	}

	switch {
	case truncated:
		sb.WriteString(", truncated")
	case !complete:
		sb.WriteString(", truncated scan")
	default:
		fmt.Fprintf(&sb, ", decompressed size: %d", decoded)
		return Match{
			Size:        uint64(src.pos),
			Confidence:  ConfidenceHigh,
			Description: sb.String(),
		}, nil
	}

	return Match{
		Size:        uint64(len(data) - offset),
		Confidence:  partialConfidence(decoded),
		Description: sb.String(),
	}, nil
}
