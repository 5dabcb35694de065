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

	"github.com/ostafen/binwalk/internal/cpio"
)

// ParseCPIO walks newc entries until the TRAILER!!! entry. Once the first
// header is valid, an archive running past the end of the data is sized to
// the end of the data.
func ParseCPIO(data []byte, offset int) (Match, error) {
	r := NewReader(data[offset:])

	truncated := func(entries int) (Match, error) {
		return Match{
			Size:        uint64(len(data) - offset),
			Confidence:  ConfidenceMedium,
			Description: fmt.Sprintf("ASCII cpio archive (SVR4), %d entries, truncated", entries),
		}, nil
	}

	entries := 0
	for {
		buf, peekErr := r.Peek(cpio.HeaderSize + cpio.MaxNameSize)
		entry, err := cpio.ParseHeader(buf)
		if err != nil {
			if entries > 0 && peekErr != nil {
				return truncated(entries)
			}
			return Match{}, err
		}
		if entry.IsTrailer() {
			// Padding after the trailer may be missing.
			_, _ = r.Discard(entry.HeaderSize)
			break
		}
		entries++
		if _, err := r.Discard(entry.HeaderSize + entry.DataSize); err != nil {
			return truncated(entries)
		}
	}

	return Match{
		Size:        r.BytesRead(),
		Confidence:  ConfidenceHigh,
		Description: fmt.Sprintf("ASCII cpio archive (SVR4), %d entries", entries),
	}, nil
}
