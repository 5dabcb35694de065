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
package binwalk

import (
	"context"
	"fmt"
	"time"

	"github.com/ostafen/binwalk/internal/mmap"
	"github.com/ostafen/binwalk/internal/signature"
)

// cancelCheckInterval is the number of offsets scanned between two checks
// of the context.
const cancelCheckInterval = 64 * 1024

// hit is a parser-confirmed match before filtering.
type hit struct {
	sig    *signature.Signature
	order  int
	offset int
	match  signature.Match
}

// Scan identifies the signatures contained in data. It returns an empty list
// for an empty buffer.
func (bw *Binwalk) Scan(data []byte) []signature.Result {
	results, err := bw.ScanContext(context.Background(), data)
	if err != nil {
		return []signature.Result{}
	}
	return results
}

// ScanContext is like Scan but can be cancelled. Results are sorted by
// offset and never exceed the buffer.
func (bw *Binwalk) ScanContext(ctx context.Context, data []byte) ([]signature.Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrInvalidInput)
	}

	start := time.Now()

	var hits []hit
	for i := range data {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			bw.reportProgress(i, len(data))
		}

		var walkErr error
		bw.prefixes.Walk(data[i:], func(c candidate) bool {
			offset := i - c.sig.MagicOffset
			if offset < 0 {
				return false
			}
			if err := ctx.Err(); err != nil {
				walkErr = err
				return true
			}

			m, err := bw.parse(c.sig, data, offset)
			if err != nil {
				return false
			}
			hits = append(hits, hit{sig: c.sig, order: c.order, offset: offset, match: m})
			return false
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}

	bw.reportProgress(len(data), len(data))
	results := bw.resolve(hits, len(data))

	elapsed := time.Since(start)
	bw.metrics.recordScan(ctx, len(data), len(results), elapsed)
	bw.logger.Debug("scan completed",
		"size", len(data),
		"candidates", len(hits),
		"results", len(results),
		"elapsed", elapsed)

	return results, nil
}

func (bw *Binwalk) reportProgress(scanned, total int) {
	if bw.progress != nil {
		bw.progress(scanned, total)
	}
}

// ScanPath maps the file at path in memory and scans it.
func (bw *Binwalk) ScanPath(ctx context.Context, path string) ([]signature.Result, error) {
	f, err := mmap.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	defer f.Close()

	return bw.ScanContext(ctx, f.Data())
}

// parse runs a signature parser, turning a panic into a rejected match.
func (bw *Binwalk) parse(sig *signature.Signature, data []byte, offset int) (m signature.Match, err error) {
	defer func() {
		if r := recover(); r != nil {
			bw.logger.Warn("signature parser panicked",
				"signature", sig.Name,
				"offset", offset,
				"panic", r)
			m, err = signature.Match{}, fmt.Errorf("%w: %v", ErrInternalFault, r)
		}
	}()
	return sig.Parse(data, offset)
}
