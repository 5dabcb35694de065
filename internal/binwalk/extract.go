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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ostafen/binwalk/internal/extractor"
	"github.com/ostafen/binwalk/internal/signature"
	"golang.org/x/sync/errgroup"
)

const extractedSuffix = ".extracted"

// Extract runs the preferred extractor of every entry of fileMap against
// data. Each entry gets its own <OFFSET>_<name> directory below the
// extraction root of filePath, and a result keyed by the entry ID: declined and failed
// extractions are recorded, never dropped. Only invalid input or an
// unusable extraction root are returned as errors.
func (bw *Binwalk) Extract(ctx context.Context, data []byte, filePath string, fileMap []signature.Result) (map[string]extractor.Result, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty buffer", ErrInvalidInput)
	}

	root := bw.extractionRoot(filePath)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: extraction directory: %s", ErrConfiguration, err)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]extractor.Result, len(fileMap))
	)

	g := new(errgroup.Group)
	g.SetLimit(bw.workers)

	for _, r := range fileMap {
		r := r
		outDir := filepath.Join(root, fmt.Sprintf("%X_%s", r.Offset, r.Name))

		g.Go(func() error {
			res := bw.extractOne(ctx, data, r, outDir)

			mu.Lock()
			results[r.ID] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// extractionRoot returns where the extractions of filePath are written. Files
// which are themselves extraction output get their root next to them, so
// nested extractions never collide.
func (bw *Binwalk) extractionRoot(filePath string) string {
	if filePath == "" {
		filePath = "memory"
	}

	name := filepath.Base(filePath) + extractedSuffix
	if abs, err := filepath.Abs(filePath); err == nil {
		if rel, err := filepath.Rel(bw.BaseOutputDirectory, abs); err == nil && !strings.HasPrefix(rel, "..") && rel != "." {
			return filepath.Join(filepath.Dir(abs), name)
		}
	}
	return filepath.Join(bw.BaseOutputDirectory, name)
}

func (bw *Binwalk) extractOne(ctx context.Context, data []byte, r signature.Result, outDir string) (res extractor.Result) {
	res = extractor.Result{
		Extractor:       extractor.None().String(),
		OutputDirectory: outDir,
	}

	defer func() {
		if p := recover(); p != nil {
			bw.logger.Error("extraction panicked", "signature", r.Name, "offset", r.Offset, "panic", p)
			res.Success = false
			res.Size = nil
			res.Error = fmt.Sprintf("%s: %v", ErrInternalFault, p)
		}
		bw.metrics.recordExtraction(ctx, r.Name, res.Success)
	}()

	ex := r.PreferredExtractor
	if r.ExtractionDeclined || ex == nil || ex.Utility.Kind() == extractor.KindNone {
		res.Error = extractor.ErrDeclined.Error()
		return res
	}
	res.Extractor = ex.Utility.String()
	res.DoNotRecurse = ex.DoNotRecurse

	if r.Offset >= uint64(len(data)) {
		res.Error = fmt.Sprintf("%s: offset %d beyond end of data", ErrExtractionFailure, r.Offset)
		return res
	}
	end := min(r.Offset+r.Size, uint64(len(data)))

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		res.Error = fmt.Sprintf("%s: %s", ErrExtractionFailure, err)
		return res
	}

	size, err := extractor.Run(ctx, ex, extractor.Job{
		Name:      r.Name,
		Data:      data[r.Offset:end],
		OutputDir: outDir,
	}, bw.timeout)
	if err != nil {
		bw.logger.Warn("extraction failed",
			"signature", r.Name,
			"offset", r.Offset,
			"extractor", res.Extractor,
			"err", err)

		if errors.Is(err, extractor.ErrPanic) {
			res.Error = fmt.Sprintf("%s: %s", ErrInternalFault, err)
		} else {
			res.Error = fmt.Sprintf("%s: %s", ErrExtractionFailure, err)
		}
		_ = os.RemoveAll(outDir)
		return res
	}

	bw.logger.Debug("extraction completed",
		"signature", r.Name,
		"offset", r.Offset,
		"size", size,
		"output", outDir)

	res.Success = true
	res.Size = &size
	return res
}
