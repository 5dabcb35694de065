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
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/ostafen/binwalk/internal/extractor"
	"github.com/ostafen/binwalk/internal/mmap"
	"github.com/ostafen/binwalk/internal/signature"
	osutils "github.com/ostafen/binwalk/pkg/util/os"
)

// AnalysisResults holds the outcome of analysing a single file.
type AnalysisResults struct {
	FilePath    string                      `json:"file_path"`
	FileMap     []signature.Result          `json:"file_map"`
	Extractions map[string]extractor.Result `json:"extractions"`
	Depth       int                         `json:"depth"`
}

// Analyze scans target and, if doExtraction is set, extracts every match.
func (bw *Binwalk) Analyze(ctx context.Context, target string, doExtraction bool) (AnalysisResults, error) {
	path, err := filepath.Abs(target)
	if err != nil {
		return AnalysisResults{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	f, err := mmap.Open(path)
	if err != nil {
		return AnalysisResults{}, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	defer f.Close()

	return bw.analyze(ctx, path, f.Data(), doExtraction)
}

func (bw *Binwalk) analyze(ctx context.Context, path string, data []byte, doExtraction bool) (AnalysisResults, error) {
	results := AnalysisResults{
		FilePath:    path,
		FileMap:     []signature.Result{},
		Extractions: map[string]extractor.Result{},
	}

	fileMap, err := bw.ScanContext(ctx, data)
	if err != nil {
		return results, err
	}
	results.FileMap = fileMap

	bw.logger.Info("file analysed", "path", path, "matches", len(fileMap))

	if !doExtraction || len(fileMap) == 0 {
		return results, nil
	}

	extractions, err := bw.Extract(ctx, data, path, fileMap)
	if err != nil {
		return results, err
	}
	results.Extractions = extractions
	return results, nil
}

// queued is a file waiting to be analysed, along with the content hashes of
// the files it was extracted from.
type queued struct {
	path      string
	depth     int
	ancestors []uint64
}

// AnalyzeRecursive analyses target and every file extracted from it, level
// by level, until nothing more can be extracted. A file whose content matches
// one of the files it was extracted from, or a tree deeper than the configured
// limit, stops the walk with ErrRecursionLimitExceeded; the results gathered
// so far are returned along with the error.
func (bw *Binwalk) AnalyzeRecursive(ctx context.Context, target string) ([]AnalysisResults, error) {
	path, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	var (
		all   []AnalysisResults
		seen  = make(map[uint64]bool)
		queue = []queued{{path: path}}
	)

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return all, err
		}

		item := queue[0]
		queue = queue[1:]

		res, hash, skip, err := bw.analyzeQueued(ctx, item, seen)
		if err != nil {
			return all, err
		}
		if skip {
			continue
		}
		res.Depth = item.depth
		all = append(all, res)

		children, err := bw.extractedFiles(res)
		if err != nil {
			return all, err
		}
		if len(children) == 0 {
			continue
		}
		if item.depth >= bw.maxDepth {
			return all, fmt.Errorf("%w: %s needs depth %d, limit is %d",
				ErrRecursionLimitExceeded, item.path, item.depth+1, bw.maxDepth)
		}

		ancestors := append(append([]uint64(nil), item.ancestors...), hash)
		for _, child := range children {
			queue = append(queue, queued{path: child, depth: item.depth + 1, ancestors: ancestors})
		}
	}
	return all, nil
}

func (bw *Binwalk) analyzeQueued(ctx context.Context, item queued, seen map[uint64]bool) (res AnalysisResults, hash uint64, skip bool, err error) {
	f, err := mmap.Open(item.path)
	if err != nil {
		if item.depth == 0 {
			return res, 0, false, fmt.Errorf("%w: %s", ErrInvalidInput, err)
		}
		bw.logger.Warn("skipping unreadable extracted file", "path", item.path, "err", err)
		return res, 0, true, nil
	}
	defer f.Close()

	data := f.Data()
	if len(data) == 0 {
		if item.depth == 0 {
			return res, 0, false, fmt.Errorf("%w: %s is empty", ErrInvalidInput, item.path)
		}
		return res, 0, true, nil
	}

	hash = xxhash.Sum64(data)
	for _, h := range item.ancestors {
		if h == hash {
			return res, hash, false, fmt.Errorf("%w: %s repeats the content of one of its parents",
				ErrRecursionLimitExceeded, item.path)
		}
	}
	if seen[hash] {
		bw.logger.Debug("skipping already analysed content", "path", item.path)
		return res, hash, true, nil
	}
	seen[hash] = true

	res, err = bw.analyze(ctx, item.path, data, true)
	if errors.Is(err, ErrInvalidInput) && item.depth > 0 {
		return res, hash, true, nil
	}
	return res, hash, false, err
}

// extractedFiles lists the files produced by the successful extractions of
// res which may be analysed further, in scan order.
func (bw *Binwalk) extractedFiles(res AnalysisResults) ([]string, error) {
	var files []string
	for _, r := range res.FileMap {
		ex, ok := res.Extractions[r.ID]
		if !ok || !ex.Success || ex.DoNotRecurse {
			continue
		}

		found, err := osutils.ListFiles(ex.OutputDirectory)
		if err != nil {
			return nil, fmt.Errorf("%w: listing %s: %s", ErrExtractionFailure, ex.OutputDirectory, err)
		}
		files = append(files, found...)
	}
	return files, nil
}
