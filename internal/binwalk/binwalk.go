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
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/ostafen/binwalk/internal/extractor"
	"github.com/ostafen/binwalk/internal/signature"
	"github.com/ostafen/binwalk/pkg/table"
	osutils "github.com/ostafen/binwalk/pkg/util/os"
)

const (
	DefaultOutputDirectory = "extractions"
	DefaultMaxDepth        = 8
	DefaultExtractTimeout  = 5 * time.Minute
)

type Options struct {
	// TargetFile is the file the engine is configured for. Optional.
	TargetFile string
	// OutputDirectory is the root of extraction output. It is created when
	// set explicitly.
	OutputDirectory string

	// Include and Exclude are glob patterns over signature names.
	Include []string
	Exclude []string
	// SearchAll reports every match, overlapping ones included.
	SearchAll bool

	MaxDepth       int
	ExtractTimeout time.Duration
	Workers        int

	// DisableExtractors lists signature names whose matches are never extracted.
	DisableExtractors []string

	// Signatures replaces the built-in signature table.
	Signatures []*signature.Signature

	// Progress, when set, is called from the scanning goroutine with the
	// number of bytes scanned so far and the buffer size.
	Progress func(scanned, total int)

	Logger *slog.Logger
}

// Binwalk is a configured scanning engine. It is immutable once built and
// safe for concurrent use.
type Binwalk struct {
	// SignatureCount is the number of magic patterns the engine looks for.
	SignatureCount      int
	BaseTargetFile      string
	BaseOutputDirectory string
	// ExtractorLookupTable maps enabled signature names to their extractor.
	ExtractorLookupTable map[string]*extractor.Extractor
	ShortSignatures      []*signature.Signature

	table     *signature.Table
	prefixes  *table.PrefixTable[candidate]
	order     map[string]int
	searchAll bool
	maxDepth  int
	timeout   time.Duration
	workers   int
	disabled  map[string]bool
	progress  func(scanned, total int)
	logger    *slog.Logger
	metrics   *metrics
}

// candidate is a signature registered under one of its magics.
type candidate struct {
	sig   *signature.Signature
	order int
}

// New returns an engine with the built-in signatures and default options.
func New() *Binwalk {
	bw, err := Configure(Options{})
	if err != nil {
		panic(err)
	}
	return bw
}

// Configure builds an engine from opts. Unknown include or exclude names and
// unusable paths are reported as ErrConfiguration.
func Configure(opts Options) (*Binwalk, error) {
	var (
		full *signature.Table
		err  error
	)
	if opts.Signatures != nil {
		full, err = signature.NewTable(opts.Signatures)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConfiguration, err)
		}
	} else {
		full = signature.DefaultTable()
	}

	enabled, err := full.Filter(opts.Include, opts.Exclude)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfiguration, err)
	}

	bw := &Binwalk{
		SignatureCount:       enabled.PatternCount(),
		ExtractorLookupTable: make(map[string]*extractor.Extractor, enabled.Len()),
		ShortSignatures:      enabled.Short(),
		table:                enabled,
		prefixes:             table.New[candidate](),
		order:                make(map[string]int, enabled.Len()),
		searchAll:            opts.SearchAll,
		maxDepth:             opts.MaxDepth,
		timeout:              opts.ExtractTimeout,
		workers:              opts.Workers,
		disabled:             make(map[string]bool, len(opts.DisableExtractors)),
		progress:             opts.Progress,
		logger:               opts.Logger,
		metrics:              newMetrics(),
	}

	for i, sig := range enabled.Signatures() {
		bw.order[sig.Name] = i
		bw.ExtractorLookupTable[sig.Name] = sig.Extractor
		for _, magic := range sig.Magic {
			bw.prefixes.Insert(magic, candidate{sig: sig, order: i})
		}
	}

	for _, name := range opts.DisableExtractors {
		if _, ok := full.Lookup(name); !ok {
			return nil, fmt.Errorf("%w: unknown signature %q", ErrConfiguration, name)
		}
		bw.disabled[name] = true
	}

	if bw.maxDepth <= 0 {
		bw.maxDepth = DefaultMaxDepth
	}
	if bw.timeout <= 0 {
		bw.timeout = DefaultExtractTimeout
	}
	if bw.workers <= 0 {
		bw.workers = runtime.NumCPU()
	}
	if bw.logger == nil {
		bw.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if opts.TargetFile != "" {
		target, err := filepath.Abs(opts.TargetFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConfiguration, err)
		}
		if _, err := os.Stat(target); err != nil {
			return nil, fmt.Errorf("%w: target file: %s", ErrConfiguration, err)
		}
		bw.BaseTargetFile = target
	}

	outDir := opts.OutputDirectory
	if outDir == "" {
		outDir = DefaultOutputDirectory
	}
	bw.BaseOutputDirectory, err = filepath.Abs(outDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrConfiguration, err)
	}
	if opts.OutputDirectory != "" {
		if _, err := osutils.EnsureDir(bw.BaseOutputDirectory, false); err != nil {
			return nil, fmt.Errorf("%w: output directory: %s", ErrConfiguration, err)
		}
	}
	return bw, nil
}

// Signatures returns the enabled signatures in table order.
func (bw *Binwalk) Signatures() []*signature.Signature {
	return bw.table.Signatures()
}

func (bw *Binwalk) String() string {
	return fmt.Sprintf("Binwalk(signatures=%d, target=%q, output=%q)",
		bw.SignatureCount, bw.BaseTargetFile, bw.BaseOutputDirectory)
}
