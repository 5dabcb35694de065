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

// Package api exposes the engine through a JSON contract suited to foreign
// callers. Every entry point returns a Buffer holding a JSON document with a
// success flag and an optional error, and never panics.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/blang/semver/v4"
	"github.com/ostafen/binwalk/internal/binwalk"
	"github.com/ostafen/binwalk/internal/env"
	"github.com/ostafen/binwalk/internal/signature"
)

const (
	errInvalidInput   = "invalid input: null pointer or zero length"
	errInvalidOptions = "invalid options_json"
	errConfigure      = "configure failed"
	errScanPanic      = "panic during scan"
	errListPanic      = "panic during signature enumeration"
	errVersionPanic   = "panic during version"
)

// newEngine builds the engine used by every call.
var newEngine = binwalk.Configure

var parseVersion = semver.ParseTolerant

// Buffer owns a JSON response. Release may be called any number of times,
// also on a nil Buffer.
type Buffer struct {
	mu   sync.Mutex
	data []byte
}

func newBuffer(v any) *Buffer {
	b, err := json.Marshal(v)
	if err != nil {
		b = []byte(`{"success":false,"error":"serialization failed"}`)
	}
	return &Buffer{data: b}
}

// Bytes returns the JSON document, or nil once released.
func (b *Buffer) Bytes() []byte {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

func (b *Buffer) String() string {
	return string(b.Bytes())
}

func (b *Buffer) Release() {
	if b == nil {
		return
	}
	b.mu.Lock()
	b.data = nil
	b.mu.Unlock()
}

type ScanResult struct {
	Offset             uint64 `json:"offset"`
	ID                 string `json:"id"`
	Size               uint64 `json:"size"`
	Name               string `json:"name"`
	Confidence         uint8  `json:"confidence"`
	Description        string `json:"description"`
	AlwaysDisplay      bool   `json:"always_display"`
	ExtractionDeclined bool   `json:"extraction_declined"`
}

type ScanResponse struct {
	Success bool         `json:"success"`
	Error   *string      `json:"error"`
	FileMap []ScanResult `json:"file_map"`
}

type VersionResponse struct {
	Success        bool    `json:"success"`
	Error          *string `json:"error"`
	Version        string  `json:"version"`
	BinwalkVersion string  `json:"binwalk_version"`
}

type SignatureInfo struct {
	Name  string `json:"name"`
	Short bool   `json:"short"`
}

type SignatureListResponse struct {
	Success    bool            `json:"success"`
	Error      *string         `json:"error"`
	Count      int             `json:"count"`
	Signatures []SignatureInfo `json:"signatures"`
}

// Options is the accepted shape of the options document.
type Options struct {
	Include   []string `json:"include"`
	Exclude   []string `json:"exclude"`
	SearchAll bool     `json:"search_all"`
}

// Scan scans data with the built-in signatures and default options.
func Scan(data []byte) *Buffer {
	return newBuffer(scan(data, binwalk.Options{}))
}

// ScanWithOptions is like Scan, configured by optionsJSON. Nil or empty
// options select the defaults.
func ScanWithOptions(data []byte, optionsJSON []byte) *Buffer {
	if len(data) == 0 {
		return newBuffer(scanFailure(errInvalidInput))
	}

	var opts Options
	if len(optionsJSON) > 0 {
		if err := json.Unmarshal(optionsJSON, &opts); err != nil {
			return newBuffer(scanFailure(errInvalidOptions))
		}
	}

	return newBuffer(scan(data, binwalk.Options{
		Include:   opts.Include,
		Exclude:   opts.Exclude,
		SearchAll: opts.SearchAll,
	}))
}

func scan(data []byte, opts binwalk.Options) (resp ScanResponse) {
	defer func() {
		if r := recover(); r != nil {
			resp = scanFailure(errScanPanic)
		}
	}()

	if len(data) == 0 {
		return scanFailure(errInvalidInput)
	}

	bw, err := newEngine(opts)
	if err != nil {
		return scanFailure(fmt.Sprintf("%s: %s", errConfigure, err))
	}

	results, err := bw.ScanContext(context.Background(), data)
	if err != nil {
		return scanFailure(err.Error())
	}

	resp = ScanResponse{Success: true, FileMap: make([]ScanResult, len(results))}
	for i, r := range results {
		resp.FileMap[i] = toScanResult(r)
	}
	return resp
}

func toScanResult(r signature.Result) ScanResult {
	return ScanResult{
		Offset:             r.Offset,
		ID:                 r.ID,
		Size:               r.Size,
		Name:               r.Name,
		Confidence:         r.Confidence,
		Description:        r.Description,
		AlwaysDisplay:      r.AlwaysDisplay,
		ExtractionDeclined: r.ExtractionDeclined,
	}
}

func scanFailure(msg string) ScanResponse {
	return ScanResponse{Error: &msg, FileMap: []ScanResult{}}
}

// Version reports the library version and the version of the signature
// engine.
func Version() *Buffer {
	return newBuffer(version())
}

func version() (resp VersionResponse) {
	defer func() {
		if r := recover(); r != nil {
			msg := errVersionPanic
			resp = VersionResponse{Error: &msg}
		}
	}()

	v, err := parseVersion(env.Version)
	if err != nil {
		msg := fmt.Sprintf("invalid version %q: %s", env.Version, err)
		return VersionResponse{Error: &msg, BinwalkVersion: env.EngineVersion}
	}

	return VersionResponse{
		Success:        true,
		Version:        v.String(),
		BinwalkVersion: env.EngineVersion,
	}
}

// ListSignatures lists the built-in signatures sorted by name.
func ListSignatures() *Buffer {
	return newBuffer(listSignatures())
}

func listSignatures() (resp SignatureListResponse) {
	defer func() {
		if r := recover(); r != nil {
			msg := errListPanic
			resp = SignatureListResponse{Error: &msg, Signatures: []SignatureInfo{}}
		}
	}()

	bw, err := newEngine(binwalk.Options{})
	if err != nil {
		msg := fmt.Sprintf("%s: %s", errConfigure, err)
		return SignatureListResponse{Error: &msg, Signatures: []SignatureInfo{}}
	}

	short := make(map[string]bool, len(bw.ShortSignatures))
	for _, sig := range bw.ShortSignatures {
		short[sig.Name] = true
	}

	sigs := make([]SignatureInfo, 0, len(bw.ExtractorLookupTable))
	for name := range bw.ExtractorLookupTable {
		sigs = append(sigs, SignatureInfo{Name: name, Short: short[name]})
	}
	slices.SortFunc(sigs, func(a, b SignatureInfo) int {
		return strings.Compare(a.Name, b.Name)
	})

	return SignatureListResponse{Success: true, Count: len(sigs), Signatures: sigs}
}
