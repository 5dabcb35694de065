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
package fuse

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ostafen/binwalk/pkg/dfxml"
)

var ErrInvalidReport = errors.New("invalid report file")

// Region is a byte range of the scanned file exposed as a read-only file.
type Region struct {
	Name   string
	Offset uint64
	Size   uint64
}

// RegionsFromReport turns the file objects of a scan report into regions of
// an image of imageSize bytes. Names are made flat and unique.
func RegionsFromReport(objs []dfxml.FileObject, imageSize uint64) ([]Region, error) {
	regions := make([]Region, 0, len(objs))
	seen := make(map[string]int, len(objs))

	for _, o := range objs {
		runs := o.ByteRuns.Runs
		if len(runs) < 1 {
			return nil, fmt.Errorf("%w: %q has no byte runs", ErrInvalidReport, o.Filename)
		}

		run := runs[0]
		if run.ImgOffset > imageSize || run.Length > imageSize-run.ImgOffset {
			return nil, fmt.Errorf("%w: %q exceeds the image size (%d)", ErrInvalidReport, o.Filename, imageSize)
		}

		name := flatName(o.Filename)
		if n := seen[name]; n > 0 {
			ext := filepath.Ext(name)
			name = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), n, ext)
		}
		seen[flatName(o.Filename)]++

		regions = append(regions, Region{
			Name:   name,
			Offset: run.ImgOffset,
			Size:   run.Length,
		})
	}
	return regions, nil
}

func flatName(name string) string {
	name = strings.ReplaceAll(filepath.ToSlash(name), "/", "_")
	if name == "" || name == "." || name == ".." {
		return "region"
	}
	return name
}
