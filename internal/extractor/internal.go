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
package extractor

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/bzip2"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ostafen/binwalk/internal/cpio"
	"github.com/ulikunitz/xz"
	"github.com/ulikunitz/xz/lzma"
)

// Built-in decoder identifiers.
const (
	DecoderCarve = "carve"
	DecoderGzip  = "gzip"
	DecoderBzip2 = "bzip2"
	DecoderXz    = "xz"
	DecoderLzma  = "lzma"
	DecoderZstd  = "zstd"
	DecoderZip   = "zip"
	DecoderTar   = "tar"
	DecoderCpio  = "cpio"
)

const (
	defaultOutputName = "decompressed.bin"
	writeBufferSize   = 1024 * 1024
)

var ErrUnsafePath = errors.New("unsafe path")

var decoders = map[string]DecodeFunc{
	DecoderCarve: carve,
	DecoderGzip:  decodeGzip,
	DecoderBzip2: decodeBzip2,
	DecoderXz:    decodeXz,
	DecoderLzma:  decodeLzma,
	DecoderZstd:  decodeZstd,
	DecoderZip:   decodeZip,
	DecoderTar:   decodeTar,
	DecoderCpio:  decodeCpio,
}

// Lookup returns the built-in decoder with the given identifier.
func Lookup(id string) (DecodeFunc, bool) {
	fn, ok := decoders[id]
	return fn, ok
}

// Decoders lists the built-in decoder identifiers.
func Decoders() []string {
	ids := make([]string, 0, len(decoders))
	for id := range decoders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SafeJoin joins an archive member name to root, refusing names which would
// resolve outside of it.
func SafeJoin(root, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	clean := filepath.Clean("/" + filepath.FromSlash(name))
	if clean == string(filepath.Separator) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	path := filepath.Join(root, clean)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}
	return path, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func writeFile(ctx context.Context, path string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriterSize(f, writeBufferSize)
	if _, err := io.Copy(w, ctxReader{ctx: ctx, r: r}); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	return f.Close()
}

func carve(ctx context.Context, job Job) (uint64, error) {
	ext := job.Extension
	if ext == "" {
		ext = "bin"
	}
	path := filepath.Join(job.OutputDir, fmt.Sprintf("%s.%s", job.Name, ext))
	if err := writeFile(ctx, path, bytes.NewReader(job.Data), 0o644); err != nil {
		return 0, err
	}
	return uint64(len(job.Data)), nil
}

// decompress writes the output of a single-stream decoder. The source is a
// bytes.Reader, which lets decoders stop exactly at the end of the stream.
func decompress(ctx context.Context, job Job, name string, src *bytes.Reader, r io.Reader) (uint64, error) {
	if err := writeFile(ctx, filepath.Join(job.OutputDir, name), r, 0o644); err != nil {
		return 0, err
	}
	return uint64(len(job.Data) - src.Len()), nil
}

func decodeGzip(ctx context.Context, job Job) (uint64, error) {
	src := bytes.NewReader(job.Data)
	zr, err := gzip.NewReader(src)
	if err != nil {
		return 0, err
	}
	defer zr.Close()
	zr.Multistream(false)

	name := defaultOutputName
	if zr.Name != "" {
		if base := filepath.Base(filepath.Clean("/" + zr.Name)); base != string(filepath.Separator) {
			name = base
		}
	}
	return decompress(ctx, job, name, src, zr)
}

func decodeBzip2(ctx context.Context, job Job) (uint64, error) {
	src := bytes.NewReader(job.Data)
	return decompress(ctx, job, defaultOutputName, src, bzip2.NewReader(src))
}

func decodeLzma(ctx context.Context, job Job) (uint64, error) {
	src := bytes.NewReader(job.Data)
	zr, err := lzma.NewReader(src)
	if err != nil {
		return 0, err
	}
	return decompress(ctx, job, defaultOutputName, src, zr)
}

func decodeXz(ctx context.Context, job Job) (uint64, error) {
	src := bytes.NewReader(job.Data)
	zr, err := xz.NewReader(src)
	if err != nil {
		return 0, err
	}
	if err := writeFile(ctx, filepath.Join(job.OutputDir, defaultOutputName), zr, 0o644); err != nil {
		return 0, err
	}
	return uint64(len(job.Data)), nil
}

func decodeZstd(ctx context.Context, job Job) (uint64, error) {
	zr, err := zstd.NewReader(bytes.NewReader(job.Data), zstd.WithDecoderConcurrency(1))
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	if err := writeFile(ctx, filepath.Join(job.OutputDir, defaultOutputName), zr, 0o644); err != nil {
		return 0, err
	}
	return uint64(len(job.Data)), nil
}

func decodeZip(ctx context.Context, job Job) (uint64, error) {
	zr, err := zip.NewReader(bytes.NewReader(job.Data), int64(len(job.Data)))
	if err != nil {
		return 0, err
	}

	for _, f := range zr.File {
		path, err := SafeJoin(job.OutputDir, f.Name)
		if err != nil {
			return 0, err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(path, 0o755); err != nil {
				return 0, err
			}
		case mode.IsRegular():
			rc, err := f.Open()
			if err != nil {
				return 0, fmt.Errorf("%s: %w", f.Name, err)
			}
			err = writeFile(ctx, path, rc, 0o644)
			rc.Close()
			if err != nil {
				return 0, fmt.Errorf("%s: %w", f.Name, err)
			}
		}
	}
	return uint64(len(job.Data)), nil
}

func decodeTar(ctx context.Context, job Job) (uint64, error) {
	src := bytes.NewReader(job.Data)
	tr := tar.NewReader(src)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}

		path, err := SafeJoin(job.OutputDir, hdr.Name)
		if err != nil {
			return 0, err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return 0, err
			}
		case tar.TypeReg:
			if err := writeFile(ctx, path, tr, 0o644); err != nil {
				return 0, fmt.Errorf("%s: %w", hdr.Name, err)
			}
		}
	}
	return uint64(len(job.Data) - src.Len()), nil
}

func decodeCpio(ctx context.Context, job Job) (uint64, error) {
	pos := 0
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if pos >= len(job.Data) {
			return 0, fmt.Errorf("cpio: missing trailer")
		}

		entry, err := cpio.ParseHeader(job.Data[pos:min(len(job.Data), pos+cpio.HeaderSize+cpio.MaxNameSize)])
		if err != nil {
			return 0, err
		}
		if entry.IsTrailer() {
			return uint64(min(len(job.Data), pos+entry.HeaderSize)), nil
		}

		dataStart := pos + entry.HeaderSize
		dataEnd := dataStart + int(entry.FileSize)
		if dataEnd > len(job.Data) {
			return 0, fmt.Errorf("cpio: truncated entry %q", entry.Name)
		}

		if entry.Name != "." {
			path, err := SafeJoin(job.OutputDir, entry.Name)
			if err != nil {
				return 0, err
			}

			switch entry.Mode & cpio.ModeTypeMask {
			case cpio.ModeDir:
				if err := os.MkdirAll(path, 0o755); err != nil {
					return 0, err
				}
			case cpio.ModeRegular:
				if err := writeFile(ctx, path, bytes.NewReader(job.Data[dataStart:dataEnd]), 0o644); err != nil {
					return 0, fmt.Errorf("%s: %w", entry.Name, err)
				}
			}
		}
		pos = dataStart + entry.DataSize
	}
}
