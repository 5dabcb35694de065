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
package mmap

import (
	"fmt"
	"os"
)

// File is a read-only view of a whole file, memory-mapped where the platform
// allows it.
type File struct {
	data   []byte
	file   *os.File
	mapped bool
}

// Open maps the file at path. An empty file yields a File with no data.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to get file info for %q: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("%q is not a regular file", path)
	}

	size := fi.Size()
	if size == 0 {
		return &File{file: f}, nil
	}
	if int64(int(size)) != size {
		f.Close()
		return nil, fmt.Errorf("file %q is too large to map (%d bytes)", path, size)
	}

	data, mapped, err := mapFile(f, int(size))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap file %q with length %d: %w", path, size, err)
	}
	return &File{data: data, file: f, mapped: mapped}, nil
}

// Data returns the file content. It must not be used after Close.
func (m *File) Data() []byte {
	return m.data
}

// Len returns the size of the file.
func (m *File) Len() int {
	return len(m.data)
}

// Close unmaps the memory region and closes the underlying file.
func (m *File) Close() error {
	var err error
	if m.data != nil && m.mapped {
		if err = unmap(m.data); err != nil {
			err = fmt.Errorf("failed to munmap: %w", err)
		}
	}
	m.data = nil

	if m.file != nil {
		if closeErr := m.file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", closeErr)
		}
		m.file = nil
	}
	return err
}
