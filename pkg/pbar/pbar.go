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
package pbar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ostafen/binwalk/pkg/util/format"
)

const (
	MinRefreshRate = time.Millisecond * 500

	barLength = 20
)

// ProgressBar renders the progress of a scan on a single terminal line.
// It is not safe for concurrent use.
type ProgressBar struct {
	w   io.Writer
	now func() time.Time

	TotalBytes     int64
	ProcessedBytes int64
	FilesScanned   int

	lastUpdateTime     time.Time
	lastProcessedBytes int64
}

func New(w io.Writer) *ProgressBar {
	return &ProgressBar{w: w, now: time.Now}
}

// Update records that processed out of total bytes of the current file have
// been scanned. A file is counted once its last byte is reported.
func (pb *ProgressBar) Update(processed, total int64) {
	if processed < pb.ProcessedBytes || total != pb.TotalBytes {
		// A new file started.
		pb.lastProcessedBytes = 0
	}
	pb.TotalBytes, pb.ProcessedBytes = total, processed

	done := processed >= total
	if done {
		pb.FilesScanned++
	}
	pb.Render(done)
}

// Render prints the bar, at most once every MinRefreshRate unless forced.
func (pb *ProgressBar) Render(force bool) {
	now := pb.now()
	if !force && !pb.lastUpdateTime.IsZero() && now.Sub(pb.lastUpdateTime) < MinRefreshRate {
		return
	}

	percentage := 100.0
	if pb.TotalBytes > 0 {
		percentage = float64(pb.ProcessedBytes) / float64(pb.TotalBytes) * 100
	}

	filledLen := min(barLength, int(float64(barLength)*percentage/100))
	bar := strings.Repeat("=", filledLen)
	if filledLen < barLength {
		bar += ">" + strings.Repeat(" ", barLength-filledLen-1)
	}

	var speed float64
	if !pb.lastUpdateTime.IsZero() {
		if elapsed := now.Sub(pb.lastUpdateTime).Seconds(); elapsed > 0 {
			speed = float64(pb.ProcessedBytes-pb.lastProcessedBytes) / elapsed
		}
	}

	eta := "calculating..."
	switch {
	case pb.ProcessedBytes >= pb.TotalBytes:
		eta = "done"
	case speed > 0:
		secs := float64(pb.TotalBytes-pb.ProcessedBytes) / speed
		eta = fmt.Sprintf("%02d:%02d:%02d remaining", int(secs/3600), int(secs/60)%60, int(secs)%60)
	}

	pb.lastUpdateTime = now
	pb.lastProcessedBytes = pb.ProcessedBytes

	// The trailing spaces clear leftovers of a longer previous line.
	fmt.Fprintf(pb.w, "\r[INFO] Progress: [%s] %3.0f%% (%s/%s) | Files Scanned: %d | @ %.2fMB/s [%s]    ",
		bar,
		percentage,
		format.FormatBytes(pb.ProcessedBytes),
		format.FormatBytes(pb.TotalBytes),
		pb.FilesScanned,
		max(speed, 0)/format.MB,
		eta)
}

// Finish moves to the next line after the bar.
func (pb *ProgressBar) Finish() {
	fmt.Fprintln(pb.w)
}
