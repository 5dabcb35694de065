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
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/ostafen/binwalk"

// metrics records engine activity on the global meter provider, which is a
// no-op unless the host application installs one.
type metrics struct {
	scans       metric.Int64Counter
	scannedSize metric.Int64Counter
	matches     metric.Int64Counter
	scanTime    metric.Float64Histogram
	extractions metric.Int64Counter
}

func newMetrics() *metrics {
	meter := otel.Meter(meterName)

	return &metrics{
		scans: counter(meter, "binwalk.scans",
			metric.WithDescription("Number of scanned buffers")),
		scannedSize: counter(meter, "binwalk.scanned_bytes",
			metric.WithDescription("Number of scanned bytes"),
			metric.WithUnit("By")),
		matches: counter(meter, "binwalk.matches",
			metric.WithDescription("Number of reported signature matches")),
		scanTime: histogram(meter, "binwalk.scan_duration",
			metric.WithDescription("Time spent scanning a buffer"),
			metric.WithUnit("s")),
		extractions: counter(meter, "binwalk.extractions",
			metric.WithDescription("Number of extraction attempts")),
	}
}

func counter(meter metric.Meter, name string, opts ...metric.Int64CounterOption) metric.Int64Counter {
	c, err := meter.Int64Counter(name, opts...)
	if err != nil || c == nil {
		return noop.Int64Counter{}
	}
	return c
}

func histogram(meter metric.Meter, name string, opts ...metric.Float64HistogramOption) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name, opts...)
	if err != nil || h == nil {
		return noop.Float64Histogram{}
	}
	return h
}

func (m *metrics) recordScan(ctx context.Context, size, matches int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.scans.Add(ctx, 1)
	m.scannedSize.Add(ctx, int64(size))
	m.matches.Add(ctx, int64(matches))
	m.scanTime.Record(ctx, elapsed.Seconds())
}

func (m *metrics) recordExtraction(ctx context.Context, name string, success bool) {
	if m == nil {
		return
	}
	m.extractions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("signature", name),
		attribute.Bool("success", success),
	))
}
