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
package entropy

import (
	"errors"
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
)

const (
	DefaultBlockSize = 1024

	// RisingEdge and FallingEdge are the normalized entropy thresholds used
	// to mark the start and the end of a high entropy region.
	RisingEdge  = 0.95
	FallingEdge = 0.85
)

var ErrEmptyInput = errors.New("empty input")

type Block struct {
	Offset  uint64  `json:"offset"`
	Entropy float64 `json:"entropy"`
}

type Edge struct {
	Offset  uint64  `json:"offset"`
	Entropy float64 `json:"entropy"`
	Rising  bool    `json:"rising"`
}

// Summary describes the distribution of the block entropies.
type Summary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stddev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

type Report struct {
	BlockSize int     `json:"block_size"`
	Blocks    []Block `json:"blocks"`
	Edges     []Edge  `json:"edges"`
	Summary   Summary `json:"summary"`
}

// Shannon returns the entropy of data normalized to [0, 1].
func Shannon(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}

	var counts [256]int
	for _, b := range data {
		counts[b]++
	}

	var e float64
	n := float64(len(data))
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / n
		e += p * math.Log2(p)
	}
	return -e / 8
}

// Analyze computes the entropy of every blockSize bytes of data and detects
// the edges of high entropy regions.
func Analyze(data []byte, blockSize int) (Report, error) {
	if len(data) == 0 {
		return Report{}, ErrEmptyInput
	}
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	r := Report{
		BlockSize: blockSize,
		Blocks:    make([]Block, 0, (len(data)+blockSize-1)/blockSize),
		Edges:     []Edge{},
	}

	values := make([]float64, 0, cap(r.Blocks))
	high := false
	for off := 0; off < len(data); off += blockSize {
		end := min(off+blockSize, len(data))
		e := Shannon(data[off:end])

		r.Blocks = append(r.Blocks, Block{Offset: uint64(off), Entropy: e})
		values = append(values, e)

		switch {
		case !high && e >= RisingEdge:
			high = true
			r.Edges = append(r.Edges, Edge{Offset: uint64(off), Entropy: e, Rising: true})
		case high && e < FallingEdge:
			high = false
			r.Edges = append(r.Edges, Edge{Offset: uint64(off), Entropy: e})
		}
	}

	summary, err := summarize(values)
	if err != nil {
		return Report{}, err
	}
	r.Summary = summary
	return r, nil
}

func summarize(values []float64) (Summary, error) {
	data := stats.Float64Data(values)

	var (
		s   Summary
		err error
	)
	if s.Mean, err = data.Mean(); err != nil {
		return s, fmt.Errorf("mean: %w", err)
	}
	if s.Median, err = data.Median(); err != nil {
		return s, fmt.Errorf("median: %w", err)
	}
	if s.StdDev, err = data.StandardDeviation(); err != nil {
		return s, fmt.Errorf("standard deviation: %w", err)
	}
	if s.Min, err = data.Min(); err != nil {
		return s, fmt.Errorf("min: %w", err)
	}
	if s.Max, err = data.Max(); err != nil {
		return s, fmt.Errorf("max: %w", err)
	}
	return s, nil
}
