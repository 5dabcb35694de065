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
	"sort"

	"github.com/ostafen/binwalk/internal/extractor"
	"github.com/ostafen/binwalk/internal/signature"
)

// resolve turns parser hits into the reported results: sizes are clamped to
// the buffer, weak short matches are dropped and, unless searching for
// everything, each offset keeps its best match and matches inside an
// accepted one are suppressed.
func (bw *Binwalk) resolve(hits []hit, dataLen int) []signature.Result {
	kept := make([]hit, 0, len(hits))
	for _, h := range hits {
		if _, enabled := bw.order[h.sig.Name]; !enabled {
			continue
		}

		remaining := uint64(dataLen - h.offset)
		if h.match.Size == 0 {
			continue
		}
		h.match.Size = min(h.match.Size, remaining)

		if h.sig.Short && h.offset != 0 && h.match.Confidence < signature.ConfidenceMedium && !h.sig.AlwaysDisplay {
			continue
		}
		kept = append(kept, h)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].offset != kept[j].offset {
			return kept[i].offset < kept[j].offset
		}
		return kept[i].order < kept[j].order
	})
	kept = dedupe(kept)

	if !bw.searchAll {
		kept = suppressOverlaps(bestPerOffset(kept))
	}

	results := make([]signature.Result, 0, len(kept))
	for _, h := range kept {
		results = append(results, bw.toResult(h))
	}
	return results
}

// dedupe drops repeated (offset, signature) pairs, which happen when several
// magics of a signature match at the same position.
func dedupe(hits []hit) []hit {
	out := hits[:0]
	for i, h := range hits {
		if i > 0 && hits[i-1].offset == h.offset && hits[i-1].sig == h.sig {
			continue
		}
		out = append(out, h)
	}
	return out
}

// bestPerOffset keeps the most confident hit of each offset. Hits must be
// sorted by offset and table order, so that ties go to the earlier entry.
func bestPerOffset(hits []hit) []hit {
	var out []hit
	for i := 0; i < len(hits); {
		best := i
		j := i + 1
		for ; j < len(hits) && hits[j].offset == hits[i].offset; j++ {
			if hits[j].match.Confidence > hits[best].match.Confidence {
				best = j
			}
		}
		out = append(out, hits[best])
		i = j
	}
	return out
}

func suppressOverlaps(hits []hit) []hit {
	var (
		out []hit
		end uint64
	)
	for _, h := range hits {
		offset := uint64(h.offset)
		if offset < end && !h.sig.AlwaysDisplay {
			continue
		}
		out = append(out, h)
		if !h.sig.AlwaysDisplay {
			end = max(end, offset+h.match.Size)
		}
	}
	return out
}

func (bw *Binwalk) toResult(h hit) signature.Result {
	ex := h.sig.Extractor

	declined := h.match.ExtractionDeclined ||
		ex == nil ||
		ex.Utility.Kind() == extractor.KindNone ||
		bw.disabled[h.sig.Name]

	desc := h.match.Description
	if desc == "" {
		desc = h.sig.Description
	}

	offset := uint64(h.offset)
	return signature.Result{
		Offset:             offset,
		ID:                 signature.ResultID(h.sig.Name, offset, h.match.Size),
		Size:               h.match.Size,
		Name:               h.sig.Name,
		Confidence:         h.match.Confidence,
		Description:        desc,
		AlwaysDisplay:      h.sig.AlwaysDisplay,
		ExtractionDeclined: declined,
		PreferredExtractor: ex,
	}
}

// ResultFor rebuilds the result of a match found by an earlier scan, for
// instance one loaded from a report, so that it can be extracted again.
func (bw *Binwalk) ResultFor(name string, offset, size uint64, confidence uint8, description string) (signature.Result, error) {
	sig, ok := bw.table.Lookup(name)
	if !ok {
		return signature.Result{}, fmt.Errorf("%w: unknown or disabled signature %q", ErrConfiguration, name)
	}
	if size == 0 {
		return signature.Result{}, fmt.Errorf("%w: empty match at offset %d", ErrInvalidInput, offset)
	}

	return bw.toResult(hit{
		sig:    sig,
		order:  bw.order[name],
		offset: int(offset),
		match: signature.Match{
			Size:        size,
			Confidence:  confidence,
			Description: description,
		},
	}), nil
}
