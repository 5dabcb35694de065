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
package signature

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrUnknownSignature is returned when an include or exclude pattern does not
// select any known signature.
var ErrUnknownSignature = errors.New("unknown signature")

// Table is an ordered, immutable collection of signatures. The position of a
// signature breaks confidence ties: earlier entries win.
type Table struct {
	sigs   []*Signature
	byName map[string]*Signature
}

func NewTable(sigs []*Signature) (*Table, error) {
	t := &Table{
		sigs:   make([]*Signature, 0, len(sigs)),
		byName: make(map[string]*Signature, len(sigs)),
	}

	for _, sig := range sigs {
		if sig.Name == "" {
			return nil, fmt.Errorf("signature without name")
		}
		if _, exists := t.byName[sig.Name]; exists {
			return nil, fmt.Errorf("duplicate signature %q", sig.Name)
		}
		if len(sig.Magic) == 0 || sig.Parse == nil {
			return nil, fmt.Errorf("signature %q: missing magic or parser", sig.Name)
		}
		for _, m := range sig.Magic {
			if len(m) == 0 {
				return nil, fmt.Errorf("signature %q: empty magic", sig.Name)
			}
		}
		if sig.MagicOffset < 0 {
			return nil, fmt.Errorf("signature %q: negative magic offset", sig.Name)
		}

		t.sigs = append(t.sigs, sig)
		t.byName[sig.Name] = sig
	}
	return t, nil
}

// Signatures returns the signatures in table order.
func (t *Table) Signatures() []*Signature {
	return append([]*Signature(nil), t.sigs...)
}

func (t *Table) Len() int {
	return len(t.sigs)
}

func (t *Table) Lookup(name string) (*Signature, bool) {
	sig, ok := t.byName[name]
	return sig, ok
}

// Names returns the signature names in lexicographic order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.sigs))
	for _, sig := range t.sigs {
		names = append(names, sig.Name)
	}
	sort.Strings(names)
	return names
}

// Short returns the short signatures in table order.
func (t *Table) Short() []*Signature {
	var short []*Signature
	for _, sig := range t.sigs {
		if sig.Short {
			short = append(short, sig)
		}
	}
	return short
}

// PatternCount returns the number of magic patterns in the table.
func (t *Table) PatternCount() int {
	n := 0
	for _, sig := range t.sigs {
		n += len(sig.Magic)
	}
	return n
}

// Filter returns a table restricted to the signatures selected by include
// (every signature when include is empty) minus those selected by exclude.
// Patterns use glob syntax over signature names; a pattern which selects no
// signature is an error.
func (t *Table) Filter(include, exclude []string) (*Table, error) {
	included, err := t.selectNames(include)
	if err != nil {
		return nil, err
	}
	excluded, err := t.selectNames(exclude)
	if err != nil {
		return nil, err
	}

	var sigs []*Signature
	for _, sig := range t.sigs {
		if len(include) > 0 && !included[sig.Name] {
			continue
		}
		if excluded[sig.Name] {
			continue
		}
		sigs = append(sigs, sig)
	}
	return NewTable(sigs)
}

func (t *Table) selectNames(patterns []string) (map[string]bool, error) {
	selected := make(map[string]bool)
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("%w: malformed pattern %q", ErrUnknownSignature, pattern)
		}

		matched := false
		for _, sig := range t.sigs {
			ok, err := doublestar.Match(pattern, sig.Name)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", ErrUnknownSignature, err)
			}
			if ok {
				selected[sig.Name] = true
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSignature, pattern)
		}
	}
	return selected, nil
}
