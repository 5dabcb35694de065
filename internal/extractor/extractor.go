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
	"context"
	"encoding/json"
	"fmt"
)

// Kind tells how an extractor is run.
type Kind int

const (
	KindNone Kind = iota
	KindInternal
	KindExternal
)

func (k Kind) String() string {
	switch k {
	case KindInternal:
		return "internal"
	case KindExternal:
		return "external"
	}
	return "none"
}

// DecodeFunc is an in-process extractor. It writes whatever it decodes from
// job.Data below job.OutputDir and returns the number of input bytes consumed.
type DecodeFunc func(ctx context.Context, job Job) (uint64, error)

// Type identifies the utility behind an extractor: an external command, an
// internal decoder or nothing at all.
type Type struct {
	kind  Kind
	value string
	fn    DecodeFunc
}

// External returns a Type running the given command.
func External(command string) Type {
	return Type{kind: KindExternal, value: command}
}

// Internal returns a Type referring to a built-in decoder by identifier.
func Internal(id string) Type {
	return Type{kind: KindInternal, value: id}
}

// InternalFunc returns an internal Type backed by a custom decoder.
func InternalFunc(id string, fn DecodeFunc) Type {
	return Type{kind: KindInternal, value: id, fn: fn}
}

// None returns a Type which never extracts.
func None() Type {
	return Type{}
}

func (t Type) Kind() Kind {
	return t.kind
}

// Value returns the command or decoder identifier, empty for KindNone.
func (t Type) Value() string {
	return t.value
}

func (t Type) String() string {
	if t.kind == KindNone {
		return "none"
	}
	return t.value
}

func (t Type) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind  string `json:"kind"`
		Value string `json:"value"`
	}{
		Kind:  t.kind.String(),
		Value: t.value,
	})
}

// Extractor describes how the data matched by a signature is extracted.
type Extractor struct {
	Utility      Type     `json:"utility"`
	Extension    string   `json:"extension"`
	Arguments    []string `json:"arguments"`
	ExitCodes    []int    `json:"exit_codes"`
	DoNotRecurse bool     `json:"do_not_recurse"`
}

func (e *Extractor) String() string {
	return fmt.Sprintf("Extractor(utility=%s, kind=%s, extension=%q, do_not_recurse=%t)",
		e.Utility, e.Utility.Kind(), e.Extension, e.DoNotRecurse)
}

// Result reports the outcome of an extraction attempt.
type Result struct {
	Size            *uint64 `json:"size"`
	Success         bool    `json:"success"`
	Extractor       string  `json:"extractor"`
	DoNotRecurse    bool    `json:"do_not_recurse"`
	OutputDirectory string  `json:"output_directory"`
	Error           string  `json:"error,omitempty"`
}

// Job is the unit of work handed to an extractor.
type Job struct {
	// Name of the signature which produced the match.
	Name string
	// Data is the matched byte range.
	Data []byte
	// OutputDir is an existing directory owned exclusively by this job.
	OutputDir string
	// Extension of the carved file, when the extractor needs one.
	Extension string
}
