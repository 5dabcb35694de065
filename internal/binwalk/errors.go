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

import "errors"

var (
	// ErrInvalidInput reports an empty or unreadable input.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConfiguration reports unknown signature names or unusable paths.
	ErrConfiguration = errors.New("configuration error")
	// ErrExtractionFailure is recorded per match when an extractor fails.
	ErrExtractionFailure = errors.New("extraction failure")
	// ErrRecursionLimitExceeded reports a cycle or an extraction tree deeper
	// than the configured limit.
	ErrRecursionLimitExceeded = errors.New("recursion limit exceeded")
	// ErrInternalFault wraps a recovered panic.
	ErrInternalFault = errors.New("internal fault")
)
