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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// Placeholders substituted in the arguments of external extractors.
const (
	SourcePlaceholder = "%e"
	OutputPlaceholder = "%d"
)

var (
	ErrDeclined       = errors.New("extraction declined")
	ErrUnknownDecoder = errors.New("unknown decoder")
	ErrTimeout        = errors.New("extractor timed out")
	ErrExitCode       = errors.New("unexpected exit code")
	ErrPanic          = errors.New("extractor panicked")
)

const maxStderr = 4096

// Run extracts job with ex, bounding the whole attempt by timeout (no bound
// when zero). Panics raised by decoders are returned as errors.
func Run(ctx context.Context, ex *Extractor, job Job, timeout time.Duration) (size uint64, err error) {
	defer func() {
		if r := recover(); r != nil {
			size, err = 0, fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()

	if ex == nil {
		return 0, ErrDeclined
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	job.Extension = ex.Extension

	switch ex.Utility.Kind() {
	case KindInternal:
		fn := ex.Utility.fn
		if fn == nil {
			var ok bool
			if fn, ok = Lookup(ex.Utility.Value()); !ok {
				return 0, fmt.Errorf("%w: %q", ErrUnknownDecoder, ex.Utility.Value())
			}
		}
		size, err = fn(ctx, job)
	case KindExternal:
		size, err = runExternal(ctx, ex, job)
	default:
		return 0, ErrDeclined
	}

	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return 0, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
	return size, err
}

// runExternal materializes the matched range next to the output and runs
// the command on it. The carved file is removed once the command exits.
func runExternal(ctx context.Context, ex *Extractor, job Job) (uint64, error) {
	command := ex.Utility.Value()
	path, err := exec.LookPath(command)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", command, err)
	}

	ext := ex.Extension
	if ext == "" {
		ext = "bin"
	}
	carved := filepath.Join(job.OutputDir, fmt.Sprintf("%s.%s", job.Name, ext))
	if err := os.WriteFile(carved, job.Data, 0o644); err != nil {
		return 0, err
	}
	defer os.Remove(carved)

	args := make([]string, len(ex.Arguments))
	for i, arg := range ex.Arguments {
		arg = strings.ReplaceAll(arg, SourcePlaceholder, carved)
		args[i] = strings.ReplaceAll(arg, OutputPlaceholder, job.OutputDir)
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = job.OutputDir
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err = cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}

	code := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return 0, fmt.Errorf("%s: %w", command, err)
		}
		code = exitErr.ExitCode()
	}

	exitCodes := ex.ExitCodes
	if len(exitCodes) == 0 {
		exitCodes = []int{0}
	}
	if !slices.Contains(exitCodes, code) {
		msg := stderr.String()
		if len(msg) > maxStderr {
			msg = msg[:maxStderr]
		}
		return 0, fmt.Errorf("%w: %s exited with %d: %s", ErrExitCode, command, code, strings.TrimSpace(msg))
	}
	return uint64(len(job.Data)), nil
}
