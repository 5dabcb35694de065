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
package cmd

import (
	"os"
	"time"

	"github.com/ostafen/binwalk/internal/config"
	"github.com/ostafen/binwalk/internal/logger"
	"github.com/ostafen/binwalk/internal/scan"
	"github.com/spf13/cobra"
)

// loadConfig returns the file config: the one passed with --config, or the
// local one layered over the global one.
func loadConfig(cmd *cobra.Command) (config.FileConfig, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadFile(path)
	}

	wd, err := os.Getwd()
	if err != nil {
		return config.FileConfig{}, err
	}
	return config.Load(wd)
}

// parseOptions merges command line flags over the file config. Flags
// win only when set explicitly.
func parseOptions(cmd *cobra.Command) (scan.Options, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return scan.Options{}, err
	}

	timeout, err := cfg.Timeout()
	if err != nil {
		return scan.Options{}, err
	}

	opts := scan.Options{
		Include:           pickStrings(cmd, "include", cfg.Include),
		Exclude:           pickStrings(cmd, "exclude", cfg.Exclude),
		SearchAll:         pickBool(cmd, "search-all", cfg.SearchAll),
		Extract:           pickBool(cmd, "extract", nil),
		Recursive:         pickBool(cmd, "matryoshka", nil),
		OutputDirectory:   pickString(cmd, "directory", cfg.OutputDirectory),
		MaxDepth:          pickInt(cmd, "max-depth", cfg.MaxDepth),
		ExtractTimeout:    pickDuration(cmd, "timeout", timeout),
		Workers:           pickInt(cmd, "threads", cfg.Workers),
		DisableExtractors: pickStrings(cmd, "disable-extractor", cfg.DisableExtractors),
		ReportFile:        pickString(cmd, "output", nil),
		DisableReport:     pickBool(cmd, "no-report", nil),
		JSONFile:          pickString(cmd, "json", nil),
		LogFile:           pickString(cmd, "log-file", cfg.LogFile),
		DisableLog:        pickBool(cmd, "no-log", nil),
		LogLevel:          logger.ParseLevel(pickString(cmd, "log-level", cfg.LogLevel)),
		Progress:          pickBool(cmd, "progress", nil),
	}
	return opts, nil
}

func hasFlag(cmd *cobra.Command, name string) bool {
	return cmd.Flags().Lookup(name) != nil
}

func pickString(cmd *cobra.Command, name string, fromConfig *string) string {
	if !hasFlag(cmd, name) {
		return deref(fromConfig)
	}
	v, _ := cmd.Flags().GetString(name)
	if cmd.Flags().Changed(name) || fromConfig == nil {
		return v
	}
	return *fromConfig
}

func pickStrings(cmd *cobra.Command, name string, fromConfig []string) []string {
	if !hasFlag(cmd, name) {
		return fromConfig
	}
	v, _ := cmd.Flags().GetStringSlice(name)
	if cmd.Flags().Changed(name) || fromConfig == nil {
		return v
	}
	return fromConfig
}

func pickBool(cmd *cobra.Command, name string, fromConfig *bool) bool {
	if !hasFlag(cmd, name) {
		return deref(fromConfig)
	}
	v, _ := cmd.Flags().GetBool(name)
	if cmd.Flags().Changed(name) || fromConfig == nil {
		return v
	}
	return *fromConfig
}

func pickInt(cmd *cobra.Command, name string, fromConfig *int) int {
	if !hasFlag(cmd, name) {
		return deref(fromConfig)
	}
	v, _ := cmd.Flags().GetInt(name)
	if cmd.Flags().Changed(name) || fromConfig == nil {
		return v
	}
	return *fromConfig
}

func pickDuration(cmd *cobra.Command, name string, fromConfig time.Duration) time.Duration {
	if !hasFlag(cmd, name) {
		return fromConfig
	}
	v, _ := cmd.Flags().GetDuration(name)
	if cmd.Flags().Changed(name) || fromConfig == 0 {
		return v
	}
	return fromConfig
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
