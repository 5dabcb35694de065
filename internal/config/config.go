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
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrNotFound = errors.New("config file not found")

// FileConfig is the on-disk YAML configuration shape. Unset fields are nil so
// that they can be layered under command line flags.
type FileConfig struct {
	Include           []string `yaml:"include"`
	Exclude           []string `yaml:"exclude"`
	SearchAll         *bool    `yaml:"search_all"`
	OutputDirectory   *string  `yaml:"output_directory"`
	MaxDepth          *int     `yaml:"max_depth"`
	ExtractTimeout    *string  `yaml:"extract_timeout"`
	Workers           *int     `yaml:"workers"`
	DisableExtractors []string `yaml:"disable_extractors"`
	LogLevel          *string  `yaml:"log_level"`
	LogFile           *string  `yaml:"log_file"`
	EntropyBlockSize  *string  `yaml:"entropy_block_size"`
}

// Timeout parses ExtractTimeout. It returns zero when the field is unset.
func (fc FileConfig) Timeout() (time.Duration, error) {
	if fc.ExtractTimeout == nil || *fc.ExtractTimeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(*fc.ExtractTimeout)
	if err != nil {
		return 0, fmt.Errorf("extract_timeout: %w", err)
	}
	return d, nil
}

// Merge returns fc with every field set in other overriding it.
func (fc FileConfig) Merge(other FileConfig) FileConfig {
	if other.Include != nil {
		fc.Include = other.Include
	}
	if other.Exclude != nil {
		fc.Exclude = other.Exclude
	}
	if other.SearchAll != nil {
		fc.SearchAll = other.SearchAll
	}
	if other.OutputDirectory != nil {
		fc.OutputDirectory = other.OutputDirectory
	}
	if other.MaxDepth != nil {
		fc.MaxDepth = other.MaxDepth
	}
	if other.ExtractTimeout != nil {
		fc.ExtractTimeout = other.ExtractTimeout
	}
	if other.Workers != nil {
		fc.Workers = other.Workers
	}
	if other.DisableExtractors != nil {
		fc.DisableExtractors = other.DisableExtractors
	}
	if other.LogLevel != nil {
		fc.LogLevel = other.LogLevel
	}
	if other.LogFile != nil {
		fc.LogFile = other.LogFile
	}
	if other.EntropyBlockSize != nil {
		fc.EntropyBlockSize = other.EntropyBlockSize
	}
	return fc
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadLocal searches dir for .binwalk.yml or .binwalk.yaml.
func LoadLocal(dir string) (FileConfig, error) {
	for _, name := range []string{".binwalk.yml", ".binwalk.yaml"} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return FileConfig{}, ErrNotFound
}

// LoadGlobal loads the global config file from XDG base directory or ~/.config.
func LoadGlobal() (FileConfig, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return FileConfig{}, ErrNotFound
	}

	p := filepath.Join(base, "binwalk", "config.yml")
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return FileConfig{}, ErrNotFound
}

// Load layers the local config of dir over the global one. Missing files are
// not an error.
func Load(dir string) (FileConfig, error) {
	global, err := LoadGlobal()
	if err != nil && !errors.Is(err, ErrNotFound) {
		return FileConfig{}, err
	}
	local, err := LoadLocal(dir)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return FileConfig{}, err
	}
	return global.Merge(local), nil
}
