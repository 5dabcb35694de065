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
	"github.com/ostafen/binwalk/internal/binwalk"
	"github.com/ostafen/binwalk/internal/scan"
	"github.com/spf13/cobra"
)

func DefineScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "scan <file>",
		Short:        "Scan a file for known signatures",
		Long:         "Scan a file for embedded files and executable code, optionally extracting them and scanning the extracted files in turn.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunScan,
	}

	cmd.Flags().StringSliceP("include", "y", nil, "only search for these signatures (glob patterns)")
	cmd.Flags().StringSliceP("exclude", "x", nil, "do not search for these signatures (glob patterns)")
	cmd.Flags().BoolP("search-all", "a", false, "report every match, including overlapping ones")
	cmd.Flags().BoolP("extract", "e", false, "extract the known file types")
	cmd.Flags().BoolP("matryoshka", "M", false, "recursively scan extracted files")
	cmd.Flags().StringP("directory", "C", "", "extract files into this directory (default \""+binwalk.DefaultOutputDirectory+"\")")
	cmd.Flags().Int("max-depth", binwalk.DefaultMaxDepth, "maximum recursion depth")
	cmd.Flags().Duration("timeout", binwalk.DefaultExtractTimeout, "maximum duration of a single extraction")
	cmd.Flags().IntP("threads", "t", 0, "number of parallel extractions (default: number of CPUs)")
	cmd.Flags().StringSlice("disable-extractor", nil, "never extract matches of these signatures")
	cmd.Flags().StringP("output", "o", "", "the path of the DFXML scan report, gzip-compressed when it ends in .gz")
	cmd.Flags().Bool("no-report", false, "do not write the DFXML scan report")
	cmd.Flags().StringP("json", "l", "", "write the analysis results as JSON to this file")
	cmd.Flags().String("log-file", "", "path of the session log")
	cmd.Flags().Bool("no-log", false, "disable logging")
	cmd.Flags().BoolP("progress", "p", false, "show a progress bar while scanning")

	return cmd
}

func RunScan(cmd *cobra.Command, args []string) error {
	opts, err := parseOptions(cmd)
	if err != nil {
		return err
	}
	return scan.Scan(cmd.Context(), args[0], opts, cmd.OutOrStdout())
}
