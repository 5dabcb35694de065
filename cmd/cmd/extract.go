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

func DefineExtractCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract <file> <report_file>",
		Short: "Extract the matches listed in a scan report",
		Long: `The 'extract' command runs the extractors of the matches recorded in a DFXML report produced by 'scan',
without scanning the file again.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE:         RunExtract,
	}

	cmd.Flags().StringP("directory", "C", "", "extract files into this directory (default \""+binwalk.DefaultOutputDirectory+"\")")
	cmd.Flags().Duration("timeout", binwalk.DefaultExtractTimeout, "maximum duration of a single extraction")
	cmd.Flags().IntP("threads", "t", 0, "number of parallel extractions (default: number of CPUs)")
	cmd.Flags().StringSlice("disable-extractor", nil, "never extract matches of these signatures")
	cmd.Flags().String("log-file", "", "path of the session log")
	cmd.Flags().Bool("no-log", false, "disable logging")

	return cmd
}

func RunExtract(cmd *cobra.Command, args []string) error {
	opts, err := parseOptions(cmd)
	if err != nil {
		return err
	}
	return scan.ExtractReport(cmd.Context(), args[0], args[1], opts, cmd.OutOrStdout())
}
