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
	"encoding/json"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/ostafen/binwalk/internal/entropy"
	"github.com/ostafen/binwalk/internal/mmap"
	"github.com/ostafen/binwalk/pkg/util/format"
	"github.com/spf13/cobra"
)

func DefineEntropyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "entropy <file>",
		Short:        "Compute the entropy of a file and locate high entropy regions",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE:         RunEntropy,
	}

	cmd.Flags().StringP("block-size", "b", "1KB", "size of the blocks whose entropy is computed")
	cmd.Flags().Bool("json", false, "print the full report as JSON")
	return cmd
}

func RunEntropy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	blockSize, err := format.ParseBytes(pickString(cmd, "block-size", cfg.EntropyBlockSize))
	if err != nil {
		return err
	}
	if blockSize == 0 || blockSize > 1<<30 {
		return fmt.Errorf("block size must be between 1B and 1GB")
	}

	f, err := mmap.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	report, err := entropy.Analyze(f.Data(), int(blockSize))
	if err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}

	out := cmd.OutOrStdout()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	rows := make([][]string, 0, len(report.Edges))
	for _, e := range report.Edges {
		edge := "Falling entropy edge"
		if e.Rising {
			edge = "Rising entropy edge"
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.Offset),
			fmt.Sprintf("0x%X", e.Offset),
			fmt.Sprintf("%s (%.6f)", edge, e.Entropy),
		})
	}

	table := tablewriter.NewWriter(out)
	table.Header("DECIMAL", "HEXADECIMAL", "ENTROPY")
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	s := report.Summary
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Blocks:  %d x %s\n", len(report.Blocks), format.FormatBytes(int64(report.BlockSize)))
	fmt.Fprintf(out, "Entropy: %s\n", strings.Join([]string{
		fmt.Sprintf("mean %.4f", s.Mean),
		fmt.Sprintf("median %.4f", s.Median),
		fmt.Sprintf("stddev %.4f", s.StdDev),
		fmt.Sprintf("min %.4f", s.Min),
		fmt.Sprintf("max %.4f", s.Max),
	}, ", "))
	return nil
}
