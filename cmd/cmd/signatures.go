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
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/ostafen/binwalk/internal/binwalk"
	"github.com/ostafen/binwalk/internal/extractor"
	"github.com/ostafen/binwalk/internal/signature"
	"github.com/spf13/cobra"
)

func DefineSignaturesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "signatures",
		Short:        "List the supported signatures and their extractors",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         RunSignatures,
	}

	cmd.Flags().StringSliceP("include", "y", nil, "only list these signatures (glob patterns)")
	cmd.Flags().StringSliceP("exclude", "x", nil, "do not list these signatures (glob patterns)")
	return cmd
}

func RunSignatures(cmd *cobra.Command, args []string) error {
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")

	bw, err := binwalk.Configure(binwalk.Options{Include: include, Exclude: exclude})
	if err != nil {
		return err
	}

	sigs := bw.Signatures()
	sort.Slice(sigs, func(i, j int) bool {
		return sigs[i].Name < sigs[j].Name
	})

	rows := make([][]string, 0, len(sigs))
	for _, sig := range sigs {
		rows = append(rows, []string{
			sig.Name,
			sig.Description,
			magicString(sig),
			fmt.Sprintf("%t", sig.Short),
			extractorString(sig.Extractor),
		})
	}

	out := cmd.OutOrStdout()

	table := tablewriter.NewWriter(out)
	table.Header("NAME", "DESCRIPTION", "MAGIC", "SHORT", "EXTRACTOR")
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d signatures, %d magic patterns\n", len(sigs), bw.SignatureCount)
	fmt.Fprintf(out, "Internal decoders: %s\n", strings.Join(extractor.Decoders(), ", "))
	return nil
}

func magicString(sig *signature.Signature) string {
	parts := make([]string, len(sig.Magic))
	for i, m := range sig.Magic {
		parts[i] = fmt.Sprintf("%q", m)
	}
	s := strings.Join(parts, " ")
	if sig.MagicOffset > 0 {
		s += fmt.Sprintf(" @%d", sig.MagicOffset)
	}
	return s
}

func extractorString(ex *extractor.Extractor) string {
	if ex == nil || ex.Utility.Kind() == extractor.KindNone {
		return "none"
	}
	return fmt.Sprintf("%s (%s)", ex.Utility.Value(), ex.Utility.Kind())
}
