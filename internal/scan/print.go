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
package scan

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/ostafen/binwalk/internal/binwalk"
	"github.com/ostafen/binwalk/internal/signature"
)

// PrintResults renders the matches of res, one row per match, followed by
// the extraction outcome when extraction ran.
func PrintResults(w io.Writer, res binwalk.AnalysisResults) error {
	fmt.Fprintf(w, "%s\n", res.FilePath)
	if len(res.FileMap) == 0 {
		fmt.Fprintln(w, "  no signatures found")
		fmt.Fprintln(w)
		return nil
	}

	extracted := len(res.Extractions) > 0

	header := []any{"DECIMAL", "HEXADECIMAL", "SIZE", "DESCRIPTION"}
	if extracted {
		header = append(header, "EXTRACTION")
	}

	rows := make([][]string, 0, len(res.FileMap))
	for _, r := range res.FileMap {
		row := []string{
			fmt.Sprintf("%d", r.Offset),
			fmt.Sprintf("0x%X", r.Offset),
			FormatSize(r.Size),
			describe(r),
		}
		if extracted {
			row = append(row, extractionStatus(r, res))
		}
		rows = append(rows, row)
	}

	table := tablewriter.NewWriter(w)
	table.Header(header...)
	if err := table.Bulk(rows); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintln(w)
	return nil
}

func describe(r signature.Result) string {
	var sb strings.Builder
	sb.WriteString(r.Description)
	switch {
	case r.Confidence >= signature.ConfidenceHigh:
	case r.Confidence >= signature.ConfidenceMedium:
		sb.WriteString(" (medium confidence)")
	default:
		sb.WriteString(" (low confidence)")
	}
	return sb.String()
}
