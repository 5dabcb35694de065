package scan

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/ostafen/binwalk/internal/binwalk"
	"github.com/ostafen/binwalk/pkg/dfxml"
	"github.com/stretchr/testify/require"
)

func writeGzipFile(t *testing.T, dir, name, payload string) string {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("firmware header ")
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(payload))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestFormatDurationHMS(t *testing.T) {
	require.Equal(t, "0.50s", FormatDurationHMS(500*time.Millisecond))
	require.Equal(t, "00:00:05", FormatDurationHMS(5*time.Second))
	require.Equal(t, "01:01:01", FormatDurationHMS(time.Hour+time.Minute+time.Second))
	require.Equal(t, "25:00:00", FormatDurationHMS(25*time.Hour))
}

func TestGenSessionID(t *testing.T) {
	_, err := time.Parse("20060102_150405", GenSessionID())
	require.NoError(t, err)
}

func TestScanWritesReports(t *testing.T) {
	dir := t.TempDir()
	target := writeGzipFile(t, dir, "fw.bin", "payload")

	opts := Options{
		Extract:         true,
		OutputDirectory: filepath.Join(dir, "out"),
		ReportFile:      filepath.Join(dir, "report.xml"),
		JSONFile:        filepath.Join(dir, "results.json"),
		DisableLog:      true,
	}

	var out bytes.Buffer
	require.NoError(t, Scan(context.Background(), target, opts, &out))
	require.Contains(t, out.String(), "Scan completed!")
	require.Contains(t, out.String(), "0x10")

	f, err := os.Open(opts.ReportFile)
	require.NoError(t, err)
	defer f.Close()

	objects, err := dfxml.ReadFileObjects(f)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.Equal(t, "gzip", objects[0].Signature)
	require.Equal(t, uint64(16), objects[0].ByteRuns.Runs[0].ImgOffset)

	data, err := os.ReadFile(opts.JSONFile)
	require.NoError(t, err)

	var results []binwalk.AnalysisResults
	require.NoError(t, json.Unmarshal(data, &results))
	require.Len(t, results, 1)
	require.Len(t, results[0].Extractions, 1)
	for _, ex := range results[0].Extractions {
		require.True(t, ex.Success)
	}
}

func TestExtractReport(t *testing.T) {
	dir := t.TempDir()
	target := writeGzipFile(t, dir, "fw.bin", "from the report")

	scanOpts := Options{
		ReportFile: filepath.Join(dir, "report.xml"),
		DisableLog: true,
	}
	require.NoError(t, Scan(context.Background(), target, scanOpts, &bytes.Buffer{}))

	outDir := filepath.Join(dir, "again")
	var out bytes.Buffer
	err := ExtractReport(context.Background(), target, scanOpts.ReportFile, Options{
		OutputDirectory: outDir,
		DisableLog:      true,
	}, &out)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(outDir, "fw.bin.extracted", "10_gzip", "decompressed.bin"))
	require.NoError(t, err)
	require.Equal(t, "from the report", string(content))
}

func TestScanWritesCompressedReport(t *testing.T) {
	dir := t.TempDir()
	target := writeGzipFile(t, dir, "fw.bin", "compressed report")

	reportPath := filepath.Join(dir, "report.xml.gz")
	require.NoError(t, Scan(context.Background(), target, Options{
		ReportFile: reportPath,
		DisableLog: true,
	}, &bytes.Buffer{}))

	raw, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	require.Equal(t, []byte{0x1F, 0x8B}, raw[:2])

	r, err := OpenReport(reportPath)
	require.NoError(t, err)
	defer r.Close()

	objects, err := dfxml.ReadFileObjects(r)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	require.Equal(t, "gzip", objects[0].Signature)

	outDir := filepath.Join(dir, "again")
	require.NoError(t, ExtractReport(context.Background(), target, reportPath, Options{
		OutputDirectory: outDir,
		DisableLog:      true,
	}, &bytes.Buffer{}))

	content, err := os.ReadFile(filepath.Join(outDir, "fw.bin.extracted", "10_gzip", "decompressed.bin"))
	require.NoError(t, err)
	require.Equal(t, "compressed report", string(content))
}

func TestOpenReport_NotCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.xml.gz")
	require.NoError(t, os.WriteFile(path, []byte("<dfxml/>"), 0o644))

	_, err := OpenReport(path)
	require.Error(t, err)
}

func TestPrintResultsEmpty(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, PrintResults(&out, binwalk.AnalysisResults{FilePath: "/tmp/none"}))
	require.Contains(t, out.String(), "no signatures found")
}
