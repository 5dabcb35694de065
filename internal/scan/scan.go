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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/ostafen/binwalk/internal/binwalk"
	"github.com/ostafen/binwalk/internal/env"
	"github.com/ostafen/binwalk/internal/logger"
	"github.com/ostafen/binwalk/internal/mmap"
	"github.com/ostafen/binwalk/internal/signature"
	"github.com/ostafen/binwalk/pkg/dfxml"
	"github.com/ostafen/binwalk/pkg/pbar"
	fmtutil "github.com/ostafen/binwalk/pkg/util/format"
)

type Options struct {
	Include           []string
	Exclude           []string
	SearchAll         bool
	Extract           bool
	Recursive         bool
	OutputDirectory   string
	MaxDepth          int
	ExtractTimeout    time.Duration
	Workers           int
	DisableExtractors []string

	ReportFile    string
	DisableReport bool
	JSONFile      string
	LogFile       string
	DisableLog    bool
	LogLevel      slog.Level
	// Progress renders a progress bar on the output while scanning.
	Progress bool
}

// Session holds what a single command invocation shares: the engine, its
// log and the output stream for banners.
type Session struct {
	ID      string
	Engine  *binwalk.Binwalk
	Logger  *slog.Logger
	LogPath string

	out     io.Writer
	logFile *os.File
	bar     *pbar.ProgressBar
}

// NewSession configures the engine for target and opens the session log.
func NewSession(target string, opts Options, out io.Writer) (*Session, error) {
	s := &Session{
		ID:  GenSessionID(),
		out: out,
	}

	if !opts.DisableLog {
		s.LogPath = opts.LogFile
		if s.LogPath == "" {
			s.LogPath = absPath(filepath.Join(opts.OutputDirectory, "binwalk_"+s.ID) + ".log")
		}
	}

	log, logFile, err := logger.Setup(s.LogPath, opts.LogLevel)
	if err != nil {
		return nil, err
	}
	s.Logger, s.logFile = log, logFile

	var progress func(scanned, total int)
	if opts.Progress {
		s.bar = pbar.New(out)
		progress = func(scanned, total int) {
			s.bar.Update(int64(scanned), int64(total))
		}
	}

	bw, err := binwalk.Configure(binwalk.Options{
		TargetFile:        target,
		OutputDirectory:   opts.OutputDirectory,
		Include:           opts.Include,
		Exclude:           opts.Exclude,
		SearchAll:         opts.SearchAll,
		MaxDepth:          opts.MaxDepth,
		ExtractTimeout:    opts.ExtractTimeout,
		Workers:           opts.Workers,
		DisableExtractors: opts.DisableExtractors,
		Progress:          progress,
		Logger:            log,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Engine = bw
	return s, nil
}

func (s *Session) Close() error {
	if s.logFile == nil {
		return nil
	}
	err := s.logFile.Close()
	s.logFile = nil
	return err
}

func (s *Session) infof(format string, args ...any) {
	fmt.Fprintf(s.out, "[INFO] "+format+"\n", args...)
}

// Scan analyses filePath, extracting and recursing as opts request, prints
// the results and writes the session reports.
func Scan(ctx context.Context, filePath string, opts Options, out io.Writer) error {
	s, err := NewSession(filePath, opts, out)
	if err != nil {
		return err
	}
	defer s.Close()

	bw := s.Engine

	s.infof("Starting scanning operation...")
	s.infof("Source: \t%s", bw.BaseTargetFile)
	s.infof("Signatures: \t%d patterns", bw.SignatureCount)
	if opts.Extract || opts.Recursive {
		s.infof("Destination: \t%s", bw.BaseOutputDirectory)
	}
	outLog := "disabled"
	if s.LogPath != "" {
		outLog = s.LogPath
	}
	s.infof("Output Log: \t%s", outLog)

	start := time.Now()

	var (
		results []binwalk.AnalysisResults
		runErr  error
	)
	if opts.Recursive {
		results, runErr = bw.AnalyzeRecursive(ctx, bw.BaseTargetFile)
	} else {
		var res binwalk.AnalysisResults
		res, runErr = bw.Analyze(ctx, bw.BaseTargetFile, opts.Extract)
		if runErr == nil {
			results = []binwalk.AnalysisResults{res}
		}
	}
	if s.bar != nil {
		s.bar.Finish()
	}
	if runErr != nil && !errors.Is(runErr, binwalk.ErrRecursionLimitExceeded) {
		return runErr
	}
	if runErr != nil {
		s.Logger.Warn("recursion stopped", "err", runErr)
	}

	fmt.Fprintln(out)
	for _, res := range results {
		if err := PrintResults(out, res); err != nil {
			return err
		}
	}

	if len(results) > 0 && !opts.DisableReport {
		reportPath, err := s.writeReport(opts.ReportFile, results[0])
		if err != nil {
			return err
		}
		s.infof("Report saved to: \t%s", reportPath)
	}
	if opts.JSONFile != "" {
		if err := writeJSON(opts.JSONFile, results); err != nil {
			return err
		}
		s.infof("Results saved to: \t%s", absPath(opts.JSONFile))
	}

	matches, extracted, failed := summarize(results)

	s.infof("Scan completed!")
	s.infof("Files analysed: \t%d", len(results))
	s.infof("Signatures found: \t%d", matches)
	if opts.Extract || opts.Recursive {
		s.infof("Extractions: \t%d succeeded, %d failed", extracted, failed)
	}
	s.infof("Duration: \t%s", FormatDurationHMS(time.Since(start)))

	return runErr
}

func summarize(results []binwalk.AnalysisResults) (matches, extracted, failed int) {
	for _, res := range results {
		matches += len(res.FileMap)
		for _, r := range res.FileMap {
			ex, ok := res.Extractions[r.ID]
			switch {
			case !ok || r.ExtractionDeclined:
			case ex.Success:
				extracted++
			default:
				failed++
			}
		}
	}
	return matches, extracted, failed
}

func (s *Session) writeReport(reportFile string, res binwalk.AnalysisResults) (string, error) {
	if reportFile == "" {
		reportFile = fmt.Sprintf("report_%s.xml", s.ID)
	}

	w, err := CreateReport(reportFile)
	if err != nil {
		return "", err
	}

	var size uint64
	if fi, err := os.Stat(res.FilePath); err == nil {
		size = uint64(fi.Size())
	}

	if err := WriteReport(w, res, size); err != nil {
		_ = w.Close()
		return "", err
	}
	return absPath(reportFile), w.Close()
}

type gzipFileWriter struct {
	*gzip.Writer
	f *os.File
}

func (w *gzipFileWriter) Close() error {
	if err := w.Writer.Close(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}

type gzipFileReader struct {
	*gzip.Reader
	f *os.File
}

func (r *gzipFileReader) Close() error {
	_ = r.Reader.Close()
	return r.f.Close()
}

func isCompressedReport(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".gz")
}

// CreateReport creates a report file, gzip-compressed when its name ends in .gz.
func CreateReport(path string) (io.WriteCloser, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	if !isCompressedReport(path) {
		return f, nil
	}
	return &gzipFileWriter{Writer: gzip.NewWriter(f), f: f}, nil
}

// OpenReport opens a report created by CreateReport.
func OpenReport(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if !isCompressedReport(path) {
		return f, nil
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("report %q is not gzip-compressed: %w", path, err)
	}
	return &gzipFileReader{Reader: zr, f: f}, nil
}

// WriteReport writes the matches of res as a DFXML document.
func WriteReport(w io.Writer, res binwalk.AnalysisResults, imageSize uint64) error {
	reportWriter := dfxml.NewDFXMLWriter(w)

	err := reportWriter.WriteHeader(dfxml.DFXMLHeader{
		XmlOutput: dfxml.XmlOutputVersion,
		Metadata:  dfxml.DefaultMetadata,
		Creator: dfxml.Creator{
			Package:              env.AppName,
			Version:              env.Version,
			ExecutionEnvironment: dfxml.GetExecEnv(),
		},
		Source: dfxml.Source{
			ImageFilename: res.FilePath,
			ImageSize:     imageSize,
		},
	})
	if err != nil {
		return err
	}

	for _, r := range res.FileMap {
		err := reportWriter.WriteFileObject(dfxml.FileObject{
			Filename:    regionName(r),
			FileSize:    r.Size,
			Signature:   r.Name,
			Description: r.Description,
			Confidence:  r.Confidence,
			ByteRuns: dfxml.ByteRuns{
				Runs: []dfxml.ByteRun{{
					Offset:    0,
					ImgOffset: r.Offset,
					Length:    r.Size,
				}},
			},
		})
		if err != nil {
			return err
		}
	}
	return reportWriter.Close()
}

func regionName(r signature.Result) string {
	ext := r.Name
	if r.PreferredExtractor != nil && r.PreferredExtractor.Extension != "" {
		ext = r.PreferredExtractor.Extension
	}
	return fmt.Sprintf("%X_%s.%s", r.Offset, r.Name, ext)
}

func writeJSON(path string, results []binwalk.AnalysisResults) error {
	if results == nil {
		results = []binwalk.AnalysisResults{}
	}

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// ExtractReport extracts again the matches listed in a DFXML report of
// imagePath.
func ExtractReport(ctx context.Context, imagePath, reportPath string, opts Options, out io.Writer) error {
	reportFile, err := OpenReport(reportPath)
	if err != nil {
		return err
	}
	defer reportFile.Close()

	objects, err := dfxml.ReadFileObjects(reportFile)
	if err != nil {
		return fmt.Errorf("failed to read report %q: %w", reportPath, err)
	}

	s, err := NewSession(imagePath, opts, out)
	if err != nil {
		return err
	}
	defer s.Close()

	bw := s.Engine

	fileMap := make([]signature.Result, 0, len(objects))
	for _, o := range objects {
		if len(o.ByteRuns.Runs) < 1 {
			return fmt.Errorf("invalid report file: %q has no byte runs", o.Filename)
		}
		run := o.ByteRuns.Runs[0]

		r, err := bw.ResultFor(o.Signature, run.ImgOffset, run.Length, o.Confidence, o.Description)
		if err != nil {
			s.Logger.Warn("skipping report entry", "file", o.Filename, "err", err)
			continue
		}
		fileMap = append(fileMap, r)
	}

	s.infof("Extracting %d of %d report entries from %s", len(fileMap), len(objects), bw.BaseTargetFile)
	s.infof("Destination: \t%s", bw.BaseOutputDirectory)

	image, err := mmap.Open(bw.BaseTargetFile)
	if err != nil {
		return err
	}
	defer image.Close()

	extractions, err := bw.Extract(ctx, image.Data(), bw.BaseTargetFile, fileMap)
	if err != nil {
		return err
	}

	fmt.Fprintln(out)
	return PrintResults(out, binwalk.AnalysisResults{
		FilePath:    bw.BaseTargetFile,
		FileMap:     fileMap,
		Extractions: extractions,
	})
}

func absPath(path string) string {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return absPath
}

// GenSessionID creates a unique identifier for a scan session.
// The format is "YYYYMMDD_HHMMSS".
func GenSessionID() string {
	return time.Now().Format("20060102_150405")
}

// FormatDurationHMS formats a time.Duration into HH:MM:SS string.
// It handles durations that might be less than an hour or greater than 24 hours.
func FormatDurationHMS(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	totalSeconds := int64(d.Seconds())

	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
}

// FormatSize is FormatBytes for unsigned sizes.
func FormatSize(n uint64) string {
	return fmtutil.FormatBytes(int64(min(n, uint64(1<<63-1))))
}

func extractionStatus(r signature.Result, res binwalk.AnalysisResults) string {
	ex, ok := res.Extractions[r.ID]
	if !ok {
		return ""
	}
	if ex.Success {
		var size string
		if ex.Size != nil {
			size = " " + FormatSize(*ex.Size)
		}
		return fmt.Sprintf("extracted%s to %s", size, ex.OutputDirectory)
	}
	return strings.TrimSpace(ex.Error)
}
