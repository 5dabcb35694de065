package binwalk_test

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/ostafen/binwalk/internal/binwalk"
	"github.com/ostafen/binwalk/internal/extractor"
	"github.com/ostafen/binwalk/internal/signature"
	"github.com/stretchr/testify/require"
)

// fixed returns a signature whose matches span size bytes.
func fixed(name, magic string, size uint64, confidence uint8) *signature.Signature {
	return &signature.Signature{
		Name:        name,
		Description: name + " block",
		Magic:       [][]byte{[]byte(magic)},
		Parse: func(data []byte, offset int) (signature.Match, error) {
			return signature.Match{Size: size, Confidence: confidence}, nil
		},
	}
}

func configure(t *testing.T, opts binwalk.Options) *binwalk.Binwalk {
	t.Helper()

	if opts.OutputDirectory == "" {
		opts.OutputDirectory = filepath.Join(t.TempDir(), "out")
	}
	bw, err := binwalk.Configure(opts)
	require.NoError(t, err)
	return bw
}

func names(results []signature.Result) []string {
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Name)
	}
	return out
}

func offsets(results []signature.Result) []uint64 {
	out := make([]uint64, 0, len(results))
	for _, r := range results {
		out = append(out, r.Offset)
	}
	return out
}

func TestScan(t *testing.T) {
	bw := configure(t, binwalk.Options{
		Signatures: []*signature.Signature{
			fixed("alpha", "AAAA", 8, signature.ConfidenceHigh),
			fixed("beta", "BBBB", 1000, signature.ConfidenceHigh),
		},
	})
	require.Equal(t, 2, bw.SignatureCount)

	data := []byte("xxAAAAaaaa--BBBBbbbb")
	results := bw.Scan(data)

	require.Equal(t, []string{"alpha", "beta"}, names(results))
	require.Equal(t, []uint64{2, 12}, offsets(results))
	require.Equal(t, uint64(8), results[0].Size)
	// Sizes never exceed the buffer.
	require.Equal(t, uint64(8), results[1].Size)
	require.Equal(t, "alpha block", results[0].Description)
	require.Equal(t, signature.ResultID("alpha", 2, 8), results[0].ID)

	require.Equal(t, results, bw.Scan(data))

	require.Equal(t, []signature.Result{}, bw.Scan(nil))
	_, err := bw.ScanContext(context.Background(), nil)
	require.ErrorIs(t, err, binwalk.ErrInvalidInput)

	require.Empty(t, bw.Scan([]byte("nothing to see here")))
}

func TestScan_Cancelled(t *testing.T) {
	bw := configure(t, binwalk.Options{
		Signatures: []*signature.Signature{fixed("alpha", "AAAA", 4, signature.ConfidenceHigh)},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := bw.ScanContext(ctx, []byte("AAAA"))
	require.ErrorIs(t, err, context.Canceled)
}

func TestScan_RejectedAndPanickingParsers(t *testing.T) {
	reject := fixed("reject", "RRRR", 4, signature.ConfidenceHigh)
	reject.Parse = func([]byte, int) (signature.Match, error) {
		return signature.Match{}, signature.ErrNoMatch
	}
	panics := fixed("panics", "PPPP", 4, signature.ConfidenceHigh)
	panics.Parse = func(data []byte, offset int) (signature.Match, error) {
		_ = data[len(data)+offset]
		return signature.Match{}, nil
	}
	empty := fixed("empty", "EEEE", 0, signature.ConfidenceHigh)

	bw := configure(t, binwalk.Options{
		Signatures: []*signature.Signature{
			reject,
			panics,
			empty,
			fixed("alpha", "AAAA", 4, signature.ConfidenceHigh),
		},
	})

	results := bw.Scan([]byte("RRRRPPPPEEEEAAAA"))
	require.Equal(t, []string{"alpha"}, names(results))
	require.Equal(t, []uint64{12}, offsets(results))
}

func TestScan_MagicOffset(t *testing.T) {
	sig := fixed("late", "MAGIC", 10, signature.ConfidenceHigh)
	sig.MagicOffset = 3

	bw := configure(t, binwalk.Options{Signatures: []*signature.Signature{sig}})

	results := bw.Scan([]byte("MAGIC......abcMAGIC...."))
	require.Equal(t, []uint64{11}, offsets(results))
}

func TestScan_ShortSignatures(t *testing.T) {
	weak := fixed("weak", "QQ", 2, signature.ConfidenceLow)
	weak.Short = true
	strong := fixed("strong", "ZZ", 2, signature.ConfidenceMedium)
	strong.Short = true

	bw := configure(t, binwalk.Options{Signatures: []*signature.Signature{weak, strong}})
	require.Len(t, bw.ShortSignatures, 2)

	results := bw.Scan([]byte("QQ..QQ..ZZ"))
	require.Equal(t, []string{"weak", "strong"}, names(results))
	require.Equal(t, []uint64{0, 8}, offsets(results))
}

func TestScan_Overlaps(t *testing.T) {
	sigs := func() []*signature.Signature {
		inner := fixed("inner", "INNR", 4, signature.ConfidenceHigh)
		elf := fixed("elf", "ELFX", 4, signature.ConfidenceHigh)
		elf.AlwaysDisplay = true
		return []*signature.Signature{
			fixed("outer", "OUTR", 16, signature.ConfidenceHigh),
			inner,
			elf,
		}
	}
	data := []byte("OUTR..INNR..ELFXINNR")

	bw := configure(t, binwalk.Options{Signatures: sigs()})
	results := bw.Scan(data)
	require.Equal(t, []string{"outer", "elf", "inner"}, names(results))
	require.Equal(t, []uint64{0, 12, 16}, offsets(results))

	bw = configure(t, binwalk.Options{Signatures: sigs(), SearchAll: true})
	results = bw.Scan(data)
	require.Equal(t, []string{"outer", "inner", "elf", "inner"}, names(results))
}

func TestScan_BestPerOffset(t *testing.T) {
	bw := configure(t, binwalk.Options{
		Signatures: []*signature.Signature{
			fixed("low", "SAME", 4, signature.ConfidenceLow),
			fixed("high", "SAME", 4, signature.ConfidenceHigh),
			fixed("tie", "SAME", 4, signature.ConfidenceHigh),
		},
	})

	results := bw.Scan([]byte("SAME"))
	require.Equal(t, []string{"high"}, names(results))

	bw = configure(t, binwalk.Options{
		Signatures: []*signature.Signature{
			fixed("low", "SAME", 4, signature.ConfidenceLow),
			fixed("high", "SAME", 4, signature.ConfidenceHigh),
		},
		SearchAll: true,
	})
	require.Equal(t, []string{"low", "high"}, names(bw.Scan([]byte("SAME"))))
}

func TestConfigure(t *testing.T) {
	sigs := func() []*signature.Signature {
		return []*signature.Signature{
			fixed("alpha", "AAAA", 4, signature.ConfidenceHigh),
			fixed("beta", "BBBB", 4, signature.ConfidenceHigh),
			fixed("gamma", "GGGG", 4, signature.ConfidenceHigh),
		}
	}
	data := []byte("AAAABBBBGGGG")

	bw := configure(t, binwalk.Options{Signatures: sigs(), Include: []string{"alpha", "gamma"}})
	require.Equal(t, []string{"alpha", "gamma"}, names(bw.Scan(data)))
	require.Len(t, bw.ExtractorLookupTable, 2)

	bw = configure(t, binwalk.Options{Signatures: sigs(), Exclude: []string{"b*"}})
	require.Equal(t, []string{"alpha", "gamma"}, names(bw.Scan(data)))

	for _, opts := range []binwalk.Options{
		{Signatures: sigs(), Include: []string{"delta"}},
		{Signatures: sigs(), Exclude: []string{"delta"}},
		{Signatures: sigs(), DisableExtractors: []string{"delta"}},
		{Signatures: append(sigs(), fixed("alpha", "XXXX", 4, 0))},
		{TargetFile: filepath.Join(t.TempDir(), "missing.bin")},
	} {
		_, err := binwalk.Configure(opts)
		require.ErrorIs(t, err, binwalk.ErrConfiguration)
	}

	bw = binwalk.New()
	require.Equal(t, signature.DefaultTable().PatternCount(), bw.SignatureCount)
	require.Len(t, bw.Signatures(), signature.DefaultTable().Len())
	require.True(t, filepath.IsAbs(bw.BaseOutputDirectory))

	target := filepath.Join(t.TempDir(), "fw.bin")
	require.NoError(t, os.WriteFile(target, []byte("fw"), 0o644))
	bw = configure(t, binwalk.Options{TargetFile: target})
	require.Equal(t, target, bw.BaseTargetFile)
	require.DirExists(t, bw.BaseOutputDirectory)
}

// writer returns an extractor storing content(job) in a file named name.
func writer(name string, content func(job extractor.Job) []byte) *extractor.Extractor {
	return &extractor.Extractor{
		Utility: extractor.InternalFunc("write-"+name, func(_ context.Context, job extractor.Job) (uint64, error) {
			if err := os.WriteFile(filepath.Join(job.OutputDir, name), content(job), 0o644); err != nil {
				return 0, err
			}
			return uint64(len(job.Data)), nil
		}),
	}
}

func failing() *extractor.Extractor {
	return &extractor.Extractor{
		Utility: extractor.InternalFunc("fail", func(_ context.Context, job extractor.Job) (uint64, error) {
			if err := os.WriteFile(filepath.Join(job.OutputDir, "partial"), nil, 0o644); err != nil {
				return 0, err
			}
			return 0, errors.New("corrupted stream")
		}),
	}
}

func TestExtract(t *testing.T) {
	good := fixed("good", "GOOD", 8, signature.ConfidenceHigh)
	good.Extractor = writer("payload.bin", func(job extractor.Job) []byte { return job.Data })
	bad := fixed("bad", "BADD", 4, signature.ConfidenceHigh)
	bad.Extractor = failing()
	none := fixed("none", "NONE", 4, signature.ConfidenceHigh)
	none.Extractor = &extractor.Extractor{Utility: extractor.None()}
	disabled := fixed("disabled", "DSBL", 4, signature.ConfidenceHigh)
	disabled.Extractor = writer("never", func(job extractor.Job) []byte { return nil })

	out := filepath.Join(t.TempDir(), "out")
	bw := configure(t, binwalk.Options{
		OutputDirectory:   out,
		Signatures:        []*signature.Signature{good, bad, none, disabled},
		DisableExtractors: []string{"disabled"},
		Workers:           2,
	})

	data := []byte("GOOD1234BADDNONEDSBL")
	fileMap := bw.Scan(data)
	require.Equal(t, []string{"good", "bad", "none", "disabled"}, names(fileMap))
	require.True(t, fileMap[3].ExtractionDeclined)

	extractions, err := bw.Extract(context.Background(), data, "/some/where/fw.bin", fileMap)
	require.NoError(t, err)
	require.Len(t, extractions, 4)

	root := filepath.Join(out, "fw.bin.extracted")

	res := extractions[fileMap[0].ID]
	require.True(t, res.Success)
	require.Equal(t, "write-payload.bin", res.Extractor)
	require.Equal(t, filepath.Join(root, "0_good"), res.OutputDirectory)
	require.NotNil(t, res.Size)
	require.Equal(t, uint64(8), *res.Size)
	payload, err := os.ReadFile(filepath.Join(res.OutputDirectory, "payload.bin"))
	require.NoError(t, err)
	require.Equal(t, []byte("GOOD1234"), payload)

	res = extractions[fileMap[1].ID]
	require.False(t, res.Success)
	require.Nil(t, res.Size)
	require.Contains(t, res.Error, "extraction failure")
	require.Contains(t, res.Error, "corrupted stream")
	require.Equal(t, filepath.Join(root, "8_bad"), res.OutputDirectory)
	require.NoDirExists(t, res.OutputDirectory)

	for _, r := range fileMap[2:] {
		res = extractions[r.ID]
		require.False(t, res.Success)
		require.Equal(t, "none", res.Extractor)
		require.Equal(t, extractor.ErrDeclined.Error(), res.Error)
		require.NoDirExists(t, res.OutputDirectory)
	}

	_, err = bw.Extract(context.Background(), nil, "fw.bin", fileMap)
	require.ErrorIs(t, err, binwalk.ErrInvalidInput)
}

func TestExtract_Panic(t *testing.T) {
	sig := fixed("boom", "BOOM", 4, signature.ConfidenceHigh)
	sig.Extractor = &extractor.Extractor{
		Utility: extractor.InternalFunc("boom", func(context.Context, extractor.Job) (uint64, error) {
			panic("decoder bug")
		}),
	}
	bw := configure(t, binwalk.Options{Signatures: []*signature.Signature{sig}})

	data := []byte("BOOM")
	fileMap := bw.Scan(data)
	extractions, err := bw.Extract(context.Background(), data, "boom.bin", fileMap)
	require.NoError(t, err)

	res := extractions[fileMap[0].ID]
	require.False(t, res.Success)
	require.Contains(t, res.Error, "internal fault")
}

func TestResultFor(t *testing.T) {
	sig := fixed("alpha", "AAAA", 4, signature.ConfidenceHigh)
	sig.Extractor = &extractor.Extractor{Utility: extractor.Internal(extractor.DecoderCarve)}
	bw := configure(t, binwalk.Options{Signatures: []*signature.Signature{sig, fixed("beta", "BBBB", 4, 0)}, Exclude: []string{"beta"}})

	r, err := bw.ResultFor("alpha", 16, 4, signature.ConfidenceMedium, "")
	require.NoError(t, err)
	require.Equal(t, uint64(16), r.Offset)
	require.Equal(t, signature.ResultID("alpha", 16, 4), r.ID)
	require.Equal(t, "alpha block", r.Description)
	require.Same(t, sig.Extractor, r.PreferredExtractor)
	require.False(t, r.ExtractionDeclined)

	_, err = bw.ResultFor("beta", 0, 4, 0, "")
	require.ErrorIs(t, err, binwalk.ErrConfiguration)
	_, err = bw.ResultFor("alpha", 0, 0, 0, "")
	require.ErrorIs(t, err, binwalk.ErrInvalidInput)
}

func writeTarget(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "target.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestAnalyze(t *testing.T) {
	sig := fixed("alpha", "AAAA", 4, signature.ConfidenceHigh)
	sig.Extractor = writer("alpha.bin", func(job extractor.Job) []byte { return job.Data })
	bw := configure(t, binwalk.Options{Signatures: []*signature.Signature{sig}})

	target := writeTarget(t, "..AAAA..")

	res, err := bw.Analyze(context.Background(), target, false)
	require.NoError(t, err)
	require.Equal(t, target, res.FilePath)
	require.Len(t, res.FileMap, 1)
	require.Empty(t, res.Extractions)

	res, err = bw.Analyze(context.Background(), target, true)
	require.NoError(t, err)
	require.Len(t, res.Extractions, 1)
	require.True(t, res.Extractions[res.FileMap[0].ID].Success)

	_, err = bw.Analyze(context.Background(), writeTarget(t, ""), false)
	require.ErrorIs(t, err, binwalk.ErrInvalidInput)

	_, err = bw.Analyze(context.Background(), filepath.Join(t.TempDir(), "missing"), false)
	require.ErrorIs(t, err, binwalk.ErrInvalidInput)
}

func TestAnalyzeRecursive(t *testing.T) {
	// Each level wraps the previous one, so the tree ends with a file
	// without matches.
	outer := fixed("outer", "OUTR", 1<<20, signature.ConfidenceHigh)
	outer.Extractor = writer("inner.bin", func(job extractor.Job) []byte { return job.Data[4:] })
	inner := fixed("inner", "INNR", 1<<20, signature.ConfidenceHigh)
	inner.Extractor = writer("leaf.txt", func(job extractor.Job) []byte { return []byte("plain text") })

	bw := configure(t, binwalk.Options{Signatures: []*signature.Signature{outer, inner}})

	all, err := bw.AnalyzeRecursive(context.Background(), writeTarget(t, "OUTRINNR"))
	require.NoError(t, err)
	require.Len(t, all, 3)

	require.Equal(t, 0, all[0].Depth)
	require.Equal(t, []string{"outer"}, names(all[0].FileMap))
	require.Equal(t, 1, all[1].Depth)
	require.Equal(t, "inner.bin", filepath.Base(all[1].FilePath))
	require.Equal(t, []string{"inner"}, names(all[1].FileMap))
	require.Equal(t, 2, all[2].Depth)
	require.Equal(t, "leaf.txt", filepath.Base(all[2].FilePath))
	require.Empty(t, all[2].FileMap)
}

func TestAnalyzeRecursive_Cycle(t *testing.T) {
	sig := fixed("self", "SELF", 1<<20, signature.ConfidenceHigh)
	sig.Extractor = writer("copy.bin", func(job extractor.Job) []byte { return job.Data })

	bw := configure(t, binwalk.Options{Signatures: []*signature.Signature{sig}})

	all, err := bw.AnalyzeRecursive(context.Background(), writeTarget(t, "SELF-contained"))
	require.ErrorIs(t, err, binwalk.ErrRecursionLimitExceeded)
	require.Len(t, all, 1)
}

func TestAnalyzeRecursive_DepthLimit(t *testing.T) {
	sig := fixed("grow", "GROW", 1<<20, signature.ConfidenceHigh)
	sig.Extractor = writer("grown.bin", func(job extractor.Job) []byte { return append([]byte(string(job.Data)), '!') })

	bw := configure(t, binwalk.Options{Signatures: []*signature.Signature{sig}, MaxDepth: 2})

	all, err := bw.AnalyzeRecursive(context.Background(), writeTarget(t, "GROW"))
	require.ErrorIs(t, err, binwalk.ErrRecursionLimitExceeded)
	require.Len(t, all, 3)
	require.Equal(t, 2, all[2].Depth)
}

func TestAnalyzeRecursive_DoNotRecurse(t *testing.T) {
	sig := fixed("carved", "CRVD", 1<<20, signature.ConfidenceHigh)
	sig.Extractor = writer("carved.bin", func(job extractor.Job) []byte { return job.Data })
	sig.Extractor.DoNotRecurse = true

	bw := configure(t, binwalk.Options{Signatures: []*signature.Signature{sig}})

	all, err := bw.AnalyzeRecursive(context.Background(), writeTarget(t, "CRVD"))
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.True(t, all[0].Extractions[all[0].FileMap[0].ID].DoNotRecurse)
}

func TestScan_Progress(t *testing.T) {
	var calls [][2]int
	bw := configure(t, binwalk.Options{
		Signatures: []*signature.Signature{fixed("alpha", "AAAA", 4, signature.ConfidenceHigh)},
		Progress: func(scanned, total int) {
			calls = append(calls, [2]int{scanned, total})
		},
	})

	bw.Scan([]byte("..AAAA"))
	require.Equal(t, [][2]int{{0, 6}, {6, 6}}, calls)
}

func tarArchive(t *testing.T) []byte {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range []string{"a.bin", "b.bin", "c.bin"} {
		data := []byte(strings.Repeat(name, 300))
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(data)),
			Typeflag: tar.TypeReg,
			Format:   tar.FormatUSTAR,
		}))
		_, err := tw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

func zipArchive(t *testing.T) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"a.txt", "b.txt"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(strings.Repeat("zip entry "+name, 20)))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zstdFrame(t *testing.T) []byte {
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll([]byte(strings.Repeat("zstd frame payload ", 200)), nil)
}

func gzipStream(t *testing.T) []byte {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(strings.Repeat("gzip stream payload\n", 200)))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestScan_TruncatedAtEndOfData(t *testing.T) {
	bw := configure(t, binwalk.Options{Include: []string{"tar", "zip", "zstd", "gzip"}})

	tests := map[string]struct {
		payload []byte
		keep    int
	}{
		"tar":  {tarArchive(t), 0},
		"zip":  {zipArchive(t), 0},
		"zstd": {zstdFrame(t), 0},
		// Only the trailer is missing, the payload decodes in full.
		"gzip": {gzipStream(t), -4},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			cut := len(tc.payload) * 2 / 3
			if tc.keep < 0 {
				cut = len(tc.payload) + tc.keep
			}

			data := append(make([]byte, 64), tc.payload[:cut]...)
			results := bw.Scan(data)

			require.Equal(t, []string{name}, names(results))
			require.Equal(t, uint64(64), results[0].Offset)
			require.Equal(t, uint64(cut), results[0].Size)
			require.Equal(t, signature.ConfidenceMedium, results[0].Confidence)
			require.Contains(t, results[0].Description, "truncated")
		})
	}
}
