package dfxml_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ostafen/binwalk/pkg/dfxml"
	"github.com/stretchr/testify/require"
)

func TestReportRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w := dfxml.NewDFXMLWriter(&buf)
	require.NoError(t, w.WriteHeader(dfxml.DFXMLHeader{
		XmlOutput: dfxml.XmlOutputVersion,
		Metadata:  dfxml.DefaultMetadata,
		Creator: dfxml.Creator{
			Package:              "binwalk",
			Version:              "0.1.0",
			ExecutionEnvironment: dfxml.GetExecEnv(),
		},
		Source: dfxml.Source{
			ImageFilename: "/tmp/firmware.bin",
			ImageSize:     4096,
		},
	}))

	objects := []dfxml.FileObject{
		{
			Filename:    "0_gzip.gz",
			FileSize:    120,
			Signature:   "gzip",
			Description: "gzip compressed data",
			Confidence:  250,
			ByteRuns:    dfxml.ByteRuns{Runs: []dfxml.ByteRun{{ImgOffset: 0, Length: 120}}},
		},
		{
			Filename:   "200_zip.zip",
			FileSize:   64,
			Signature:  "zip",
			Confidence: 128,
			ByteRuns:   dfxml.ByteRuns{Runs: []dfxml.ByteRun{{ImgOffset: 0x200, Length: 64}}},
		},
	}
	for _, obj := range objects {
		require.NoError(t, w.WriteFileObject(obj))
	}
	require.NoError(t, w.Close())

	require.True(t, strings.HasPrefix(buf.String(), `<?xml version="1.0"`))

	hdr, err := dfxml.ReadHeader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, dfxml.XmlOutputVersion, hdr.XmlOutput)
	require.Equal(t, "binwalk", hdr.Creator.Package)
	require.Equal(t, "/tmp/firmware.bin", hdr.Source.ImageFilename)
	require.Equal(t, uint64(4096), hdr.Source.ImageSize)

	got, err := dfxml.ReadFileObjects(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, got, len(objects))
	for i := range objects {
		require.Equal(t, objects[i].Filename, got[i].Filename)
		require.Equal(t, objects[i].FileSize, got[i].FileSize)
		require.Equal(t, objects[i].Signature, got[i].Signature)
		require.Equal(t, objects[i].Description, got[i].Description)
		require.Equal(t, objects[i].Confidence, got[i].Confidence)
		require.Equal(t, objects[i].ByteRuns.Runs, got[i].ByteRuns.Runs)
	}
}

func TestReadHeaderMissing(t *testing.T) {
	_, err := dfxml.ReadHeader(strings.NewReader(`<dfxml><fileobject><filename>a</filename></fileobject></dfxml>`))
	require.ErrorIs(t, err, dfxml.ErrNoHeader)

	_, err = dfxml.ReadHeader(strings.NewReader(`<dfxml></dfxml>`))
	require.ErrorIs(t, err, dfxml.ErrNoHeader)
}

func TestGetExecEnv(t *testing.T) {
	env := dfxml.GetExecEnv()
	require.NotEmpty(t, env.OS)
	require.NotEmpty(t, env.Arch)
	require.NotEmpty(t, env.Start)
}
