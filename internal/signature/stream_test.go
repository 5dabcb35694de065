package signature

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

func TestDrain(t *testing.T) {
	n, complete, err := drain(io.LimitReader(zeros{}, 10))
	require.NoError(t, err)
	require.True(t, complete)
	require.Equal(t, int64(10), n)

	// Streams still going at the limit are trusted once enough was decoded.
	n, complete, err = drain(zeros{})
	require.NoError(t, err)
	require.False(t, complete)
	require.Equal(t, int64(maxDecodedSize), n)
	require.Equal(t, ConfidenceMedium, partialConfidence(n))
	require.Equal(t, ConfidenceLow, partialConfidence(minTrustedOutput-1))
}

func TestByteCounter_EndsEarly(t *testing.T) {
	c := &byteCounter{data: []byte("abc")}
	require.False(t, c.endsEarly(io.ErrUnexpectedEOF))

	_, err := io.ReadAll(c)
	require.NoError(t, err)
	require.True(t, c.endsEarly(io.ErrUnexpectedEOF))
	require.False(t, c.endsEarly(io.EOF))
}
