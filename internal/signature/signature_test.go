package signature_test

import (
	"io"
	"testing"

	"github.com/ostafen/binwalk/internal/signature"
	"github.com/stretchr/testify/require"
)

func TestReader(t *testing.T) {
	r := signature.NewReader([]byte("0123456789"))

	b, err := r.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte('0'), b)

	buf := make([]byte, 4)
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, "1234", string(buf))

	peek, err := r.Peek(3)
	require.NoError(t, err)
	require.Equal(t, "567", string(peek))
	require.Equal(t, uint64(5), r.BytesRead())

	n, err = r.Discard(2)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 3, r.Remaining())

	peek, err = r.Peek(5)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, "789", string(peek))

	n, err = r.Read(buf)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	require.Equal(t, 3, n)

	_, err = r.ReadByte()
	require.ErrorIs(t, err, io.EOF)
	_, err = r.Read(buf)
	require.ErrorIs(t, err, io.EOF)

	n, err = r.Discard(1)
	require.ErrorIs(t, err, io.EOF)
	require.Zero(t, n)

	_, err = r.Discard(-1)
	require.Error(t, err)
	_, err = r.Peek(-1)
	require.Error(t, err)
}

func TestSeekAt(t *testing.T) {
	r := signature.NewReader([]byte("xxxxPKyyyy"))

	require.False(t, signature.SeekAt(r, []byte("PK"), 2))
	require.Equal(t, uint64(0), r.BytesRead())

	require.True(t, signature.SeekAt(r, []byte("PK"), 4))
	require.Equal(t, uint64(4), r.BytesRead())

	require.False(t, signature.SeekAt(r, []byte("zz"), 100))
}

func testSignature(name string, magic string) *signature.Signature {
	return &signature.Signature{
		Name:  name,
		Magic: [][]byte{[]byte(magic)},
		Parse: func(data []byte, offset int) (signature.Match, error) {
			return signature.Match{Size: uint64(len(magic))}, nil
		},
	}
}

func TestNewTable(t *testing.T) {
	_, err := signature.NewTable([]*signature.Signature{testSignature("", "abcd")})
	require.Error(t, err)

	_, err = signature.NewTable([]*signature.Signature{testSignature("a", "abcd"), testSignature("a", "efgh")})
	require.ErrorContains(t, err, "duplicate")

	_, err = signature.NewTable([]*signature.Signature{{Name: "a", Magic: [][]byte{[]byte("abcd")}}})
	require.ErrorContains(t, err, "missing magic or parser")

	_, err = signature.NewTable([]*signature.Signature{testSignature("a", "")})
	require.ErrorContains(t, err, "empty magic")

	neg := testSignature("a", "abcd")
	neg.MagicOffset = -1
	_, err = signature.NewTable([]*signature.Signature{neg})
	require.ErrorContains(t, err, "negative magic offset")

	tb, err := signature.NewTable([]*signature.Signature{testSignature("b", "bbbb"), testSignature("a", "aaaa")})
	require.NoError(t, err)
	require.Equal(t, 2, tb.Len())
	require.Equal(t, []string{"a", "b"}, tb.Names())
	require.Equal(t, "b", tb.Signatures()[0].Name)

	sig, ok := tb.Lookup("a")
	require.True(t, ok)
	require.Equal(t, "a", sig.Name)
	_, ok = tb.Lookup("c")
	require.False(t, ok)
}

func TestTable_Filter(t *testing.T) {
	tb, err := signature.NewTable([]*signature.Signature{
		testSignature("gzip", "gz00"),
		testSignature("zip", "zip0"),
		testSignature("zstd", "zstd"),
		testSignature("tar", "ustar"),
	})
	require.NoError(t, err)

	names := func(tb *signature.Table) []string {
		var out []string
		for _, sig := range tb.Signatures() {
			out = append(out, sig.Name)
		}
		return out
	}

	all, err := tb.Filter(nil, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"gzip", "zip", "zstd", "tar"}, names(all))

	z, err := tb.Filter([]string{"z*"}, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"zip", "zstd"}, names(z))

	noZip, err := tb.Filter(nil, []string{"zip"})
	require.NoError(t, err)
	require.Equal(t, []string{"gzip", "zstd", "tar"}, names(noZip))

	both, err := tb.Filter([]string{"*zip", "tar"}, []string{"gzip"})
	require.NoError(t, err)
	require.Equal(t, []string{"zip", "tar"}, names(both))

	_, err = tb.Filter([]string{"rar"}, nil)
	require.ErrorIs(t, err, signature.ErrUnknownSignature)

	_, err = tb.Filter(nil, []string{"[a-"})
	require.ErrorIs(t, err, signature.ErrUnknownSignature)
}

func TestBuiltins(t *testing.T) {
	tb := signature.DefaultTable()
	require.Equal(t, len(signature.Builtins()), tb.Len())

	var short []string
	for _, sig := range tb.Short() {
		short = append(short, sig.Name)
	}
	require.Equal(t, []string{"jpeg", "bmp", "gzip", "bzip2", "lzma"}, short)

	patterns := 0
	for _, sig := range tb.Signatures() {
		require.NotNil(t, sig.Extractor, sig.Name)
		require.NotEmpty(t, sig.Description, sig.Name)
		patterns += len(sig.Magic)
	}
	require.Equal(t, patterns, tb.PatternCount())

	tar, ok := tb.Lookup("tar")
	require.True(t, ok)
	require.Equal(t, 257, tar.MagicOffset)

	elf, ok := tb.Lookup("elf")
	require.True(t, ok)
	require.True(t, elf.AlwaysDisplay)

	// Each call returns independent values.
	a, b := signature.Builtins(), signature.Builtins()
	a[0].Name = "changed"
	require.Equal(t, "png", b[0].Name)
}

func TestResultID(t *testing.T) {
	id := signature.ResultID("gzip", 10, 20)
	require.Equal(t, id, signature.ResultID("gzip", 10, 20))
	require.NotEqual(t, id, signature.ResultID("gzip", 10, 21))
	require.NotEqual(t, id, signature.ResultID("zip", 10, 20))
	require.NotEqual(t, signature.ResultID("gzip", 1, 0), signature.ResultID("gzip", 10, 0))
}
