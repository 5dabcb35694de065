package mmap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ostafen/binwalk/internal/mmap"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("hello mmap"), 0o644))

	f, err := mmap.Open(path)
	require.NoError(t, err)
	require.Equal(t, []byte("hello mmap"), f.Data())
	require.Equal(t, 10, f.Len())
	require.NoError(t, f.Close())
	require.Nil(t, f.Data())
}

func TestOpenEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bin")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	f, err := mmap.Open(path)
	require.NoError(t, err)
	require.Empty(t, f.Data())
	require.NoError(t, f.Close())
}

func TestOpenErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := mmap.Open(filepath.Join(dir, "missing"))
	require.Error(t, err)

	_, err = mmap.Open(dir)
	require.Error(t, err)
}
