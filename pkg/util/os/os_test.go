package os_test

import (
	"os"
	"path/filepath"
	"testing"

	osutils "github.com/ostafen/binwalk/pkg/util/os"
	"github.com/stretchr/testify/require"
)

func TestEnsureDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	created, err := osutils.EnsureDir(dir, true)
	require.NoError(t, err)
	require.True(t, created)

	created, err = osutils.EnsureDir(dir, true)
	require.NoError(t, err)
	require.False(t, created)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "f"), nil, 0o644))
	_, err = osutils.EnsureDir(dir, true)
	require.Error(t, err)

	_, err = osutils.EnsureDir(dir, false)
	require.NoError(t, err)

	_, err = osutils.EnsureDir(filepath.Join(dir, "f"), false)
	require.Error(t, err)
}

func TestListFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "x", "y"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "x", "y", "a"), []byte("2"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "b"), filepath.Join(root, "link")))

	files, err := osutils.ListFiles(root)
	require.NoError(t, err)
	require.Equal(t, []string{
		filepath.Join(root, "b"),
		filepath.Join(root, "x", "y", "a"),
	}, files)
}
