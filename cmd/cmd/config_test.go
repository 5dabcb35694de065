package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseOptionsPrecedence(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfgPath := filepath.Join(t.TempDir(), "binwalk.yml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
include: [gzip]
max_depth: 3
workers: 2
extract_timeout: 1m
log_level: debug
`), 0o644))

	cmd := DefineScanCommand()
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("log-level", "INFO", "")
	require.NoError(t, cmd.ParseFlags([]string{"--config", cfgPath, "--threads", "6", "-e"}))

	opts, err := parseOptions(cmd)
	require.NoError(t, err)
	require.Equal(t, []string{"gzip"}, opts.Include)
	require.Equal(t, 3, opts.MaxDepth)
	require.Equal(t, 6, opts.Workers)
	require.Equal(t, time.Minute, opts.ExtractTimeout)
	require.True(t, opts.Extract)
	require.False(t, opts.Recursive)
	require.Equal(t, "DEBUG", opts.LogLevel.String())
}

func TestParseOptionsDefaults(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "empty.yml")
	require.NoError(t, os.WriteFile(cfgPath, nil, 0o644))

	cmd := DefineScanCommand()
	cmd.Flags().String("config", "", "")
	cmd.Flags().String("log-level", "INFO", "")
	require.NoError(t, cmd.ParseFlags([]string{"--config", cfgPath}))

	opts, err := parseOptions(cmd)
	require.NoError(t, err)
	require.Empty(t, opts.Include)
	require.Equal(t, 8, opts.MaxDepth)
	require.Equal(t, 5*time.Minute, opts.ExtractTimeout)
	require.Empty(t, opts.OutputDirectory)
	require.Equal(t, "INFO", opts.LogLevel.String())
}

func TestGetMountpoint(t *testing.T) {
	require.Equal(t, "report_1", getMountpoint("/tmp/report_1.xml"))
	require.Equal(t, "report_mnt", getMountpoint("report"))
	require.Equal(t, "report_1", getMountpoint("/tmp/report_1.xml.gz"))
}
