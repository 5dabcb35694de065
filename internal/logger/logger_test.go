package logger_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/ostafen/binwalk/internal/logger"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"DEBUG":   slog.LevelDebug,
		"debug":   slog.LevelDebug,
		"Info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"WARNING": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for name, level := range cases {
		require.Equal(t, level, logger.ParseLevel(name), name)
	}
}

func TestSetup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "session.log")

	log, f, err := logger.Setup(path, slog.LevelWarn)
	require.NoError(t, err)
	require.NotNil(t, f)

	log.Info("hidden")
	log.Warn("visible", "offset", 42)
	require.NoError(t, f.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(content), "hidden")
	require.Contains(t, string(content), "msg=visible")
	require.Contains(t, string(content), "offset=42")
}

func TestSetupDiscard(t *testing.T) {
	log, f, err := logger.Setup("", slog.LevelDebug)
	require.NoError(t, err)
	require.Nil(t, f)
	log.Debug("nowhere")
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger.New(&buf, slog.LevelInfo).Info("scan completed", "matches", 3)
	require.Contains(t, buf.String(), "matches=3")
	require.Contains(t, buf.String(), "source=")
}
