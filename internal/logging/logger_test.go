package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/daybook/internal/config"
)

func testConfig(t *testing.T) config.LoggingConfig {
	t.Helper()
	cfg := config.DefaultLoggingConfig()
	cfg.Dir = t.TempDir()
	cfg.Console.Enabled = false
	cfg.RepeatWindow = 0
	return cfg
}

func readLog(t *testing.T, dir, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(dir, name))
	require.NoError(t, err)
	return string(content)
}

func TestNewLogger_ErrorLogSeparation(t *testing.T) {
	cfg := testConfig(t)
	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("info message")
	logger.Warn("warning message")
	logger.Error("error message")
	require.NoError(t, Shutdown())

	main := readLog(t, cfg.Dir, MainLogFile)
	assert.Contains(t, main, "info message")
	assert.Contains(t, main, "error message")

	errs := readLog(t, cfg.Dir, ErrorLogFile)
	assert.NotContains(t, errs, "info message")
	assert.Contains(t, errs, "warning message")
	assert.Contains(t, errs, "error message")
}

func TestNewLogger_JSONFormat(t *testing.T) {
	cfg := testConfig(t)
	cfg.File.Format = "json"
	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Info("test json", "key", "value")
	require.NoError(t, Shutdown())

	content := readLog(t, cfg.Dir, MainLogFile)
	assert.Contains(t, content, `"msg":"test json"`)
	assert.Contains(t, content, `"key":"value"`)
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	orig := stdout
	stdout = &buf
	defer func() { stdout = orig }()

	cfg := testConfig(t)
	cfg.Console.Enabled = true
	cfg.File.Enabled = false
	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("shown", "component", "bucket")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "component=bucket")
	assert.NoFileExists(t, filepath.Join(cfg.Dir, MainLogFile))
}

func TestNewLogger_NoSinks(t *testing.T) {
	cfg := testConfig(t)
	cfg.File.Enabled = false
	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	logger.Error("dropped")
}

func TestNewLogger_BadDir(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(cfg.Dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))
	cfg.Dir = filepath.Join(blocker, "logs")

	_, err := NewLogger(cfg)
	assert.Error(t, err)
	assert.Error(t, Initialize(cfg))
}

func TestInitialize_SetsGlobalLogger(t *testing.T) {
	orig := slog.Default()
	defer slog.SetDefault(orig)

	cfg := testConfig(t)
	require.NoError(t, Initialize(cfg))
	slog.Info("global test message")
	require.NoError(t, Shutdown())

	assert.Contains(t, readLog(t, cfg.Dir, MainLogFile), "global test message")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}
