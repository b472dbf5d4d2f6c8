package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(Config{Level: "debug", Format: "json"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Debug("debug message", zap.String("key", "value"))
	logger.Info("info message", zap.Int("observations", 250))
	require.NoError(t, logger.Sync())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "info message", entry["msg"])
	assert.Equal(t, float64(250), entry["observations"])
	assert.NotEmpty(t, entry["timestamp"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(Config{Level: "warn"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "kept")
}

func TestNewWithWriter_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(Config{Format: "console"}, zapcore.AddSync(&buf))
	require.NoError(t, err)

	logger.Info("console message")
	assert.Contains(t, buf.String(), "INFO")
	assert.Contains(t, buf.String(), "console message")
}

func TestNew_Errors(t *testing.T) {
	_, err := NewWithWriter(Config{Level: "verbose"}, zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)

	_, err = NewWithWriter(Config{Format: "xml"}, zapcore.AddSync(&bytes.Buffer{}))
	assert.Error(t, err)

	_, err = New(Config{Output: "file"})
	assert.Error(t, err)

	_, err = New(Config{Output: "syslog"})
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "varbacktest.log")

	logger, err := New(Config{Level: "info", Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	logger.Info("written to file")
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"DEBUG": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-123")
	assert.Equal(t, "req-123", RequestIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))

	var buf bytes.Buffer
	logger, err := NewWithWriter(DefaultConfig(), zapcore.AddSync(&buf))
	require.NoError(t, err)

	FromContext(ctx, logger).Info("with request")
	FromContext(context.Background(), logger).Info("without request")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"request_id":"req-123"`)
	assert.NotContains(t, lines[1], "request_id")
}
