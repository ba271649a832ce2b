package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestGetLevel(t *testing.T) {
	l, err := GetLevel("")
	require.NoError(t, err)
	assert.Equal(t, zapcore.InfoLevel, l)

	l, err = GetLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, l)

	_, err = GetLevel("loud")
	assert.Error(t, err)
}

func TestNew_FileOutput(t *testing.T) {
	name := filepath.Join(t.TempDir(), "coach")
	logger, closer, err := New(Params{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FileName: name,
		MaxSize:  1,
	})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("session started", zap.String("session_id", "abc"))
	require.NoError(t, closer())

	data, err := os.ReadFile(name + ".log")
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "session started", entry["msg"])
	assert.Equal(t, "abc", entry["session_id"])
}

func TestNew_InvalidParams(t *testing.T) {
	_, _, err := New(Params{Format: "xml"})
	assert.Error(t, err)

	_, _, err = New(Params{Output: "file"})
	assert.Error(t, err)

	_, _, err = New(Params{Output: "syslog"})
	assert.Error(t, err)

	_, _, err = New(Params{Level: "verbose"})
	assert.Error(t, err)
}

func TestNewWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWriter(&buf, "warn")
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), `"msg":"kept"`)
}
