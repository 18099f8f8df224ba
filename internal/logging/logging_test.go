package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONUsesSeverity(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "", slog.LevelInfo).Warn("careful", "txnId", "T1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["severity"])
	assert.Equal(t, "T1", entry["txnId"])
	assert.NotContains(t, entry, "level")
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "json", slog.LevelWarn).Info("hidden")
	assert.Zero(t, buf.Len())
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "TEXT", slog.LevelDebug).Debug("hello", "k", "v")
	assert.Contains(t, buf.String(), "hello")
	assert.NotContains(t, buf.String(), "{")
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "ERROR")
	assert.Equal(t, slog.LevelError, levelFromEnv())
	t.Setenv("LOG_LEVEL", "verbose")
	assert.Equal(t, slog.LevelInfo, levelFromEnv())
}
