package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWithOptionsWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupWithOptions("questd", "test", Options{Level: "warn", Output: &buf})
	logger.Info("dropped")
	logger.Warn("kept", slog.String("method", "quest_transfer"), MaskField("token", "secret"))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	require.Equal(t, "kept", entry["message"])
	require.Equal(t, "WARN", entry["severity"])
	require.Equal(t, "questd", entry["service"])
	require.Equal(t, "test", entry["env"])
	require.Equal(t, "quest_transfer", entry["method"])
	require.Equal(t, RedactedValue, entry["token"])
	require.Contains(t, entry, "timestamp")
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel("error"))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestMaskBearer(t *testing.T) {
	require.Equal(t, "Bearer "+RedactedValue, MaskBearer("Bearer abc.def.ghi"))
	require.Equal(t, RedactedValue, MaskBearer("abc"))
	require.Equal(t, "", MaskBearer(""))
}
