package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestJSONHandlerCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(newHandler(&buf, "info", "json"))

	ctx := ContextWithRequestID(context.Background(), "req-1")
	id, ok := RequestIDFromContext(ctx)
	require.True(t, ok)

	l.With("request_id", id).Info("reserved", "event_id", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, float64(7), line["event_id"])
}

func TestInitWithFileWritesRotatedLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seatkeeper.log")
	InitWithFile("info", "json", FileConfig{Path: path})
	t.Cleanup(func() { Init("info", "json") })

	Get().Info("hello file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello file")
}
