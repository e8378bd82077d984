package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithScope(t *testing.T) {
	var buf bytes.Buffer
	Init("debug", "json", &buf)
	t.Cleanup(func() { Init("warn", "json", nil) })

	WithScope("suggest").Info().Str("key", "service.name").Msg("fetch")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "suggest", entry["scope"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "fetch", entry["message"])
	assert.Equal(t, "service.name", entry["key"])
}

func TestNewLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", "json", &buf)

	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())

	l.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNewUnknownLevelIsInfo(t *testing.T) {
	var buf bytes.Buffer
	l := New("loud", "json", &buf)

	l.Debug().Msg("dropped")
	l.Info().Msg("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}

func TestConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", "console", &buf)

	l.Info().Str("view", "errors").Msg("saved")
	assert.Contains(t, buf.String(), "saved")
	assert.Contains(t, buf.String(), "view=errors")
}
