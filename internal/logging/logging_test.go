package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "text", cfg.Format)
	assert.Equal(t, "info", cfg.Level)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		expected string
	}{
		{"debug", "debug", "DEBUG"},
		{"Debug uppercase", "DEBUG", "DEBUG"},
		{"info", "info", "INFO"},
		{"warn", "warn", "WARN"},
		{"warning alias", "warning", "WARN"},
		{"error", "error", "ERROR"},
		{"unknown defaults to info", "unknown", "INFO"},
		{"empty defaults to info", "", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := parseLevel(tt.level)
			assert.Equal(t, tt.expected, level.String())
		})
	}
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "json", Level: "warn"}, &buf)

	l.Info("dropped")
	l.Warn("image download failed", "game_id", 42)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1, "info should be filtered at warn level")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "image download failed", entry["msg"])
	assert.Equal(t, float64(42), entry["game_id"])
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Format: "text", Level: "debug"}, &buf)

	l.Debug("cache hit", "op", "get")
	assert.Contains(t, buf.String(), "msg=\"cache hit\"")
	assert.Contains(t, buf.String(), "op=get")
}

func TestGet_ReturnsDefaultBeforeSetup(t *testing.T) {
	oldLogger := logger
	logger = nil
	defer func() { logger = oldLogger }()

	assert.NotNil(t, Get())
	assert.NotNil(t, Component("metadata"))
}

func TestLogFunctions_DoNotPanic(t *testing.T) {
	Setup(DefaultConfig())

	assert.NotPanics(t, func() { Info("test message") })
	assert.NotPanics(t, func() { Warn("test message") })
	assert.NotPanics(t, func() { Error("test message") })
	assert.NotPanics(t, func() { Discard().Error("dropped") })
}
