package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{" WARN ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"info", LevelInfo},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestNewLogger_ProdWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Options{Mode: "prod", Level: LevelInfo, Output: &buf})

	logger.Debug("hidden")
	logger.Info("hello", "route", "news")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var record map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &record))
	assert.Equal(t, "hello", record["msg"])
	assert.Equal(t, "news", record["route"])
}

func TestNewLogger_DevWritesText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Options{Mode: "dev", Level: LevelDebug, Output: &buf})

	logger.Debug("visible", "key", "value")
	assert.Contains(t, buf.String(), "msg=visible")
	assert.Contains(t, buf.String(), "key=value")
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(Options{Mode: "prod", Output: &buf})

	ctx := ToContext(context.Background(), base)
	ctx = WithSession(ctx, "sess-1")
	ctx = WithRoute(ctx, "open_url")
	FromContext(ctx).Info("dispatched")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "sess-1", record["session_id"])
	assert.Equal(t, "open_url", record["route"])

	assert.Equal(t, ctx, WithSession(ctx, ""), "empty session id leaves the context alone")
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, Default(), FromContext(context.Background()))

	var buf bytes.Buffer
	installed := Setup(Options{Mode: "prod", Output: &buf})
	t.Cleanup(func() { Setup(Options{Mode: "dev"}) })

	assert.Same(t, installed, FromContext(context.Background()))
	slog.Info("through default")
	assert.Contains(t, buf.String(), "through default")
}
