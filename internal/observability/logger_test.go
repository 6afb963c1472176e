package observability

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "warn", "text")

	logger.Info("hidden")
	logger.Warn("source absent", "table", "weekly")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "table=weekly")
}

func TestNewWriterLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	NewWriterLogger(&buf, "debug", "JSON").Debug("loaded", "rows", 3)
	assert.Contains(t, buf.String(), `"rows":3`)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"Warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"debug+2", slog.LevelDebug + 2},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewWriterLogger_FormatMatchesServer(t *testing.T) {
	var buf bytes.Buffer
	NewWriterLogger(&buf, "info", "").Info("run finished", "kind", "rows")
	assert.Contains(t, buf.String(), `"kind":"rows"`)
}
