package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates the service logger on stdout and sets it as the slog default.
func NewLogger(level, format string) *slog.Logger {
	logger := NewWriterLogger(os.Stdout, level, format)
	slog.SetDefault(logger)
	return logger
}

// NewWriterLogger creates a text or JSON logger on w. The CLI uses it to keep
// diagnostics on stderr while tables go to stdout. Level and format follow
// NewLogger: "text" selects the text handler, anything else JSON.
func NewWriterLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// parseLevel accepts the slog level names (with offsets such as "debug+2")
// plus "warning". Anything else is info.
func parseLevel(s string) slog.Level {
	if strings.EqualFold(strings.TrimSpace(s), "warning") {
		s = "warn"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
