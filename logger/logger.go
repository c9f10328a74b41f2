package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" to a slog
// level. Anything else is Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w. format "json" selects the JSON
// handler; anything else produces text.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Open resolves sink to a writer. An empty sink or "stdout" means
// os.Stdout, "stderr" means os.Stderr and "file:<path>" appends to path.
// The returned close func is never nil.
func Open(sink string) (io.Writer, func() error, error) {
	noop := func() error { return nil }
	switch {
	case sink == "" || sink == "stdout":
		return os.Stdout, noop, nil
	case sink == "stderr":
		return os.Stderr, noop, nil
	case strings.HasPrefix(sink, "file:"):
		path := strings.TrimPrefix(sink, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err != nil {
			return nil, noop, fmt.Errorf("open log file %s: %w", path, err)
		}
		return f, f.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown log sink %q", sink)
}

// Init opens sink, builds the logger and installs it as slog's default.
func Init(sink, level, format string) (*slog.Logger, func() error, error) {
	w, closeFn, err := Open(sink)
	if err != nil {
		return nil, closeFn, err
	}
	log := New(w, level, format)
	slog.SetDefault(log)
	return log, closeFn, nil
}
