// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// DebugLogPath is the default file debug logs are written to.
const DebugLogPath = "airtime-debug.log"

// Options selects the logger's destination and verbosity.
type Options struct {
	// Level is one of debug, info, warn, error.
	Level string
	// Debug writes JSON lines at debug level to DebugFile instead of text to Stderr.
	Debug     bool
	DebugFile string
	Stderr    io.Writer
}

// New returns a logger and a function that releases its output.
func New(opts Options) (*slog.Logger, func(), error) {
	if !opts.Debug {
		w := opts.Stderr
		if w == nil {
			w = os.Stderr
		}
		h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
		return slog.New(h), func() {}, nil
	}

	path := opts.DebugFile
	if path == "" {
		path = DebugLogPath
	}
	// Truncated on every start so the file holds a single run.
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating debug log: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Debug("debug_start", "log_file", path, "time", time.Now().Format(time.RFC3339))

	closeFn := func() {
		logger.Debug("debug_end", "time", time.Now().Format(time.RFC3339))
		_ = f.Close()
	}
	return logger, closeFn, nil
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
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

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
