package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"loud", slog.LevelInfo},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			if got := ParseLevel(tc.in); got != tc.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestNew_TextToStderr(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "warn", Stderr: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer closeFn()

	logger.Info("hidden")
	logger.Warn("shown", "grid", "March2025")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line logged at warn level: %q", out)
	}
	if !strings.Contains(out, "msg=shown") || !strings.Contains(out, "grid=March2025") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestNew_DebugFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.log")

	logger, closeFn, err := New(Options{Level: "error", Debug: true, DebugFile: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Debug("reserve", "op", "abc")
	closeFn()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading debug log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected start, entry and end lines, got %d: %q", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("debug line is not JSON: %v", err)
	}
	if entry["msg"] != "reserve" || entry["op"] != "abc" {
		t.Errorf("unexpected entry %v", entry)
	}
}
