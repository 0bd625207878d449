// ABOUTME: Tests for structured logger construction and level parsing
// ABOUTME: Validates JSON output, service attributes, and level filtering

package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"  Info  ", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLogLevel(tt.input); got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewLogger_JSONWithServiceAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "hikmaai-sentinel",
		Version:     "test",
	}, &buf)

	logger.Info("hello", slog.String("k", "v"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["service"] != "hikmaai-sentinel" {
		t.Errorf("service = %v, want hikmaai-sentinel", entry["service"])
	}
	if entry["k"] != "v" {
		t.Errorf("k = %v, want v", entry["k"])
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "text"}, &buf)

	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Errorf("info line logged at warn level: %q", buf.String())
	}

	logger.Warn("kept")
	if buf.Len() == 0 {
		t.Error("warn line not logged")
	}
}
