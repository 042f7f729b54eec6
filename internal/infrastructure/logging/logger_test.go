package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/draycott-io/fleet-core/internal/infrastructure/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNew_DefaultFields(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := &Logger{Logger: slog.New(handler.WithAttrs([]slog.Attr{
		slog.String("service", "fleetcore"),
		slog.String("version", "test"),
	}))}

	logger.Info("hello", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not valid JSON: %v", err)
	}
	if entry["service"] != "fleetcore" {
		t.Errorf("service = %v, want fleetcore", entry["service"])
	}
	if entry["version"] != "test" {
		t.Errorf("version = %v, want test", entry["version"])
	}
	if entry["key"] != "value" {
		t.Errorf("key = %v, want value", entry["key"])
	}
}

func TestWith_AddsAttributes(t *testing.T) {
	logger := Default()
	child := logger.With("component", "mqtt")

	if child == nil {
		t.Fatal("With returned nil")
	}
	if child == logger {
		t.Error("With should return a new logger, not the receiver")
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	cfg := config.LoggingConfig{Level: "error", Format: "json", Output: "stdout"}
	logger := New(cfg, "test")

	if logger.Enabled(nil, slog.LevelInfo) {
		t.Error("info should be filtered at error level")
	}
	if !logger.Enabled(nil, slog.LevelError) {
		t.Error("error should be enabled at error level")
	}
}
