package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"verbose", slog.LevelInfo}, // default
		{"", slog.LevelInfo},        // default
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGetInitializesOnce(t *testing.T) {
	defaultLogger = nil
	defer func() { defaultLogger = nil }()

	l := Get()
	if l == nil {
		t.Fatal("Get() should return a logger")
	}
	if Get() != l {
		t.Error("Get() should return the same logger instance")
	}
}

func TestInitWriterJSON(t *testing.T) {
	defer func() { defaultLogger = nil }()
	var buf bytes.Buffer
	InitWriter("warn", &buf, true)

	Info("dropped")
	Warn("kept", "step", 12)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one line above the level threshold, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["step"] != float64(12) {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestRunIDContext(t *testing.T) {
	defer func() { defaultLogger = nil }()
	var buf bytes.Buffer
	InitWriter("debug", &buf, false)

	ctx := ContextWithRunID(context.Background(), "run-42")
	InfoContext(ctx, "segment done")
	if !strings.Contains(buf.String(), "run_id=run-42") {
		t.Errorf("run ID missing from %q", buf.String())
	}

	buf.Reset()
	WarnContext(context.Background(), "no run")
	if strings.Contains(buf.String(), "run_id") {
		t.Errorf("unexpected run ID in %q", buf.String())
	}

	buf.Reset()
	ErrorContext(ctx, "failed")
	if !strings.Contains(buf.String(), "level=ERROR") {
		t.Errorf("expected error level in %q", buf.String())
	}
}

func TestWithComponent(t *testing.T) {
	defer func() { defaultLogger = nil }()
	var buf bytes.Buffer
	InitWriter("debug", &buf, false)

	WithComponent("driver").Debug("tick")
	if !strings.Contains(buf.String(), "component=driver") {
		t.Errorf("component missing from %q", buf.String())
	}
	Debug("plain")
	Error("plain error")
	if !strings.Contains(buf.String(), "plain error") {
		t.Error("Error message not logged")
	}
}
