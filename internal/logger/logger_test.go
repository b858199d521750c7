package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInitWriter_JSONLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", "json")
	t.Cleanup(func() { defaultLogger = nil })

	Info("dropped %d", 1)
	Warn("kept %d", 2)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry["level"] != "warn" {
		t.Errorf("level = %v, want warn", entry["level"])
	}
	if entry["message"] != "kept 2" {
		t.Errorf("message = %v, want %q", entry["message"], "kept 2")
	}
}

func TestInitWriter_UnknownLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "verbose", "json")
	t.Cleanup(func() { defaultLogger = nil })

	Debug("hidden")
	Info("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug line written at default info level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("info line missing")
	}
}

func TestInitWriter_Text(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", "text")
	t.Cleanup(func() { defaultLogger = nil })

	Error("cycle failed: %v", "boom")
	out := buf.String()
	if !strings.Contains(out, "cycle failed: boom") {
		t.Errorf("missing message in %q", out)
	}
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Errorf("text format produced JSON: %q", out)
	}
}

func TestNilLoggerIsSilent(t *testing.T) {
	defaultLogger = nil
	Info("no panic")
}
