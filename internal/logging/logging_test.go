package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Zacy-Sokach/RAGChat/internal/config"
)

func TestInitWritesJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "ragchat.log")

	logger, closeLog, err := Init(config.LogConfig{Level: "info", Format: "json", File: logPath})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer closeLog()

	logger.Info("hello", slog.String("component", "test"))
	logger.Debug("hidden")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("Expected 1 log line (debug filtered), got %d: %s", len(lines), data)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("Log line is not JSON: %v", err)
	}
	if entry["msg"] != "hello" || entry["component"] != "test" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestInitTextFormat(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "ragchat.log")

	logger, closeLog, err := Init(config.LogConfig{Level: "debug", Format: "text", File: logPath})
	if err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer closeLog()

	logger.Debug("upload started", "file", "paper.pdf")

	data, _ := os.ReadFile(logPath)
	if !strings.Contains(string(data), `msg="upload started"`) || !strings.Contains(string(data), "file=paper.pdf") {
		t.Errorf("Unexpected text log: %s", data)
	}
}

func TestDefaultLogPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("RAGCHAT_CONFIG_HOME", dir)

	want := filepath.Join(dir, "logs", "ragchat.log")
	if got := LogPath(config.LogConfig{}); got != want {
		t.Errorf("LogPath() = %q, want %q", got, want)
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
