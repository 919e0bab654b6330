package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"membooth/internal/config"
)

func TestLogFilePath(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")

	expected := filepath.Join(cfg.Paths.LogDir, "membooth.log")
	if got := logFilePath(&cfg); got != expected {
		t.Fatalf("expected log path %q, got %q", expected, got)
	}
	if got := logFilePath(nil); got != "membooth.log" {
		t.Fatalf("expected fallback log path, got %q", got)
	}
}

func TestWritePIDFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	path := pidFilePath(&cfg)
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	if pid, convErr := strconv.Atoi(strings.TrimSpace(string(data))); convErr != nil || pid != os.Getpid() {
		t.Fatalf("unexpected pid file contents %q", data)
	}
	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be a no-op, got %v", err)
	}
}
