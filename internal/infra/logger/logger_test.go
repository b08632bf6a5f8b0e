package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogWritesAboveConfiguredLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := New(path, LevelWarn, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Debug("should not appear")
	l.Warn("should appear: %d", 42)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "should not appear") {
		t.Fatal("debug line logged below configured level")
	}
	if !strings.Contains(string(data), "should appear: 42") {
		t.Fatalf("expected warn line in log, got %q", data)
	}
}

func TestParseLevelDefaultsToInfo(t *testing.T) {
	if ParseLevel("bogus") != LevelInfo {
		t.Fatal("expected unknown level string to default to Info")
	}
	if ParseLevel("DEBUG") != LevelDebug {
		t.Fatal("expected case-insensitive match for debug")
	}
}

func TestWriteGoesThroughInfoLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := New(path, LevelInfo, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	n, err := l.Write([]byte("request handled\n"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if n != len("request handled\n") {
		t.Fatalf("unexpected byte count %d", n)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "request handled") {
		t.Fatalf("expected write to reach log file, got %q", data)
	}
}
