package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewWritesRotatingFile(t *testing.T) {
	config := DefaultConfig()
	config.File = filepath.Join(t.TempDir(), "logs", "api.log")

	logger, closeFn, err := New(config)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	logger.Info("FAE classifier is all ready to go!")
	if err := closeFn(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	payload, err := os.ReadFile(config.File)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(payload), `"msg":"FAE classifier is all ready to go!"`) {
		t.Fatalf("unexpected log file contents: %s", payload)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	if _, _, err := New(Config{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, _, err := New(Config{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
