package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestDefaultLogDir(t *testing.T) {
	dir := DefaultLogDir()
	if dir == "" {
		t.Error("DefaultLogDir returned empty string")
	}

	if !strings.Contains(dir, ".ewbsearch") || !strings.Contains(dir, "logs") {
		t.Errorf("DefaultLogDir should contain .ewbsearch/logs, got: %s", dir)
	}
}

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	if path == "" {
		t.Error("DefaultLogPath returned empty string")
	}

	if filepath.Base(path) != "service.log" {
		t.Errorf("DefaultLogPath should end with service.log, got: %s", path)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.FilePath != "" {
		t.Errorf("expected no log file by default, got: %s", cfg.FilePath)
	}
	if cfg.MaxSizeMB != 10 {
		t.Errorf("expected MaxSizeMB 10, got: %d", cfg.MaxSizeMB)
	}
	if cfg.MaxFiles != 5 {
		t.Errorf("expected MaxFiles 5, got: %d", cfg.MaxFiles)
	}
	if !cfg.WriteToStderr {
		t.Error("expected WriteToStderr to be true")
	}
}

func TestFileConfig(t *testing.T) {
	cfg := FileConfig()

	if cfg.FilePath == "" {
		t.Error("FileConfig should set a log file path")
	}
}

func TestSetup_WritesToFile(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "test.log")

	cfg := Config{
		Level:         "debug",
		FilePath:      logPath,
		MaxSizeMB:     1,
		MaxFiles:      3,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()

	if logger == nil {
		t.Fatal("Setup returned nil logger")
	}

	logger.Info("test message", "collection", "cordis")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	if !strings.Contains(string(data), `"collection":"cordis"`) {
		t.Errorf("expected structured field in log output, got: %s", data)
	}
}

func TestSetup_StderrOnlyWithoutFile(t *testing.T) {
	logger, cleanup, err := Setup(Config{Level: "info"})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()

	if logger == nil {
		t.Fatal("Setup returned nil logger")
	}
}

func TestSetup_TextFormat(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "text.log")

	logger, cleanup, err := Setup(Config{
		Level:    "info",
		Format:   "text",
		FilePath: logPath,
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()

	logger.Info("plain entry")

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	if strings.Contains(string(data), "{") {
		t.Errorf("text format should not emit JSON, got: %s", data)
	}
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"DEBUG", "DEBUG"},
		{"info", "INFO"},
		{"INFO", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"ERROR", "ERROR"},
		{"unknown", "INFO"}, // defaults to info
	}

	for _, tc := range tests {
		level := LevelFromString(tc.input)
		if level.String() != tc.expected {
			t.Errorf("LevelFromString(%q) = %s, want %s", tc.input, level.String(), tc.expected)
		}
	}
}

func TestRotatingWriter_RotatesAtMaxSize(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "rotate.log")

	// 1 MB max size with 3 rotated files kept.
	w, err := NewRotatingWriter(logPath, 1, 3)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	line := strings.Repeat("x", 1024)
	for i := 0; i < 1100; i++ {
		if _, err := w.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}

	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("expected rotated file %s.1 to exist: %v", logPath, err)
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("current log file missing: %v", err)
	}
	if info.Size() > 1024*1024 {
		t.Errorf("current log file exceeds max size: %d", info.Size())
	}
}

func TestRotatingWriter_KeepsAtMostMaxFiles(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "keep.log")

	w, err := NewRotatingWriter(logPath, 1, 2)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	line := strings.Repeat("y", 4096)
	for i := 0; i < 1200; i++ {
		if _, err := w.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	matches, err := filepath.Glob(logPath + ".*")
	if err != nil {
		t.Fatalf("glob failed: %v", err)
	}
	if len(matches) > 2 {
		t.Errorf("expected at most 2 rotated files, found %d: %v", len(matches), matches)
	}
}

func TestRotatingWriter_ConcurrentWrites(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "concurrent.log")

	w, err := NewRotatingWriter(logPath, 10, 3)
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer w.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_, _ = w.Write([]byte(fmt.Sprintf("writer %d line %d\n", n, j)))
			}
		}(i)
	}
	wg.Wait()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("reading log failed: %v", err)
	}
	lines := strings.Count(string(data), "\n")
	if lines != 800 {
		t.Errorf("expected 800 lines, got %d", lines)
	}
}
