package logger

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, level Level) (*DefaultLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "logs", "run.log")
	l, err := NewDefaultLogger(&Config{
		LogFilePath: logPath,
		MaxFileSize: 1024 * 1024,
		MaxBackups:  3,
		Level:       level,
	})
	if err != nil {
		t.Fatalf("NewDefaultLogger: %v", err)
	}
	return l, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return string(b)
}

func TestNewDefaultLoggerCreatesDirectory(t *testing.T) {
	l, path := newTestLogger(t, LevelInfo)
	defer l.Close()

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

func TestEntriesCarryLevelMessageAndFields(t *testing.T) {
	l, path := newTestLogger(t, LevelDebug)

	l.Debug("page classified", String("label", "TOC"))
	l.Info("chunked", Int("chunks", 3))
	l.Warn("attempt failed", Bool("retry", true), Duration("wait", 1500*time.Millisecond))
	l.Error("page failed", errors.New("timeout"), Float64("ratio", 0.5))
	l.Close()

	content := readLog(t, path)
	for _, want := range []string{
		"[DEBUG] page classified label=TOC",
		"[INFO] chunked chunks=3",
		"[WARN] attempt failed retry=true wait=1.5s",
		`[ERROR] page failed error="timeout" ratio=0.5`,
		"Stack trace:",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log missing %q\n%s", want, content)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	l, path := newTestLogger(t, LevelWarn)

	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("visible warn")
	l.SetLevel(LevelDebug)
	l.Debug("now visible")
	l.Close()

	content := readLog(t, path)
	if strings.Contains(content, "hidden") {
		t.Errorf("filtered entries were written:\n%s", content)
	}
	if !strings.Contains(content, "visible warn") || !strings.Contains(content, "now visible") {
		t.Errorf("expected entries missing:\n%s", content)
	}
}

func TestWithPrependsFields(t *testing.T) {
	l, path := newTestLogger(t, LevelInfo)

	child := l.With(Int("page", 7))
	child.Info("translated", String("label", "PROSE"))
	l.Info("parent entry")
	l.Close()

	content := readLog(t, path)
	if !strings.Contains(content, "translated page=7 label=PROSE") {
		t.Errorf("child fields not prepended:\n%s", content)
	}
	if strings.Contains(content, "parent entry page=7") {
		t.Errorf("child fields leaked into parent:\n%s", content)
	}
}

func TestStringValuesWithSpacesAreQuoted(t *testing.T) {
	l, path := newTestLogger(t, LevelInfo)
	l.Info("input", String("file", "my report.pdf"))
	l.Close()

	if content := readLog(t, path); !strings.Contains(content, `file="my report.pdf"`) {
		t.Errorf("value not quoted:\n%s", content)
	}
}

func TestConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewDefaultLogger(&Config{Level: LevelInfo, EnableConsole: true, Console: &buf})
	if err != nil {
		t.Fatalf("NewDefaultLogger: %v", err)
	}
	l.Info("hello", Int("n", 1))
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !strings.Contains(buf.String(), "[INFO] hello n=1") {
		t.Errorf("console output = %q", buf.String())
	}
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotate.log")
	l, err := NewDefaultLogger(&Config{
		LogFilePath: path,
		MaxFileSize: 200,
		MaxBackups:  2,
		Level:       LevelInfo,
	})
	if err != nil {
		t.Fatalf("NewDefaultLogger: %v", err)
	}
	for i := 0; i < 40; i++ {
		l.Info(fmt.Sprintf("entry %02d with some padding text", i))
	}
	l.Close()

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Errorf("expected first backup: %v", err)
	}
	if _, err := os.Stat(path + ".2"); err != nil {
		t.Errorf("expected second backup: %v", err)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Errorf("backup beyond MaxBackups should not exist, stat err = %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("live log missing: %v", err)
	}
	if info.Size() > 200 {
		t.Errorf("live log size %d exceeds MaxFileSize", info.Size())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"", LevelInfo, true},
		{"warning", LevelWarn, true},
		{" error ", LevelError, true},
		{"verbose", LevelInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestGlobalLogger(t *testing.T) {
	Close()
	// before Init the global logger discards everything
	Info("dropped")
	GetLogger().With(String("k", "v")).Warn("dropped too")

	path := filepath.Join(t.TempDir(), "global.log")
	if err := Init(&Config{LogFilePath: path, MaxFileSize: 1 << 20, MaxBackups: 1, Level: LevelInfo}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("global entry", String("stage", "extract"))
	Error("global failure", errors.New("boom"))
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	content := readLog(t, path)
	if !strings.Contains(content, "global entry stage=extract") {
		t.Errorf("global info missing:\n%s", content)
	}
	if !strings.Contains(content, `global failure error="boom"`) {
		t.Errorf("global error missing:\n%s", content)
	}
	if _, ok := GetLogger().(noopLogger); !ok {
		t.Errorf("GetLogger after Close should be no-op, got %T", GetLogger())
	}
}
