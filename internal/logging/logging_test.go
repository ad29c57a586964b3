package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestDefaultLoggerIsSilent(t *testing.T) {
	Set(nil)
	if Get().IsLevelEnabled(logrus.InfoLevel) {
		t.Error("default logger should not enable info level")
	}
}

func TestInitLevels(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  logrus.Level
	}{
		{"debug", "debug", logrus.DebugLevel},
		{"warn", "warn", logrus.WarnLevel},
		{"error", "error", logrus.ErrorLevel},
		{"unknown falls back to info", "chatty", logrus.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Init(tt.level, "", false); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			if got := Get().GetLevel(); got != tt.want {
				t.Errorf("GetLevel() = %v, want %v", got, tt.want)
			}
		})
	}
	Set(nil)
}

func TestInitWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "oxycopy.log")
	if err := Init("info", path, false); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer Set(nil)

	Component("planner").Info("plan ready")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "plan ready") || !strings.Contains(out, "component=planner") {
		t.Errorf("log file = %q, want message with component field", out)
	}
}

func TestInitClosesPreviousFile(t *testing.T) {
	dir := t.TempDir()
	if err := Init("info", filepath.Join(dir, "first.log"), false); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	first := file
	if first == nil {
		t.Fatal("Init() with a log file kept no file handle")
	}

	if err := Init("info", filepath.Join(dir, "second.log"), false); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, err := first.WriteString("late\n"); !errors.Is(err, os.ErrClosed) {
		t.Errorf("write to the first log file error = %v, want %v", err, os.ErrClosed)
	}

	second := file
	if err := Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := second.WriteString("late\n"); !errors.Is(err, os.ErrClosed) {
		t.Errorf("write after Close() error = %v, want %v", err, os.ErrClosed)
	}
	if file != nil || Get().IsLevelEnabled(logrus.InfoLevel) {
		t.Error("Close() should drop the file and restore the silent logger")
	}
	if err := Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestSetCustomLogger(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)
	Set(l)
	defer Set(nil)

	Debugf("dispatch %dx%dx%d", 1, 2, 3)
	if !strings.Contains(buf.String(), "dispatch 1x2x3") {
		t.Errorf("output = %q, want formatted debug message", buf.String())
	}
}
