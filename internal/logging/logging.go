// Package logging owns the process-wide logrus logger shared by the engine, the
// executors and the CLI. Until Init is called the logger discards everything, so
// library users that never configure logging get no output.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	mu  sync.RWMutex
	log *logrus.Logger
	// file is the log file opened by Init, closed when the logger is replaced.
	file *os.File
)

func init() {
	log = newSilentLogger()
}

// newSilentLogger returns a logger that writes nowhere.
func newSilentLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// Init initializes the logger with the given level, optional log file and console output.
// An unknown level falls back to info.
//
// Parameters:
//   - level: one of debug, info, warn, error
//   - logFile: path of a file to append to, or empty for none
//   - console: true to write to stderr
//
// Returns:
//   - error: an error if the log file could not be opened
func Init(level, logFile string, console bool) error {
	l := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)

	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	var writers []io.Writer
	if console {
		writers = append(writers, os.Stderr)
	}
	var f *os.File
	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return err
		}
		f, err = os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		writers = append(writers, f)
	}

	switch len(writers) {
	case 0:
		l.SetOutput(io.Discard)
	default:
		l.SetOutput(io.MultiWriter(writers...))
	}

	return replace(l, f)
}

// Set replaces the shared logger. Passing nil restores the silent logger. A log file opened
// by an earlier Init is closed.
func Set(l *logrus.Logger) {
	if l == nil {
		l = newSilentLogger()
	}
	if err := replace(l, nil); err != nil {
		l.Warnf("closing previous log file: %v", err)
	}
}

// Close restores the silent logger and closes the log file opened by Init, if any.
//
// Returns:
//   - error: an error from closing the log file
func Close() error {
	return replace(newSilentLogger(), nil)
}

// replace swaps in l and its log file f, then closes the previous file.
func replace(l *logrus.Logger, f *os.File) error {
	mu.Lock()
	prev := file
	log, file = l, f
	mu.Unlock()

	if prev == nil {
		return nil
	}
	return prev.Close()
}

// Get returns the logger instance.
func Get() *logrus.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// Component returns an entry tagged with the emitting component, e.g. "planner" or "gpu".
func Component(name string) *logrus.Entry {
	return Get().WithField("component", name)
}

func Debugf(format string, args ...any) {
	Get().Debugf(format, args...)
}

func Infof(format string, args ...any) {
	Get().Infof(format, args...)
}

func Warnf(format string, args ...any) {
	Get().Warnf(format, args...)
}

func Errorf(format string, args ...any) {
	Get().Errorf(format, args...)
}
