package debug

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
	logger  = newLogger(io.Discard)
)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// Enable starts debug logging to ~/.config/jamseq/debug.log
func Enable() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	return EnableFile(filepath.Join(homeDir, ".config", "jamseq", "debug.log"))
}

// EnableFile starts debug logging to the given path (truncated)
func EnableFile(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true
	logger.SetOutput(f)
	logger.WithField("cat", "debug").Info("=== Debug logging started ===")

	return nil
}

// SetOutput sends log lines to w without touching any file (tests, stderr)
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
	enabled = w != io.Discard
}

// SetLevel parses a logrus level name ("debug", "info", "warn"...)
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	logger.SetLevel(lvl)
	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	logger.SetOutput(io.Discard)
	enabled = false
}

// Log writes a debug message under a category
func Log(category, format string, args ...any) {
	if !isEnabled() {
		return
	}
	logger.WithField("cat", category).Debugf(format, args...)
}

// Warn writes a warning under a category. Used for dropped edits and stale
// references, which are never fatal.
func Warn(category, format string, args ...any) {
	if !isEnabled() {
		return
	}
	logger.WithField("cat", category).Warnf(format, args...)
}

func isEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

var counters = make(map[string]int)

// LogEvery logs only every N calls (use for high-frequency events)
func LogEvery(n int, category, format string, args ...any) {
	if n < 1 {
		n = 1
	}
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
