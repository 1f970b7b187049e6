// Package diaglog writes the append-only diagnostic log of a load run.
//
// Lines have the form "2006-01-02 15:04:05,000 - LEVEL - message". Console
// output stays on the standard log package; only row-level detail goes here.
package diaglog

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	LevelError = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

const timeLayout = "2006-01-02 15:04:05,000"

var levelNames = [...]string{"ERROR", "WARNING", "INFO", "DEBUG"}

// Logger is the diagnostic logging interface used by the pipeline
type Logger interface {
	Debugf(format string, v ...interface{})
	Infof(format string, v ...interface{})
	Warnf(format string, v ...interface{})
	Errorf(format string, v ...interface{})
}

// Ensure nopLogger implements interface.
var _ Logger = nopLogger{}

// Nop discards everything.
var Nop Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Debugf(format string, v ...interface{}) {}
func (nopLogger) Infof(format string, v ...interface{})  {}
func (nopLogger) Warnf(format string, v ...interface{})  {}
func (nopLogger) Errorf(format string, v ...interface{}) {}

// FileLogger is a leveled logger over a single writer
type FileLogger struct {
	mu        sync.Mutex
	w         io.Writer
	closer    io.Closer
	verbosity int
	now       func() time.Time
}

// New returns a logger writing to w at the given verbosity
func New(w io.Writer, verbosity int) *FileLogger {
	return &FileLogger{w: w, verbosity: verbosity, now: time.Now}
}

// Open opens path for appending, creating it if needed
func Open(path string, verbosity int) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("open diagnostic log %s: %w", path, err)
	}
	l := New(f, verbosity)
	l.closer = f
	return l, nil
}

// ParseLevel maps a level name to its verbosity. Unknown names fall back to error.
func ParseLevel(name string) int {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	default:
		return LevelError
	}
}

func (l *FileLogger) printf(level int, format string, v ...interface{}) {
	if level > l.verbosity {
		return
	}
	msg := fmt.Sprintf(format, v...)
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := fmt.Fprintf(l.w, "%s - %s - %s\n", l.now().Format(timeLayout), levelNames[level], msg); err != nil {
		log.Printf("[diaglog] write failed: %v", err)
	}
}

func (l *FileLogger) Debugf(format string, v ...interface{}) { l.printf(LevelDebug, format, v...) }
func (l *FileLogger) Infof(format string, v ...interface{})  { l.printf(LevelInfo, format, v...) }
func (l *FileLogger) Warnf(format string, v ...interface{})  { l.printf(LevelWarn, format, v...) }
func (l *FileLogger) Errorf(format string, v ...interface{}) { l.printf(LevelError, format, v...) }

// Close closes the underlying file, if the logger owns one
func (l *FileLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closer.Close()
}
