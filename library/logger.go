package library

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Logger is a small leveled logger used for diagnostics. It never writes to
// stdout, which belongs to the command output.
type Logger struct {
	mu     sync.Mutex
	file   *os.File
	logger *log.Logger
}

// NewLogger writes to w. A nil writer discards everything.
func NewLogger(w io.Writer) *Logger {
	if w == nil {
		w = io.Discard
	}
	return &Logger{logger: log.New(w, "", log.LstdFlags)}
}

// NewFileLogger appends to the file at path, creating it if needed.
func NewFileLogger(path string) (*Logger, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	l := NewLogger(file)
	l.file = file
	return l, nil
}

// NopLogger discards everything.
func NopLogger() *Logger { return NewLogger(nil) }

func (l *Logger) print(prefix, msg string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.SetPrefix(prefix)
	l.logger.Println(msg)
}

func (l *Logger) Info(msg string)  { l.print("INFO: ", msg) }
func (l *Logger) Warn(msg string)  { l.print("WARN: ", msg) }
func (l *Logger) Error(msg string) { l.print("ERROR: ", msg) }

func (l *Logger) Infof(format string, args ...any)  { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...any)  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...any) { l.Error(fmt.Sprintf(format, args...)) }

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}
