package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

// Logger writes leveled, timestamped lines. Info/Warn/Debug go to stdout,
// Error to stderr. Debug output is gated; the gate defaults to on so tests
// stay verbose, and main turns it off unless configured otherwise.
type Logger struct {
	out    *log.Logger
	errOut *log.Logger
	debug  bool
}

// NewLogger creates a Logger writing to stdout/stderr.
func NewLogger() *Logger {
	return NewLoggerTo(os.Stdout, os.Stderr)
}

// NewLoggerTo creates a Logger writing to the given streams.
func NewLoggerTo(out, errOut io.Writer) *Logger {
	return &Logger{
		out:    log.New(out, "", 0),
		errOut: log.New(errOut, "", 0),
		debug:  true,
	}
}

// SetDebug toggles debug-level output.
func (l *Logger) SetDebug(enabled bool) {
	l.debug = enabled
}

func (l *Logger) logf(dst *log.Logger, level, color, format string, args ...any) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	dst.Printf(fmt.Sprintf("[%s] \033[%sm%-5s\033[0m %s\n", ts, color, level, format), args...)
}

func (l *Logger) Info(format string, args ...any) {
	l.logf(l.out, "INFO", "32", format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.logf(l.out, "WARN", "33", format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.logf(l.errOut, "ERROR", "31", format, args...)
}

func (l *Logger) Debug(format string, args ...any) {
	if !l.debug {
		return
	}
	l.logf(l.out, "DEBUG", "36", format, args...)
}
