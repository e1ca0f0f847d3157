package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger provides leveled logging on top of zerolog.
type Logger struct {
	mu     sync.Mutex
	zl     zerolog.Logger
	file   *os.File
	stdout bool
}

var (
	defaultLogger *Logger
	loggerMu      sync.Mutex
)

// GetLogger returns the default logger instance.
func GetLogger() *Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = NewLogger(zerolog.InfoLevel, "", true)
	}
	return defaultLogger
}

// NewLogger creates a logger writing to stdout and, when filePath is set,
// appending to that file. With stdout false only the file receives output.
func NewLogger(level zerolog.Level, filePath string, stdout bool) *Logger {
	l := &Logger{stdout: stdout}

	var writers []io.Writer
	if stdout {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime})
	}

	if filePath != "" {
		if err := EnsureDir(filepath.Dir(filePath)); err == nil {
			file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err == nil {
				l.file = file
				writers = append(writers, file)
			}
		}
	}

	var out io.Writer = io.Discard
	if len(writers) > 0 {
		out = zerolog.MultiLevelWriter(writers...)
	}

	l.zl = zerolog.New(out).Level(level).With().Timestamp().Logger()
	return l
}

// SetLevel sets the logging level.
func (l *Logger) SetLevel(level zerolog.Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.zl = l.zl.Level(level)
}

// ParseLevel parses a string log level, defaulting to info.
func ParseLevel(s string) zerolog.Level {
	if s == "warning" {
		return zerolog.WarnLevel
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// Close closes the log file if open.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Zerolog exposes the underlying logger for structured fields.
func (l *Logger) Zerolog() zerolog.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.zl
}

func (l *Logger) log(level zerolog.Level, format string, args ...interface{}) {
	l.mu.Lock()
	zl := l.zl
	l.mu.Unlock()

	zl.WithLevel(level).Msg(fmt.Sprintf(format, args...))
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(zerolog.DebugLevel, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(zerolog.InfoLevel, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(zerolog.WarnLevel, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(zerolog.ErrorLevel, format, args...)
}

// Debug logs a debug message using the default logger.
func Debug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

// Info logs an info message using the default logger.
func Info(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

// Warn logs a warning message using the default logger.
func Warn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

// Error logs an error message using the default logger.
func Error(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// InitLogger replaces the default logger. Interactive modes pass
// stdout=false so log lines do not corrupt the terminal UI.
func InitLogger(level string, filePath string, stdout bool) {
	next := NewLogger(ParseLevel(level), filePath, stdout)

	loggerMu.Lock()
	prev := defaultLogger
	defaultLogger = next
	loggerMu.Unlock()

	if prev != nil {
		prev.Close()
	}
}
