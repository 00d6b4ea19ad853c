// Package logging provides per-job loggers that write to a log file
// and optionally tee to the console.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Logger writes structured log lines for one job.
type Logger struct {
	log  *logrus.Logger
	file *os.File
}

// NewForJob creates a logger writing to logPath, teeing to stderr when
// console is set. Fields are attached to every line.
func NewForJob(logPath string, console bool, fields map[string]any) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(logrus.DebugLevel)
	if console {
		log.SetOutput(io.MultiWriter(file, os.Stderr))
	} else {
		log.SetOutput(file)
	}
	if len(fields) > 0 {
		log.AddHook(&fieldHook{fields: logrus.Fields(fields)})
	}

	return &Logger{log: log, file: file}, nil
}

// Discard returns a logger that drops everything. Useful as a default
// when callers pass nil.
func Discard() *Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Logger{log: log}
}

// Info logs a formatted message at info level.
func (l *Logger) Info(format string, args ...any) {
	l.log.Infof(format, args...)
}

// Warn logs a formatted message at warning level.
func (l *Logger) Warn(format string, args ...any) {
	l.log.Warnf(format, args...)
}

// Error logs a formatted message at error level.
func (l *Logger) Error(format string, args ...any) {
	l.log.Errorf(format, args...)
}

// Debug logs a formatted message at debug level.
func (l *Logger) Debug(format string, args ...any) {
	l.log.Debugf(format, args...)
}

// WithField returns an entry carrying an extra field, for call sites
// that want key=value context on a burst of lines.
func (l *Logger) WithField(key string, value any) *logrus.Entry {
	return l.log.WithField(key, value)
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// fieldHook stamps fixed fields onto every entry.
type fieldHook struct {
	fields logrus.Fields
}

func (h *fieldHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *fieldHook) Fire(e *logrus.Entry) error {
	for k, v := range h.fields {
		if _, exists := e.Data[k]; !exists {
			e.Data[k] = v
		}
	}
	return nil
}
