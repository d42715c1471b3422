// Package logger writes the append-only diagnostics log.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// TimeFormat is the timestamp layout of every log line
const TimeFormat = "2006-01-02 15:04:05"

// Options configures a Logger
type Options struct {
	File    string    // appended to, created if missing
	Level   string    // debug, info, warn or error
	Console io.Writer // optional second sink, e.g. os.Stderr for the daemon
}

// Logger is a zerolog logger bound to its log file
type Logger struct {
	zerolog.Logger
	file *os.File
}

// New opens the log file and builds a logger writing human-readable lines
func New(opts Options) (*Logger, error) {
	var writers []io.Writer
	var file *os.File

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        f,
			NoColor:    true,
			TimeFormat: TimeFormat,
		})
	}

	if opts.Console != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        opts.Console,
			TimeFormat: TimeFormat,
		})
	}

	var out io.Writer = io.Discard
	switch len(writers) {
	case 0:
	case 1:
		out = writers[0]
	default:
		out = zerolog.MultiLevelWriter(writers...)
	}

	return &Logger{
		Logger: zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp().Logger(),
		file:   file,
	}, nil
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// ParseLevel maps a config level name to a zerolog level, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Close closes the log file
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Clear empties the log file at path. A missing file is not an error.
// Loggers holding the file open keep appending from the new end.
func Clear(path string) error {
	if err := os.Truncate(path, 0); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear log file: %w", err)
	}
	return nil
}

// Cron returns an adapter that routes scheduler messages into this log
func (l *Logger) Cron() cron.Logger {
	return cronLogger{l}
}

type cronLogger struct {
	l *Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	// cron logs every wake-up at info; keep those out of the file
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
