package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger implements the ports.Logger interface using logrus.
type Logger struct {
	log *logrus.Logger
}

// Config holds configuration for the logrus adapter.
type Config struct {
	Level      string // debug, info, warn, error
	OutputFile string // optional; empty means stderr only
	MaxSizeMB  int    // rotated file size, defaults to 50
	MaxBackups int    // rotated files kept, defaults to 3
	MaxAgeDays int    // rotated file retention, defaults to 14
}

// ParseLevel converts a string level to a logrus level, defaulting to Info.
func ParseLevel(levelStr string) logrus.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// New creates a logrus-backed logger. When an output file is configured the
// log is written both to stderr and to a size-rotated file.
func New(cfg Config) (*Logger, error) {
	log := logrus.New()
	log.SetLevel(ParseLevel(cfg.Level))
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		DisableColors:   true,
	})

	writers := []io.Writer{os.Stderr}
	if cfg.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0755); err != nil {
			return nil, err
		}
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		maxBackups := cfg.MaxBackups
		if maxBackups <= 0 {
			maxBackups = 3
		}
		maxAge := cfg.MaxAgeDays
		if maxAge <= 0 {
			maxAge = 14
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.OutputFile,
			MaxSize:    maxSize,
			MaxBackups: maxBackups,
			MaxAge:     maxAge,
			Compress:   true,
		})
	}
	log.SetOutput(io.MultiWriter(writers...))

	return &Logger{log: log}, nil
}

func mergeFields(fields []map[string]interface{}) logrus.Fields {
	if len(fields) == 0 {
		return nil
	}
	merged := logrus.Fields{}
	for _, m := range fields {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}

// Debug logs a message at Debug level.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log.WithFields(mergeFields(fields)).Debug(msg)
}

// Info logs a message at Info level.
func (l *Logger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log.WithFields(mergeFields(fields)).Info(msg)
}

// Warn logs a message at Warn level.
func (l *Logger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	l.log.WithFields(mergeFields(fields)).Warn(msg)
}

// Error logs a message at Error level, attaching the error as a field.
func (l *Logger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	entry := l.log.WithFields(mergeFields(fields))
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Error(msg)
}
