package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// SlogLogger implements Logger over log/slog
type SlogLogger struct {
	logger  *slog.Logger
	writers []io.WriteCloser // writers that need closing on shutdown
}

// NewSlogLogger creates a new slog-backed logger
func NewSlogLogger(config Config) (*SlogLogger, error) {
	var writers []io.Writer
	var closeable []io.WriteCloser

	if config.Output != nil {
		writers = append(writers, config.Output)
	} else {
		writers = append(writers, os.Stderr)
	}

	if config.File.Path != "" {
		fileWriter, err := createFileWriter(config.File)
		if err != nil {
			return nil, fmt.Errorf("failed to create file writer: %w", err)
		}
		writers = append(writers, fileWriter)
		closeable = append(closeable, fileWriter)
	}

	multiWriter := io.MultiWriter(writers...)

	opts := &slog.HandlerOptions{
		Level: convertLevel(config.Level),
	}

	var handler slog.Handler
	switch config.Format {
	case FormatJSON:
		handler = slog.NewJSONHandler(multiWriter, opts)
	default:
		handler = slog.NewTextHandler(multiWriter, opts)
	}

	return &SlogLogger{
		logger:  slog.New(handler),
		writers: closeable,
	}, nil
}

// createFileWriter creates a rotated file writer
func createFileWriter(config FileConfig) (io.WriteCloser, error) {
	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &lumberjack.Logger{
		Filename:   config.Path,
		MaxSize:    config.MaxSizeMB,
		MaxAge:     config.MaxAgeDays,
		MaxBackups: config.MaxBackups,
		Compress:   config.Compress,
	}, nil
}

// convertLevel converts the internal Level to slog.Level
func convertLevel(level Level) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (s *SlogLogger) Debug(msg string, args ...any) { s.logger.Debug(msg, args...) }
func (s *SlogLogger) Info(msg string, args ...any)  { s.logger.Info(msg, args...) }
func (s *SlogLogger) Warn(msg string, args ...any)  { s.logger.Warn(msg, args...) }
func (s *SlogLogger) Error(msg string, args ...any) { s.logger.Error(msg, args...) }

// With creates a child logger with bound attributes
func (s *SlogLogger) With(args ...any) Logger {
	return &SlogLogger{logger: s.logger.With(args...)}
}

// Shutdown closes the file writers
func (s *SlogLogger) Shutdown() error {
	var firstErr error
	for _, w := range s.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
