package logger

import (
	"io"
	"strings"
)

// Logger is the unified logging interface used across the module
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	Shutdown() error
}

// Level is the minimum severity emitted
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel parses a string into a Level (case-insensitive)
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "info":
		return LevelInfo
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format is the log output encoding
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// ParseFormat parses a string into a Format (case-insensitive)
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// FileConfig configures rotated file output
type FileConfig struct {
	// Path of the log file; empty disables file output
	Path string

	MaxSizeMB  int
	MaxAgeDays int
	MaxBackups int
	Compress   bool
}

// Config configures a logger
type Config struct {
	Level  Level
	Format Format

	// Output receives log lines; nil defaults to stderr
	Output io.Writer

	// File enables additional rotated file output when Path is set
	File FileConfig
}
