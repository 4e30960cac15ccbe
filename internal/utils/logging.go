package utils

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogFormat represents the logging format
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Logger wraps logrus.Logger with component-scoped helpers
type Logger struct {
	*logrus.Logger
}

// LoggerConfig holds configuration for the logger
type LoggerConfig struct {
	Level  LogLevel
	Format LogFormat
	// Output defaults to stderr so reports on stdout stay machine readable
	Output io.Writer
}

// NewLogger creates a new logger with the given configuration
func NewLogger(config LoggerConfig) *Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(string(config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	switch config.Format {
	case LogFormatJSON:
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		})
	}

	if config.Output != nil {
		logger.SetOutput(config.Output)
	} else {
		logger.SetOutput(os.Stderr)
	}

	return &Logger{Logger: logger}
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	return NewLogger(LoggerConfig{
		Level:  LogLevelInfo,
		Format: LogFormatText,
	})
}

// NewLoggerFromConfig builds the logger described by cfg. verbose forces debug.
func NewLoggerFromConfig(cfg *Config, verbose bool, output io.Writer) (*Logger, error) {
	level, err := ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = LogLevelDebug
	}
	return NewLogger(LoggerConfig{
		Level:  level,
		Format: ParseLogFormat(cfg.LogFormat),
		Output: output,
	}), nil
}

// WithComponent adds a component field to the logger
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.WithField("component", component)
}

// ParseLogLevel parses a log level string
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return LogLevelDebug, nil
	case "info", "":
		return LogLevelInfo, nil
	case "warn", "warning":
		return LogLevelWarn, nil
	case "error":
		return LogLevelError, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

// ParseLogFormat parses a log format string
func ParseLogFormat(format string) LogFormat {
	switch strings.ToLower(format) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatText
	}
}
