// Package logger builds the application zerolog logger from config.
package logger

import (
	stdlog "log"

	"github.com/rs/zerolog"

	"github.com/lessuselesss/bounty-crawl/internal/common"
	"github.com/lessuselesss/bounty-crawl/internal/config"
)

// New creates a new logger instance from the log configuration.
func New(cfg config.LogConfig) (zerolog.Logger, error) {
	return NewLoggerBuilder().WithConfig(cfg).Build()
}

// NewWithRunID creates a new logger instance tagged with a scan run ID so log
// files can be organized per run.
func NewWithRunID(cfg config.LogConfig, runID string) (zerolog.Logger, error) {
	return NewLoggerBuilder().WithConfig(cfg).WithRunID(runID).Build()
}

// LoggerBuilder provides a fluent interface for building loggers.
type LoggerBuilder struct {
	config  loggerConfig
	factory *writerFactory
}

// NewLoggerBuilder creates a new logger builder with defaults.
func NewLoggerBuilder() *LoggerBuilder {
	return &LoggerBuilder{
		config:  defaultLoggerConfig(),
		factory: newWriterFactory(),
	}
}

// WithConfig sets the logger configuration.
func (lb *LoggerBuilder) WithConfig(cfg config.LogConfig) *LoggerBuilder {
	lb.config = convertConfig(cfg)
	return lb
}

// WithRunID sets the run ID for organizing log files by scan run.
func (lb *LoggerBuilder) WithRunID(runID string) *LoggerBuilder {
	lb.config.RunID = runID
	return lb
}

// Build creates the logger instance.
func (lb *LoggerBuilder) Build() (zerolog.Logger, error) {
	if err := lb.validateConfig(); err != nil {
		return zerolog.Logger{}, err
	}

	writers := lb.factory.createWriters(lb.config)
	if len(writers) == 0 {
		return zerolog.Logger{}, common.NewError("no log output writers configured")
	}

	multi := zerolog.MultiLevelWriter(writers...)
	logger := zerolog.New(multi).
		Level(lb.config.Level).
		With().
		Timestamp().
		Logger()

	zerolog.SetGlobalLevel(lb.config.Level)
	stdlog.SetOutput(logger)
	stdlog.SetFlags(0)

	return logger, nil
}

func (lb *LoggerBuilder) validateConfig() error {
	if lb.config.EnableFile && lb.config.FilePath == "" {
		return common.NewValidationError("file_path", lb.config.FilePath, "file path required when file logging enabled")
	}
	if lb.config.MaxSizeMB <= 0 {
		return common.NewValidationError("max_size_mb", lb.config.MaxSizeMB, "max size must be positive")
	}
	return nil
}
