package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lessuselesss/bounty-crawl/internal/config"
)

// logFormat represents available log formats.
type logFormat int

const (
	formatJSON logFormat = iota
	formatConsole
	formatText
)

// loggerConfig is the resolved internal logger configuration.
type loggerConfig struct {
	Level         zerolog.Level
	Format        logFormat
	EnableConsole bool
	EnableFile    bool
	FilePath      string
	MaxSizeMB     int
	MaxBackups    int
	RunID         string
}

func defaultLoggerConfig() loggerConfig {
	return loggerConfig{
		Level:         zerolog.InfoLevel,
		Format:        formatConsole,
		EnableConsole: true,
		MaxSizeMB:     100,
		MaxBackups:    3,
	}
}

// convertConfig maps the YAML-facing config.LogConfig onto loggerConfig.
func convertConfig(cfg config.LogConfig) loggerConfig {
	out := defaultLoggerConfig()

	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		out.Level = zerolog.DebugLevel
	case "warn":
		out.Level = zerolog.WarnLevel
	case "error":
		out.Level = zerolog.ErrorLevel
	case "fatal":
		out.Level = zerolog.FatalLevel
	case "info", "":
		out.Level = zerolog.InfoLevel
	}

	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		out.Format = formatJSON
	case "text":
		out.Format = formatText
	default:
		out.Format = formatConsole
	}

	out.EnableFile = cfg.LogFile != ""
	out.FilePath = cfg.LogFile
	if cfg.MaxLogSizeMB > 0 {
		out.MaxSizeMB = cfg.MaxLogSizeMB
	}
	if cfg.MaxLogBackups > 0 {
		out.MaxBackups = cfg.MaxLogBackups
	}
	return out
}

// writerFactory creates log writers based on format.
type writerFactory struct{}

func newWriterFactory() *writerFactory {
	return &writerFactory{}
}

func (wf *writerFactory) createWriters(cfg loggerConfig) []io.Writer {
	var writers []io.Writer
	if cfg.EnableConsole {
		writers = append(writers, wf.consoleWriter(cfg.Format))
	}
	if cfg.EnableFile {
		writers = append(writers, wf.fileWriter(cfg))
	}
	return writers
}

func (wf *writerFactory) consoleWriter(format logFormat) io.Writer {
	if format == formatJSON {
		return os.Stderr
	}
	return zerolog.ConsoleWriter{Out: os.Stderr, NoColor: format == formatText}
}

func (wf *writerFactory) fileWriter(cfg loggerConfig) io.Writer {
	finalPath := cfg.FilePath
	if cfg.RunID != "" {
		baseDir := filepath.Dir(cfg.FilePath)
		finalPath = filepath.Join(baseDir, "runs", cfg.RunID, filepath.Base(cfg.FilePath))
	}
	if err := os.MkdirAll(filepath.Dir(finalPath), 0755); err != nil {
		finalPath = cfg.FilePath
	}

	rotated := &lumberjack.Logger{
		Filename:   finalPath,
		MaxSize:    cfg.MaxSizeMB,
		LocalTime:  true,
		MaxBackups: cfg.MaxBackups,
	}
	if cfg.Format == formatConsole || cfg.Format == formatText {
		return zerolog.ConsoleWriter{Out: rotated, NoColor: true}
	}
	return rotated
}
