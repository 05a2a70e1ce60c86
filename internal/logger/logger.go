// Package logger provides structured logging configuration using log/slog.
package logger

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds logger configuration.
type Config struct {
	Level  slog.Level
	Format string // "text" or "json"

	// Dir is the base directory for the diagnostic log file. When set,
	// log records are also appended to Dir/logs/cast_server.log. Empty
	// disables file logging. The directory is supplied explicitly here
	// so nothing in the process depends on lazily initialized globals.
	Dir string
}

// NewLogger creates a configured slog.Logger.
//
// When cfg.Dir is set, records go to the console handler and to the
// append-only file handler. File setup failures are best-effort: the
// error is reported on the console handler and logging continues
// console-only.
func NewLogger(cfg Config) *slog.Logger {
	var console slog.Handler

	opts := &slog.HandlerOptions{
		Level: cfg.Level,
		// Add a source location for debug and error levels
		AddSource: cfg.Level <= slog.LevelDebug,
	}

	if cfg.Format == "json" {
		console = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		console = slog.NewTextHandler(os.Stderr, opts)
	}

	if cfg.Dir == "" {
		return slog.New(console)
	}

	file, err := NewFileHandler(cfg.Dir, cfg.Level)
	if err != nil {
		log := slog.New(console)
		log.Warn("file logging disabled", slog.Any("error", err))
		return log
	}

	return slog.New(newMultiHandler(console, file))
}

// DefaultConfig returns the default logger configuration.
// Parses the TUNECAST_LOG_LEVEL environment variable to set the log level.
// Valid values: DEBUG, INFO, WARN, WARNING, ERROR
// Default: INFO
func DefaultConfig() Config {
	level := slog.LevelInfo

	// Parse TUNECAST_LOG_LEVEL env var
	if envLevel := os.Getenv("TUNECAST_LOG_LEVEL"); envLevel != "" {
		switch strings.ToUpper(envLevel) {
		case "DEBUG":
			level = slog.LevelDebug
		case "INFO":
			level = slog.LevelInfo
		case "WARN", "WARNING":
			level = slog.LevelWarn
		case "ERROR":
			level = slog.LevelError
		}
	}

	return Config{
		Level:  level,
		Format: "text",
	}
}
