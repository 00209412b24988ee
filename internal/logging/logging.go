package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config contains logging configuration.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// Format is "json" or "text" (default: json).
	Format string
	// FilePath is the path to the log file. Empty means stderr only.
	FilePath string
	// MaxSizeMB is the maximum size in MB before rotation (default: 10).
	MaxSizeMB int
	// MaxFiles is the maximum number of rotated files to keep (default: 5).
	MaxFiles int
	// WriteToStderr whether to also write to stderr (default: true).
	WriteToStderr bool
}

// DefaultConfig returns sensible defaults: stderr only, info level.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		Format:        "json",
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// FileConfig returns a configuration that also logs to the default file.
func FileConfig() Config {
	cfg := DefaultConfig()
	cfg.FilePath = DefaultLogPath()
	return cfg
}

// Setup initializes logging and returns the logger plus a cleanup function.
// The cleanup function closes the log file when one is configured.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var (
		writer  *RotatingWriter
		outputs []io.Writer
	)

	if cfg.FilePath != "" {
		maxSize := cfg.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}
		maxFiles := cfg.MaxFiles
		if maxFiles <= 0 {
			maxFiles = 5
		}

		var err error
		writer, err = NewRotatingWriter(cfg.FilePath, maxSize, maxFiles)
		if err != nil {
			return nil, nil, err
		}
		outputs = append(outputs, writer)
	}

	if cfg.WriteToStderr || len(outputs) == 0 {
		outputs = append(outputs, os.Stderr)
	}

	var output io.Writer
	if len(outputs) == 1 {
		output = outputs[0]
	} else {
		output = io.MultiWriter(outputs...)
	}

	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(output, opts)
	} else {
		handler = slog.NewJSONHandler(output, opts)
	}

	logger := slog.New(handler)

	cleanup := func() {
		if writer != nil {
			_ = writer.Sync()
			_ = writer.Close()
		}
	}

	return logger, cleanup, nil
}

// SetupDefault sets up logging with default configuration and installs it
// as the default logger. Returns the cleanup function.
func SetupDefault() (func(), error) {
	logger, cleanup, err := Setup(DefaultConfig())
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}

// parseLevel converts string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromString converts string level to slog.Level.
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}
