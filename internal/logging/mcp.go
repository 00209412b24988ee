package logging

import (
	"log/slog"
)

// SetupMCPMode initializes logging for the MCP front end.
//
// The MCP stdio transport uses stdout exclusively for JSON-RPC frames, so
// logs must go to file only; any write to stdout or stderr during MCP
// operation corrupts the protocol stream.
func SetupMCPMode(level string) (func(), error) {
	if level == "" {
		level = "info"
	}

	cfg := Config{
		Level:         level,
		Format:        "json",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false,
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	slog.Info("mcp mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level))

	return cleanup, nil
}
