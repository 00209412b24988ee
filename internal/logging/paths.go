package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.ewbsearch/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".ewbsearch", "logs")
	}
	return filepath.Join(home, ".ewbsearch", "logs")
}

// DefaultLogPath returns the default service log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "service.log")
}

// EnsureLogDir creates the log directory if it doesn't exist.
func EnsureLogDir() error {
	return os.MkdirAll(DefaultLogDir(), 0o755)
}
