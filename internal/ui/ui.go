// Package ui renders ingestion progress in the terminal: a bubbletea TUI
// on interactive terminals, plain log lines everywhere else.
package ui

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Event is one ingestion progress report.
type Event struct {
	Stage      string
	Collection string
	Done       int
	Total      int // -1 when unknown
}

// Renderer displays ingestion progress. Update may be called from the
// goroutine running the ingestion.
type Renderer interface {
	// Start begins rendering. For the TUI this takes over the terminal.
	Start(ctx context.Context) error

	// Update reports progress.
	Update(event Event)

	// Finish stops rendering and prints the outcome.
	Finish(err error)
}

// Config configures a renderer.
type Config struct {
	// Output is where progress is written. Defaults to os.Stderr.
	Output io.Writer

	// NoColor disables styling.
	NoColor bool

	// Plain forces the line renderer even on a TTY.
	Plain bool
}

// NewRenderer picks the renderer for the output: the TUI when the output
// is an interactive terminal, plain lines otherwise.
func NewRenderer(cfg Config) Renderer {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	if cfg.NoColor || DetectNoColor() {
		cfg.NoColor = true
	}
	if cfg.Plain || !IsTTY(cfg.Output) {
		return NewPlainRenderer(cfg)
	}
	return NewTUIRenderer(cfg)
}

// IsTTY reports whether the writer is an interactive terminal.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// DetectNoColor honors the NO_COLOR convention.
func DetectNoColor() bool {
	_, set := os.LookupEnv("NO_COLOR")
	return set
}
