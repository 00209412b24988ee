package ui

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// PlainRenderer writes one line per stage transition and periodic counts,
// suitable for CI logs and pipes.
type PlainRenderer struct {
	mu       sync.Mutex
	out      io.Writer
	stage    string
	lastDone int
}

// reportEvery is how many documents pass between plain progress lines
// within one stage.
const reportEvery = 1000

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output}
}

// Start implements Renderer.
func (r *PlainRenderer) Start(ctx context.Context) error {
	return nil
}

// Update implements Renderer.
func (r *PlainRenderer) Update(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stageChanged := event.Stage != r.stage
	if stageChanged {
		r.stage = event.Stage
		r.lastDone = 0
	}
	if !stageChanged && event.Done < r.lastDone+reportEvery {
		return
	}
	r.lastDone = event.Done

	if event.Total > 0 {
		fmt.Fprintf(r.out, "%s: %s %d/%d\n",
			event.Collection, event.Stage, event.Done, event.Total)
		return
	}
	fmt.Fprintf(r.out, "%s: %s %d\n", event.Collection, event.Stage, event.Done)
}

// Finish implements Renderer.
func (r *PlainRenderer) Finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err != nil {
		fmt.Fprintf(r.out, "failed: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, "done")
}
