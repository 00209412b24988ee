// Package profiling writes pprof and execution-trace files for the
// --profile-* flags. Ingestion runs and the query endpoints are the
// usual targets.
package profiling

import (
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"
)

// Profiler owns the open profile files for one command invocation.
type Profiler struct {
	cpu   *os.File
	trace *os.File
}

// NewProfiler creates an idle Profiler.
func NewProfiler() *Profiler {
	return &Profiler{}
}

// StartCPU profiles CPU usage into path until the returned stop function
// runs. The file is incomplete until stop flushes it.
func (p *Profiler) StartCPU(path string) (stop func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cpu profile %s: %w", path, err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start cpu profile: %w", err)
	}
	p.cpu = f

	return func() {
		pprof.StopCPUProfile()
		_ = p.cpu.Close()
		p.cpu = nil
	}, nil
}

// StartTrace records an execution trace into path until the returned stop
// function runs.
func (p *Profiler) StartTrace(path string) (stop func(), err error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create trace file %s: %w", path, err)
	}
	if err := trace.Start(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("start trace: %w", err)
	}
	p.trace = f

	return func() {
		trace.Stop()
		_ = p.trace.Close()
		p.trace = nil
	}, nil
}

// WriteHeap snapshots live heap usage into path. A GC runs first so the
// snapshot reflects retained memory, not garbage from the last batch.
func (p *Profiler) WriteHeap(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create heap profile %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	runtime.GC()
	if err := pprof.WriteHeapProfile(f); err != nil {
		return fmt.Errorf("write heap profile: %w", err)
	}
	return nil
}
