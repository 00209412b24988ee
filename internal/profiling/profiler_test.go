package profiling

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requireNonEmptyFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestStartCPUWritesProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cpu.prof")

	p := NewProfiler()
	stop, err := p.StartCPU(path)
	require.NoError(t, err)

	// Burn a little CPU so the profile has samples to record.
	sum := 0
	for i := 0; i < 1_000_000; i++ {
		sum += i
	}
	_ = sum
	stop()

	requireNonEmptyFile(t, path)
}

func TestStartTraceWritesTrace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.out")

	p := NewProfiler()
	stop, err := p.StartTrace(path)
	require.NoError(t, err)
	stop()

	requireNonEmptyFile(t, path)
}

func TestWriteHeapWritesSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heap.prof")

	p := NewProfiler()
	require.NoError(t, p.WriteHeap(path))

	requireNonEmptyFile(t, path)
}

func TestStartCPUUnwritablePath(t *testing.T) {
	p := NewProfiler()

	_, err := p.StartCPU(filepath.Join(t.TempDir(), "missing", "cpu.prof"))
	require.Error(t, err)
}
