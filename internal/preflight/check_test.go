package preflight

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	"github.com/IntelCompH2020/ewbsearch/internal/enginetest"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Ingest.LockDir = filepath.Join(t.TempDir(), "locks")
	cfg.Query.ResultsDir = filepath.Join(t.TempDir(), "results")
	return cfg
}

func TestRunAllAgainstHealthyEngine(t *testing.T) {
	fake := enginetest.New(t)
	fake.SeedCollection("Corpora")
	cfg := testConfig(t)

	checker := New(WithOutput(&bytes.Buffer{}))
	results := checker.RunAll(context.Background(), cfg, fake.Client(t))

	require.NotEmpty(t, results)
	assert.False(t, checker.HasCriticalFailures(results))
	assert.Equal(t, "ready", checker.SummaryStatus(results))
}

func TestMissingRegistryIsAWarning(t *testing.T) {
	fake := enginetest.New(t)
	cfg := testConfig(t)

	checker := New(WithOutput(&bytes.Buffer{}))
	results := checker.RunAll(context.Background(), cfg, fake.Client(t))

	assert.False(t, checker.HasCriticalFailures(results))
	assert.Equal(t, "ready_with_warnings", checker.SummaryStatus(results))

	var registry CheckResult
	for _, r := range results {
		if r.Name == "registry" {
			registry = r
		}
	}
	assert.Equal(t, StatusWarn, registry.Status)
}

func TestUnreachableEngineIsCritical(t *testing.T) {
	client, err := engine.New("http://127.0.0.1:1", engine.WithTimeout(time.Second))
	require.NoError(t, err)
	cfg := testConfig(t)

	checker := New(WithOutput(&bytes.Buffer{}))
	results := checker.RunAll(context.Background(), cfg, client)

	assert.True(t, checker.HasCriticalFailures(results))
	assert.Equal(t, "failed", checker.SummaryStatus(results))
}

func TestNilClientFailsEngineCheck(t *testing.T) {
	checker := New(WithOutput(&bytes.Buffer{}))

	result := checker.CheckEngine(context.Background(), nil)
	assert.Equal(t, StatusFail, result.Status)
}

func TestCheckConfigRejectsInvalid(t *testing.T) {
	cfg := testConfig(t)
	cfg.Engine.URL = ""

	checker := New(WithOutput(&bytes.Buffer{}))
	result := checker.CheckConfig(cfg)

	assert.Equal(t, StatusFail, result.Status)
}

func TestCheckLockDirCreatesDirectory(t *testing.T) {
	cfg := testConfig(t)

	checker := New(WithOutput(&bytes.Buffer{}))
	result := checker.CheckLockDir(cfg)

	require.Equal(t, StatusPass, result.Status)
	assert.DirExists(t, cfg.Ingest.LockDir)
}

func TestPrintResults(t *testing.T) {
	var buf bytes.Buffer
	checker := New(WithOutput(&buf), WithVerbose(true))

	checker.PrintResults([]CheckResult{
		{Name: "engine", Status: StatusPass, Message: "http://localhost:8983", Required: true},
		{Name: "registry", Status: StatusWarn, Message: "collection not found"},
		{Name: "config", Status: StatusFail, Message: "no engine url", Required: true, Details: "set engine.url"},
	})

	out := buf.String()
	assert.Contains(t, out, "[PASS] engine")
	assert.Contains(t, out, "[WARN] registry")
	assert.Contains(t, out, "[FAIL] config")
	assert.Contains(t, out, "Status: FAILED")
	assert.Contains(t, out, "1 error(s):")
	assert.Contains(t, out, "1 warning(s):")
}

func TestCheckDiskSpace(t *testing.T) {
	checker := New()

	res := checker.CheckDiskSpace(t.TempDir())

	assert.Equal(t, StatusPass, res.Status)
	assert.Contains(t, res.Message, "free under")
}

func TestCheckDiskSpaceMissingPath(t *testing.T) {
	checker := New()

	res := checker.CheckDiskSpace(filepath.Join(t.TempDir(), "missing"))

	assert.Equal(t, StatusFail, res.Status)
	assert.Contains(t, res.Message, "cannot stat")
}
