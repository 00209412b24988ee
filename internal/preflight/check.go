package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
	"github.com/IntelCompH2020/ewbsearch/internal/engine"
)

// minDiskSpaceBytes is the least free space the results filesystem may
// have before persisted query output becomes a risk (100 MB).
const minDiskSpaceBytes = 100 * 1024 * 1024

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Checker performs preflight validation checks against the configuration
// and the search engine.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs all preflight checks and returns the results. The client may
// be nil when the configuration is too broken to build one; engine checks
// then report failure.
func (c *Checker) RunAll(ctx context.Context, cfg *config.Config, client *engine.Client) []CheckResult {
	results := []CheckResult{
		c.CheckConfig(cfg),
		c.CheckLockDir(cfg),
		c.CheckResultsDir(cfg),
		c.CheckDiskSpace(cfg.Query.ResultsDir),
		c.CheckEngine(ctx, client),
		c.CheckRegistry(ctx, cfg, client),
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	_, _ = fmt.Fprintln(c.output, "ewbsearch System Check")
	_, _ = fmt.Fprintln(c.output, "======================")
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", r.Details)
		}
	}

	_, _ = fmt.Fprintln(c.output)
	status := c.SummaryStatus(results)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(status))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status == StatusWarn {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(errors))
		for _, e := range errors {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

// CheckConfig validates the loaded configuration.
func (c *Checker) CheckConfig(cfg *config.Config) CheckResult {
	result := CheckResult{
		Name:     "config",
		Required: true,
	}

	if err := cfg.Validate(); err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("engine %s, registry %q",
		cfg.Engine.URL, cfg.Registry.Collection)
	return result
}

// CheckLockDir verifies the ingest lock directory can be created and
// written to.
func (c *Checker) CheckLockDir(cfg *config.Config) CheckResult {
	return c.checkWritableDir("lock_dir", cfg.Ingest.LockDir)
}

// CheckResultsDir verifies the query results directory can be created and
// written to. Non-critical; only persisted queries need it.
func (c *Checker) CheckResultsDir(cfg *config.Config) CheckResult {
	result := c.checkWritableDir("results_dir", cfg.Query.ResultsDir)
	result.Required = false
	return result
}

func (c *Checker) checkWritableDir(name, dir string) CheckResult {
	result := CheckResult{
		Name:     name,
		Required: true,
	}

	if dir == "" {
		result.Status = StatusFail
		result.Message = "no directory configured"
		return result
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	testFile := filepath.Join(dir, ".ewbsearch-preflight-test")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = dir
	return result
}

// CheckDiskSpace verifies the filesystem holding the results directory
// has room for persisted query output.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	var fs syscall.Statfs_t
	if err := syscall.Statfs(path, &fs); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot stat %s: %v", path, err)
		return result
	}

	free := fs.Bavail * uint64(fs.Bsize)
	result.Message = fmt.Sprintf("%s free under %s", formatBytes(free), path)
	if free < minDiskSpaceBytes {
		result.Status = StatusFail
		result.Details = "persisted query results need at least 100 MB"
		return result
	}

	result.Status = StatusPass
	return result
}

func formatBytes(n uint64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
		tb = 1024 * gb
	)
	switch {
	case n >= tb:
		return fmt.Sprintf("%.1f TB", float64(n)/tb)
	case n >= gb:
		return fmt.Sprintf("%.1f GB", float64(n)/gb)
	case n >= mb:
		return fmt.Sprintf("%.1f MB", float64(n)/mb)
	case n >= kb:
		return fmt.Sprintf("%.1f KB", float64(n)/kb)
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// CheckEngine probes the search engine.
func (c *Checker) CheckEngine(ctx context.Context, client *engine.Client) CheckResult {
	result := CheckResult{
		Name:     "engine",
		Required: true,
	}

	if client == nil {
		result.Status = StatusFail
		result.Message = "no engine client"
		return result
	}
	if err := client.Ping(ctx); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("unreachable: %v", err)
		result.Details = client.BaseURL()
		return result
	}

	result.Status = StatusPass
	result.Message = client.BaseURL()
	return result
}

// CheckRegistry reports whether the registry collection exists. A missing
// registry is a warning; the first ingest creates it.
func (c *Checker) CheckRegistry(ctx context.Context, cfg *config.Config, client *engine.Client) CheckResult {
	result := CheckResult{
		Name:     "registry",
		Required: false,
	}

	if client == nil {
		result.Status = StatusFail
		result.Message = "no engine client"
		return result
	}
	exists, err := client.CollectionExists(ctx, cfg.Registry.Collection)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot list collections: %v", err)
		return result
	}
	if !exists {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("collection %q not found; created on first ingest",
			cfg.Registry.Collection)
		return result
	}

	result.Status = StatusPass
	result.Message = cfg.Registry.Collection
	return result
}
