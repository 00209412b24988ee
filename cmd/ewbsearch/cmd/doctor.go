package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	"github.com/IntelCompH2020/ewbsearch/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and diagnose issues",
		Long: `Run diagnostics against the configuration and the search engine.

Checks:
  - Configuration validity
  - Lock and results directory writability
  - Disk space (100MB minimum)
  - Engine reachability
  - Registry collection presence

A missing registry is only a warning; the first ingest creates it.`,
		Example: `  # Run diagnostics
  ewbsearch doctor

  # Verbose output with details
  ewbsearch doctor --verbose

  # JSON output for scripting
  ewbsearch doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func runDoctor(cmd *cobra.Command, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The engine check reports a nil client as a failure, so a bad engine
	// URL still produces a full report.
	var client *engine.Client
	if c, err := engineClient(cfg); err == nil {
		client = c
	}

	checker := preflight.New(
		preflight.WithVerbose(verbose),
		preflight.WithOutput(cmd.OutOrStdout()),
	)
	results := checker.RunAll(ctx, cfg, client)

	if jsonOutput {
		report := struct {
			Status string                  `json:"status"`
			Checks []preflight.CheckResult `json:"checks"`
		}{
			Status: checker.SummaryStatus(results),
			Checks: results,
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return fmt.Errorf("system check failed")
	}
	return nil
}
