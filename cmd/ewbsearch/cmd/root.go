// Package cmd provides the CLI commands for ewbsearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	ewberrors "github.com/IntelCompH2020/ewbsearch/internal/errors"
	"github.com/IntelCompH2020/ewbsearch/internal/logging"
	"github.com/IntelCompH2020/ewbsearch/internal/profiling"
	"github.com/IntelCompH2020/ewbsearch/pkg/version"
)

// Persistent flags shared by every subcommand.
var (
	configPath string
	verbose    bool
	logFile    string

	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()

	loggingCleanup func()
)

// NewRootCmd creates the root command for the ewbsearch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ewbsearch",
		Short: "Topic-model search mediation service",
		Long: `ewbsearch mediates between trained topic models, their corpora, and a
search engine: it ingests corpora and models into engine collections and
answers a catalogue of topic-model queries over them.

Run 'ewbsearch serve' to start the HTTP API, or use the index, delete,
query and collections commands to operate on the engine directly.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("ewbsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (default: .ewbsearch.yaml discovery)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (size-rotated)")

	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newCollectionsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts profiling and logging if flags are set.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	level := "info"
	if verbose {
		level = "debug"
	}
	logger, cleanup, err := logging.Setup(logging.Config{
		Level:         level,
		Format:        "text",
		FilePath:      logFile,
		WriteToStderr: true,
	})
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)

	if profileCPU != "" {
		cpuCleanup, err = profiler.StartCPU(profileCPU)
		if err != nil {
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
	}
	if profileTrace != "" {
		traceCleanup, err = profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
			}
			return fmt.Errorf("failed to start trace: %w", err)
		}
	}
	return nil
}

// stopProfilingAndLogging stops profiling, writes the memory profile if
// requested, and closes the log file.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}
	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return fmt.Errorf("failed to write memory profile: %w", err)
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprint(os.Stderr, ewberrors.FormatForCLI(err))
	}
	return err
}

// loadConfig loads the effective configuration, honoring --config.
func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load(".")
}

// engineClient builds an engine client from the configuration.
func engineClient(cfg *config.Config, opts ...engine.Option) (*engine.Client, error) {
	base := []engine.Option{
		engine.WithTimeout(cfg.Engine.Timeout),
		engine.WithCollectionDefaults(cfg.Engine.Shards, cfg.Engine.ReplicationFactor),
		engine.WithLogger(slog.Default()),
	}
	return engine.New(cfg.Engine.URL, append(base, opts...)...)
}
