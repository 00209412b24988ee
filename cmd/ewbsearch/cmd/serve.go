package cmd

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	"github.com/IntelCompH2020/ewbsearch/internal/index"
	"github.com/IntelCompH2020/ewbsearch/internal/logging"
	"github.com/IntelCompH2020/ewbsearch/internal/mcptool"
	"github.com/IntelCompH2020/ewbsearch/internal/query"
	"github.com/IntelCompH2020/ewbsearch/internal/server"
	"github.com/IntelCompH2020/ewbsearch/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		mcpMode bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the search mediation server",
		Long: `Start the HTTP API server: ingestion endpoints, the query catalogue,
collection administration, and health and metrics probes.

With --mcp the server speaks the Model Context Protocol over stdio
instead, exposing the read-only query catalogue to AI clients.`,
		Example: `  # HTTP API on the configured address
  ewbsearch serve

  # Custom listen address
  ewbsearch serve --addr :9000

  # MCP stdio front end
  ewbsearch serve --mcp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(addr, mcpMode)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	cmd.Flags().BoolVar(&mcpMode, "mcp", false, "Serve MCP over stdio instead of HTTP")

	return cmd
}

func runServe(addr string, mcpMode bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}

	if mcpMode {
		return runServeMCP(ctx, cfg)
	}

	metrics := telemetry.New()
	client, err := engineClient(cfg,
		engine.WithHTTPClient(metrics.InstrumentHTTPClient(&http.Client{})))
	if err != nil {
		return err
	}

	srv := server.New(cfg, client,
		server.WithLogger(slog.Default()),
		server.WithMetrics(metrics))
	return srv.Run(ctx)
}

func runServeMCP(ctx context.Context, cfg *config.Config) error {
	// Stdout belongs to the JSON-RPC stream; logs go to file only.
	cleanup, err := logging.SetupMCPMode(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer cleanup()

	client, err := engineClient(cfg)
	if err != nil {
		return err
	}

	registry := index.NewRegistry(client, cfg.Registry.Collection, slog.Default())
	executor := query.New(client, registry, cfg, query.WithLogger(slog.Default()))
	srv := mcptool.New(registry, executor, mcptool.WithLogger(slog.Default()))
	return srv.Run(ctx)
}
