package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IntelCompH2020/ewbsearch/internal/index"
	"github.com/IntelCompH2020/ewbsearch/internal/query"
)

func newQueryCmd() *cobra.Command {
	var req query.Request

	cmd := &cobra.Command{
		Use:   "query <id>",
		Short: "Run one catalogue query (q1..q15)",
		Long: `Run one query from the catalogue. Which flags are required depends on
the query; the executor validates the ones it needs.`,
		Example: `  # Topic distribution of one document
  ewbsearch query q1 --corpus cordis --model mallet-25 --doc-id p-001

  # Documents most similar to p-001, top 5
  ewbsearch query q5 --corpus cordis --model mallet-25 --doc-id p-001 --rows 5

  # Topic labels of a model, persisted to a results file
  ewbsearch query q8 --model mallet-25 --persist`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.ID = args[0]
			return runQuery(cmd, req)
		},
	}

	cmd.Flags().StringVar(&req.Corpus, "corpus", "", "Corpus collection name")
	cmd.Flags().StringVar(&req.Model, "model", "", "Model collection name")
	cmd.Flags().StringVar(&req.DocID, "doc-id", "", "Document id")
	cmd.Flags().StringVar(&req.Topic, "topic", "", "Topic id")
	cmd.Flags().StringVar(&req.Threshold, "threshold", "", "Topic weight threshold")
	cmd.Flags().StringVar(&req.Field, "field", "", "Metadata field to search (default title)")
	cmd.Flags().StringVar(&req.Text, "text", "", "String to search for")
	cmd.Flags().StringVar(&req.Payload, "payload", "", "Encoded doc-topic payload")
	cmd.Flags().StringVar(&req.Start, "start", "", "First result offset")
	cmd.Flags().StringVar(&req.Rows, "rows", "", "Number of results")
	cmd.Flags().StringVar(&req.ResultsFile, "results-file", "", "Persist results to this file")
	cmd.Flags().BoolVar(&req.Persist, "persist", false, "Persist results under a derived name")

	return cmd
}

func runQuery(cmd *cobra.Command, req query.Request) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := engineClient(cfg)
	if err != nil {
		return err
	}

	registry := index.NewRegistry(client, cfg.Registry.Collection, slog.Default())
	executor := query.New(client, registry, cfg, query.WithLogger(slog.Default()))

	res, err := executor.Execute(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	return nil
}
