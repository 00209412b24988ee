package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IntelCompH2020/ewbsearch/internal/index"
	"github.com/IntelCompH2020/ewbsearch/internal/ui"
)

func newIndexCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Ingest a corpus or a trained model into the engine",
	}
	cmd.PersistentFlags().BoolVar(&plain, "plain", false, "Plain line output instead of the progress TUI")

	corpus := &cobra.Command{
		Use:   "corpus <manifest>",
		Short: "Index a logical corpus from its dataset manifest",
		Example: `  # Index the Cordis corpus
  ewbsearch index corpus /data/datasets/Cordis.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(plain, func(ctx context.Context, ix *index.Indexer) error {
				return ix.IndexCorpus(ctx, args[0])
			})
		},
	}

	model := &cobra.Command{
		Use:   "model <dir>",
		Short: "Index a trained topic model folder",
		Example: `  # Index a 25-topic Mallet model
  ewbsearch index model /data/models/mallet-25`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(plain, func(ctx context.Context, ix *index.Indexer) error {
				return ix.IndexModel(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(corpus)
	cmd.AddCommand(model)
	return cmd
}

// runIngest wires an indexer to a progress renderer and runs one
// ingestion operation under signal cancellation.
func runIngest(plain bool, op func(context.Context, *index.Indexer) error) error {
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

	renderer := ui.NewRenderer(ui.Config{Output: os.Stderr, Plain: plain})
	if err := renderer.Start(ctx); err != nil {
		return err
	}

	ix := index.New(client, cfg,
		index.WithLogger(slog.Default()),
		index.WithProgress(func(p index.Progress) {
			renderer.Update(ui.Event{
				Stage:      p.Stage,
				Collection: p.Collection,
				Done:       p.Done,
				Total:      p.Total,
			})
		}))

	err = op(ctx, ix)
	renderer.Finish(err)
	return err
}
