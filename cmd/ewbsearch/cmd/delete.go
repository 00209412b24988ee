package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/IntelCompH2020/ewbsearch/internal/index"
)

func newDeleteCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove a corpus or a model from the engine",
	}
	cmd.PersistentFlags().BoolVar(&plain, "plain", false, "Plain line output instead of the progress TUI")

	corpus := &cobra.Command{
		Use:   "corpus <manifest>",
		Short: "Delete a corpus, its model collections, and its registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(plain, func(ctx context.Context, ix *index.Indexer) error {
				return ix.DeleteCorpus(ctx, args[0])
			})
		},
	}

	model := &cobra.Command{
		Use:   "model <dir>",
		Short: "Delete a model collection and its fields on the corpus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(plain, func(ctx context.Context, ix *index.Indexer) error {
				return ix.DeleteModel(ctx, args[0])
			})
		},
	}

	cmd.AddCommand(corpus)
	cmd.AddCommand(model)
	return cmd
}
