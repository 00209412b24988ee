package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/IntelCompH2020/ewbsearch/internal/engine"
	"github.com/IntelCompH2020/ewbsearch/internal/output"
)

func newCollectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collections",
		Short: "Administer engine collections directly",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(func(ctx context.Context, client *engine.Client) error {
				names, err := client.ListCollections(ctx)
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, client *engine.Client) error {
				if err := client.CreateCollection(ctx, args[0]); err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("created collection %s", args[0])
				return nil
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, client *engine.Client) error {
				if err := client.DeleteCollection(ctx, args[0]); err != nil {
					return err
				}
				output.New(cmd.OutOrStdout()).Successf("deleted collection %s", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list)
	cmd.AddCommand(create)
	cmd.AddCommand(del)
	return cmd
}

func withEngine(fn func(context.Context, *engine.Client) error) error {
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
	return fn(ctx, client)
}
