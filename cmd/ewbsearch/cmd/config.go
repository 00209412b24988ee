package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/IntelCompH2020/ewbsearch/internal/config"
	"github.com/IntelCompH2020/ewbsearch/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and manage configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("encoding config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to the user config path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			target := config.GetUserConfigPath()
			if config.UserConfigExists() {
				backup, err := config.BackupUserConfig()
				if err != nil {
					return err
				}
				out.Statusf("", "backed up existing config to %s", backup)
			}
			if err := config.NewConfig().WriteYAML(target); err != nil {
				return err
			}
			out.Successf("wrote %s", target)
			return nil
		},
	}

	backups := &cobra.Command{
		Use:   "backups",
		Short: "List user config backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := config.ListUserConfigBackups()
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore <backup>",
		Short: "Restore the user config from a backup file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.RestoreUserConfig(args[0])
		},
	}

	cmd.AddCommand(show)
	cmd.AddCommand(path)
	cmd.AddCommand(initCmd)
	cmd.AddCommand(backups)
	cmd.AddCommand(restore)
	return cmd
}
