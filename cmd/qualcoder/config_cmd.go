package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/c360studio/qualcoder/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configCmd manages the user configuration file.
func configCmd(global *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage qualcoder configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "init",
			Short: "Create the user config file with defaults if it does not exist",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := config.NewLoader(slog.Default()).EnsureUserConfig()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "User config: %s\n", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := loadConfig(global)
				if err != nil {
					return err
				}
				return writeConfig(cmd.OutOrStdout(), cfg)
			},
		},
	)
	return cmd
}

// writeConfig prints cfg as YAML.
func writeConfig(w io.Writer, cfg *config.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
