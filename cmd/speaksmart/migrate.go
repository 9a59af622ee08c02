package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/speaksmart/internal/app"
	"github.com/MrWong99/speaksmart/internal/config"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the storage schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver == config.StorageMemory {
				fmt.Fprintln(cmd.OutOrStdout(), "memory storage has no schema, nothing to migrate")
				return nil
			}
			s, err := app.OpenStore(cmd.Context(), cfg.Storage, true)
			if err != nil {
				return report(cmd, err)
			}
			if err := s.Close(); err != nil {
				return report(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s schema is up to date\n", cfg.Storage.Driver)
			return nil
		},
	}
}
