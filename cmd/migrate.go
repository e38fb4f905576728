package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lending-engine/internal/infrastructure/database/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the postgres ledger tables if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := initializeApp(cfgPath, os.Stderr)
		if err != nil {
			return err
		}

		dbPool, err := postgres.NewConnectionPool(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("open db: %w", err)
		}
		defer dbPool.Close()

		if err := postgres.Migrate(cmd.Context(), dbPool, logger); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Migration complete")
		return nil
	},
}
