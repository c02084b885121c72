package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/thedatamonk/spendly/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the ledger tables in DATABASE_URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required")
		}
		database, err := db.New(cmd.Context(), cfg.DatabaseURL, logger.Named("db"))
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.RunMigrations(cmd.Context()); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}
