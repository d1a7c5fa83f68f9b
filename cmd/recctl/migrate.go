package main

import (
	"fmt"

	"recanalysis/internal/repository"
	"recanalysis/pkg/database"
	"recanalysis/pkg/logger"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the feedback table",
	Long: `Create the feedback table in the database selected by DB_DRIVER.
The migration is idempotent.`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	db, err := database.Open(cmd.Context(), &cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.NewFeedbackRepository(db, log).Migrate(cmd.Context()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "feedback table ready (%s)\n", db.Driver)
	return nil
}
