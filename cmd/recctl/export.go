package main

import (
	"bufio"
	"fmt"
	"os"

	"recanalysis/internal/repository"
	"recanalysis/internal/service"
	"recanalysis/pkg/database"
	"recanalysis/pkg/logger"

	"github.com/spf13/cobra"
)

var exportOut string

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "training_data.jsonl", "output file, - for stdout")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the feedback log as fine-tuning JSONL",
	Long: `Write one {"input", "output"} example per feedback record, in insertion order.

Examples:
  recctl export --out training_data.jsonl
  recctl export -o - | head -n 1`,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
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

	feedback := service.NewFeedbackService(repository.NewFeedbackRepository(db, log), log)

	if exportOut == "-" {
		_, err := feedback.WriteTrainingData(cmd.Context(), cmd.OutOrStdout())
		return err
	}

	tmp := exportOut + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	w := bufio.NewWriter(f)

	n, err := feedback.WriteTrainingData(cmd.Context(), w)
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, exportOut); err != nil {
		return fmt.Errorf("failed to write %s: %w", exportOut, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d examples to %s\n", n, exportOut)
	return nil
}
