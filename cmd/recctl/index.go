package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recanalysis/internal/service"
	"recanalysis/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	indexQuery string
	indexTopK  int
)

func init() {
	indexCmd.Flags().StringVar(&indexQuery, "query", "", "run a test search against the index after loading it")
	indexCmd.Flags().IntVar(&indexTopK, "k", 3, "number of chunks returned by --query")
	rootCmd.AddCommand(indexCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or refresh the policy index snapshot",
	Long: `Build the policy index from POLICY_DOC_PATH and persist it to POLICY_SNAPSHOT_DIR.

A snapshot built from the same document, chunking parameters and embedding
model is reused as is. Run this before deploying a new policy document so the
server starts from a warm snapshot.

Examples:
  # Build or verify the snapshot
  recctl index

  # Inspect what the retriever returns for a decision excerpt
  recctl index --query "Juizado Especial, condenação de R$ 3.000,00" --k 5`,
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
	cfg, _, err := bootstrap()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
	defer cancel()

	index, err := service.NewPolicyIndexFromConfig(cfg, logger.Named("policy_index"))
	if err != nil {
		return err
	}
	if err := index.Verify(); err != nil {
		return err
	}

	started := time.Now()
	handle, err := index.GetOrBuild(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "policy index ready: %d chunks from %s in %s\n", handle.Len(), handle.Source(), time.Since(started).Round(time.Millisecond))
	fmt.Fprintf(out, "fingerprint: %s\n", handle.Fingerprint())

	if indexQuery == "" {
		return nil
	}

	chunks, err := handle.Search(ctx, indexQuery, indexTopK)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		fmt.Fprintf(out, "\n[%d] score=%.4f\n%s\n", c.Index, c.Score, strings.TrimSpace(c.Text))
	}
	return nil
}
