// Package main implements recctl, the operator CLI for recANALYSIS.
package main

import (
	"fmt"
	"os"

	"recanalysis/pkg/config"
	"recanalysis/pkg/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "recctl",
	Short: "Operator commands for the recANALYSIS service",
	Long: `recctl prepares and inspects the state the recANALYSIS server depends on:
the policy index snapshot and the feedback database.

Configuration is read from the same .env file and environment variables as
the server.`,
	Version:      version,
	SilenceUsage: true,
}

// bootstrap loads configuration and the global logger.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Init(cfg.Logger.Level); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger.Get(), nil
}
