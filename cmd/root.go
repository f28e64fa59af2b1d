package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forecastlab/verdict-cli/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "verdict-cli",
	Short: "Prediction validation worker pool",
	Long:  "Leases matured predictions from Postgres, gathers web evidence through enhanced search queries, judges outcomes with Claude, and persists verdicts with cost accounting.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
