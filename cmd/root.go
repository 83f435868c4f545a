package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fintora/counsel/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "counsel",
	Short: "Multi-source answer consolidation and rating service",
	Long: "Fans a personal-finance question out to several LLM backends concurrently, " +
		"synthesizes their answers into one consolidated response via a judge model, " +
		"scores each original answer, and persists the full audit trail.",
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
