package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roofing-insights/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "roofing-insights",
	Short: "Daily cost aggregation and business insights for roofing contractors",
	Long:  "Aggregates job budgets, ledgers and schedules into a daily snapshot, then asks an LLM (or deterministic rules when it is unavailable) for prioritized insights.",
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
