package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roofing-insights/internal/ratelimit"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply store and rate limiter migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("migrate"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		counters, err := initCounterStore(st)
		if err != nil {
			return err
		}
		if pg, ok := counters.(*ratelimit.PostgresStore); ok {
			if err := pg.Migrate(ctx); err != nil {
				return eris.Wrap(err, "migrate rate limiter")
			}
		}

		zap.L().Info("migrations applied",
			zap.String("driver", cfg.Store.Driver),
			zap.String("ratelimit_backend", cfg.RateLimit.Backend),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
