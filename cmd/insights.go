package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roofing-insights/internal/insight"
	"github.com/sells-group/roofing-insights/internal/model"
	"github.com/sells-group/roofing-insights/internal/report"
)

// cliUserID is the identity local runs are rate limited under.
const cliUserID = "cli"

var (
	insightsScope  string
	insightsLocale string
	insightsXLSX   string
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Run the insight pipeline once and print the JSON response",
	RunE: func(cmd *cobra.Command, args []string) error {
		if insightsScope == "" {
			return eris.New("--scope is required")
		}
		ctx := cmd.Context()

		env, err := initPipeline(ctx, "insights")
		if err != nil {
			return err
		}
		defer env.Close()

		// The local operator may read any scope.
		id := &insight.Identity{UserID: cliUserID, OrgID: insightsScope}
		resp, err := env.Pipeline.Run(ctx, insight.Request{
			Identity: id,
			Scope:    model.Scope(insightsScope),
			Locale:   model.Locale(insightsLocale),
		})
		if err != nil {
			return err
		}

		if insightsXLSX != "" {
			if err := writeReport(insightsXLSX, resp); err != nil {
				return err
			}
			zap.L().Info("report written", zap.String("path", insightsXLSX))
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	},
}

func writeReport(path string, resp *model.InsightResponse) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "create report file")
	}
	if err := report.WriteXLSX(f, resp); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrap(f.Close(), "close report file")
}

func init() {
	insightsCmd.Flags().StringVar(&insightsScope, "scope", "", "organization or user id to aggregate (required)")
	insightsCmd.Flags().StringVar(&insightsLocale, "locale", "en", "response language (en, es)")
	insightsCmd.Flags().StringVar(&insightsXLSX, "xlsx", "", "also write an XLSX report to this path")
	rootCmd.AddCommand(insightsCmd)
}
