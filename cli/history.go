package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jac-Zac/Stat-Missing-Data-Project/report"
	"github.com/Jac-Zac/Stat-Missing-Data-Project/study"
)

func newHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "Show recent study runs",
		Example: `  missingdata history --history runs.db --limit 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd)
		},
	}
	cmd.Flags().String("history", "", "sqlite run log path")
	cmd.Flags().Int("limit", 20, "maximum runs to show")
	return cmd
}

func runHistory(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.History.Path == "" {
		return fmt.Errorf("cli: no history database configured (set history.path or --history)")
	}
	limit, _ := cmd.Flags().GetInt("limit")

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	history, err := study.OpenHistory(cfg.History.Path, logger)
	if err != nil {
		return err
	}
	defer history.Close()

	records, err := history.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if cfg.Output.Format == "json" {
		return report.WriteJSON(cmd.OutOrStdout(), records)
	}
	report.RenderRunRecords(cmd.OutOrStdout(), records)
	return nil
}
