package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/franz/bcr-index/internal/report"
	"github.com/franz/bcr-index/internal/util"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a Markdown summary of the recordings directory",
	Long: `Generate a Markdown report describing the index of the selected
directory (counts, sizes, directions, date range) together with recent
refresh passes, deletions and the most common errors.`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringP("output", "o", "", "write the report to a file instead of stdout")
	reportCmd.Flags().IntP("limit", "n", 20, "number of passes and deletions to include")
}

func runReport(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	limit, _ := cmd.Flags().GetInt("limit")
	ctx := context.Background()

	a, err := loadIndex(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	st := a.controller.State()
	summary, err := report.GenerateSummaryReport(ctx, a.history, string(st.Location), st.Index, limit)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	summary.EventLogPath = a.logger.Path()
	if a.history != nil {
		summary.DatabasePath, _ = historyPath(a.cfg.HistoryDB)
	}

	if output == "" {
		fmt.Fprint(cmd.OutOrStdout(), report.RenderMarkdown(summary))
		return nil
	}
	if err := report.WriteMarkdownReport(summary, output); err != nil {
		return err
	}
	util.SuccessLog("Report written to %s", output)
	return nil
}
