package cmd

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/Emojigit/FilterInappropriateCSD/internal"
	"github.com/Emojigit/FilterInappropriateCSD/internal/report"
	"github.com/Emojigit/FilterInappropriateCSD/internal/wiki"
	"github.com/spf13/cobra"
)

var (
	runPageSize     int
	runEditDelay    time.Duration
	runShowContent  bool
	runReport       string
	runReportFormat string
	runMetricsFile  string
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Review R7 speedy deletion requests and convert them interactively",
	Long: `Walk the speedy deletion category newest-first. For every page whose
markup contains {{delete|R7}}, show the change and ask:

  y  rewrite it into a {{vfd}} nomination
  N  leave it alone (default)
  b  stop the whole run now; nothing pending in this batch is submitted

Accepted pages are edited one at a time and then listed on the discussion
log page just above the bot's insertion marker.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var exporter report.Exporter
		if runReport != "" {
			var err error
			if exporter, err = report.NewExporter(runReportFormat); err != nil {
				return err
			}
		}

		settings, err := loadSettings(cmd, func(cfg *internal.Config) {
			if cmd.Flags().Changed("page-size") {
				cfg.Category.PageSize = runPageSize
			}
			if cmd.Flags().Changed("edit-delay") {
				cfg.Edit.Delay = runEditDelay
			}
		})
		if err != nil {
			return err
		}

		client, err := wiki.NewClient(settings.APIURL,
			wiki.WithHTTPClient(&http.Client{Timeout: settings.HTTPTimeout}),
			wiki.WithUserAgent(settings.UserAgent),
			wiki.WithEditOptions(wiki.EditOptions{
				Watchlist:       settings.Watchlist,
				WatchlistExpiry: settings.WatchlistExpiry,
			}),
		)
		if err != nil {
			return err
		}

		internal.PrintInfo(fmt.Sprintf("Log page: %s", settings.LogPage))
		metrics := internal.NewMetrics()
		decider := internal.NewConsoleDecider(cmd.InOrStdin(), cmd.OutOrStdout(), runShowContent)
		workflow := internal.NewWorkflow(client, decider, settings,
			internal.WithLogger(internal.Logger()),
			internal.WithMetrics(metrics),
		)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		result, runErr := workflow.Run(ctx)

		if runMetricsFile != "" {
			if err := metrics.WriteTextfile(runMetricsFile); err != nil {
				internal.PrintWarning(fmt.Sprintf("Failed to write metrics: %v", err))
			}
		}
		if exporter != nil {
			if err := report.WriteFile(exporter, result, runReport); err != nil {
				internal.PrintWarning(fmt.Sprintf("Failed to write report: %v", err))
			} else if runReport != "-" {
				internal.PrintSuccess(fmt.Sprintf("Report written to %s", runReport))
			}
		}

		if runErr != nil {
			return runErr
		}
		if result.Aborted {
			fmt.Fprintln(cmd.OutOrStdout(), warningStyle.Render(
				fmt.Sprintf("⚠ Aborted: %d page(s) edited before stopping", len(result.Edited))))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(
			fmt.Sprintf("✓ Done: %d page(s) edited, %d failed", len(result.Edited), len(result.Failed))))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().IntVar(&runPageSize, "page-size", 20, "Category members fetched per batch")
	runCmd.Flags().DurationVar(&runEditDelay, "edit-delay", 3*time.Second, "Pause between edit submissions")
	runCmd.Flags().BoolVar(&runShowContent, "show-content", true, "Print the full page content before the diff")
	runCmd.Flags().StringVar(&runReport, "report", "", "Write a run report to this path (- for stdout)")
	runCmd.Flags().StringVar(&runReportFormat, "report-format", "md", "Report format (json, yaml, md)")
	runCmd.Flags().StringVar(&runMetricsFile, "metrics-file", "", "Write Prometheus metrics for the node_exporter textfile collector")
}
