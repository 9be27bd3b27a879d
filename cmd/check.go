package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Emojigit/FilterInappropriateCSD/internal"
	"github.com/Emojigit/FilterInappropriateCSD/internal/wiki"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true).
			Underline(true)
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the bot can run without editing anything",
	Long: `Check that a run would succeed up to the first edit by verifying:
  • Credentials are configured
  • Login with the bot password works
  • The speedy deletion category can be listed
  • The discussion log page exists and contains the insertion marker

Nothing is edited. Exits non-zero on the first failed step.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("Preflight check"))
		fmt.Fprintln(out)

		var (
			settings internal.Settings
			client   *wiki.Client
			members  int
		)
		steps := []internal.ProgressStep{
			{
				Message: "Loading configuration",
				Fn: func(ctx context.Context) error {
					var err error
					if settings, err = loadSettings(cmd, nil); err != nil {
						return err
					}
					client, err = wiki.NewClient(settings.APIURL,
						wiki.WithHTTPClient(&http.Client{Timeout: settings.HTTPTimeout}),
						wiki.WithUserAgent(settings.UserAgent),
					)
					return err
				},
			},
			{
				Message: "Logging in",
				Fn: func(ctx context.Context) error {
					return client.Login(ctx, settings.Username, settings.BotPassword)
				},
			},
			{
				Message: "Listing category members",
				Fn: func(ctx context.Context) error {
					batch, err := client.ListCategoryMembers(ctx, internal.CategoryQuery{
						Category:   settings.Category,
						Namespace:  settings.Namespace,
						Limit:      settings.PageSize,
						Descending: settings.Descending,
					})
					members = len(batch.Titles)
					return err
				},
			},
			{
				Message: "Finding insertion marker on log page",
				Fn: func(ctx context.Context) error {
					revs, err := client.FetchRevisions(ctx, []string{settings.LogPage})
					if err != nil {
						return err
					}
					if len(revs) == 0 {
						return fmt.Errorf("log page %s does not exist", settings.LogPage)
					}
					if _, ok := internal.InsertBeforeMarker(revs[0].Content, settings.Marker, "\n"); !ok {
						return &internal.MarkerNotFoundError{Page: settings.LogPage, Marker: settings.Marker}
					}
					return nil
				},
			},
		}

		if err := internal.RunSteps(cmd.Context(), out, steps); err != nil {
			fmt.Fprintln(out)
			fmt.Fprintln(out, errorStyle.Render("✗ Check failed"))
			return err
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, successStyle.Render("✓ Check passed"))
		fmt.Fprintf(out, "   • User: %s\n", settings.Username)
		fmt.Fprintf(out, "   • Category: %s (%d page(s) in first batch)\n", settings.Category, members)
		fmt.Fprintf(out, "   • Log page: %s\n", settings.LogPage)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
