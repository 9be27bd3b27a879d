package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Emojigit/FilterInappropriateCSD/internal"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
	envFile    string
	logDate    string
	version    string = "dev"
	commit     string = "unknown"
	date       string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "csdfilter",
	Short: "Move R7 speedy deletion requests to deletion discussion",
	Long: `A semi-automated maintenance bot for Chinese Wikipedia.

It scans the speedy deletion candidate category, finds pages tagged with
{{delete|R7}}, and after you confirm each one, rewrites the tag into a
{{vfd}} nomination and lists the page on that day's deletion discussion log.

Credentials are read from the environment (or a .env file):
  WIKI_USERNAME      bot account, e.g. "Example@FilterCSD"
  WIKI_BOTPASSWORD   bot password from Special:BotPasswords

Quick Start:
  csdfilter check                 # Verify login, category and log page marker
  csdfilter run                   # Review and convert pages interactively
  csdfilter run --date 2025/06/19 # Pin the discussion date`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		internal.SetVerbose(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	defer internal.SyncLogger()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		internal.SyncLogger()
		os.Exit(1)
	}
}

// loadSettings resolves the configuration for the current invocation:
// defaults, the --config file, the .env file, the environment, then flags.
func loadSettings(cmd *cobra.Command, override func(*internal.Config)) (internal.Settings, error) {
	if err := internal.LoadDotEnv(envFile); err != nil {
		return internal.Settings{}, err
	}
	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return internal.Settings{}, err
	}
	if cmd.Flags().Changed("date") {
		cfg.Log.Date = logDate
	}
	if override != nil {
		override(cfg)
	}
	return cfg.Resolve(time.Now())
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging (includes raw API responses)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file with WIKI_USERNAME and WIKI_BOTPASSWORD")
	rootCmd.PersistentFlags().StringVar(&logDate, "date", "", "Discussion date, e.g. 2025/06/19 (default: today in UTC+8)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
