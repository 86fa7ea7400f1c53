package commands

import (
	"log/slog"

	"github.com/ppiankov/gitweight/internal/config"
	"github.com/ppiankov/gitweight/internal/logging"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	version string
	commit  string
	date    string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gitweight",
	Short: "Gitweight - GitHub large file scanner",
	Long: `Gitweight walks GitHub repositories through the API and reports every
stored file above a configurable size threshold, without cloning or
downloading file contents. It understands both personal access tokens
and GitHub App installation credentials, and it throttles itself
against the API rate limit.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)
		loaded, err := config.Load(".")
		if err != nil {
			slog.Warn("Failed to load config file", "error", err)
		} else {
			cfg = loaded
		}
	},
}

// Execute runs the root command with injected build info.
func Execute(v, c, d string) error {
	version = v
	commit = c
	date = d
	return rootCmd.Execute()
}

// GetVersion returns the current version.
func GetVersion() string {
	return version
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}
