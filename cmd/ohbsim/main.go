package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/logging"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "ohbsim",
		Short: "Enrollment and expenditure forecasting for benefit programs",
		Long: `ohbsim forecasts how a population moves through a benefit program:
eligibility, applications, enrollment, claims and their cost, period by
period, under a phased rollout and a fiscal-year cycle.

Scenarios are YAML overlays on a base configuration. Results can be
exported as JSON, CSV or a checksummed archive and saved to a local run
store for later queries.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON (for agent consumption)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (default from settings)")
	rootCmd.PersistentFlags().String("config-dir", "", "Directory containing base_config.yaml and scenarios/ (default from settings)")
	rootCmd.PersistentFlags().String("db", "", "Run store database path (default from settings)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newScenariosCmd(),
		newValidateCmd(),
		newRunsCmd(),
		newPruneCmd(),
		newVerifyCmd(),
		newMCPServerCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if jsonOut {
				json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]string{"version": version})
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "ohbsim version %s\n", version)
			}
		},
	}
}

// loadSettings reads tool settings and applies the global flags over them.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}

	if v, _ := cmd.Flags().GetString("config-dir"); v != "" {
		settings.ConfigDir = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		settings.DatabasePath = v
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		settings.Logging.Level = v
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return settings, nil
}

// newLogger returns the operational logger, writing to the command's stderr.
func newLogger(cmd *cobra.Command, settings *config.Settings) *slog.Logger {
	return logging.NewLogger(settings.Logging.Level, cmd.ErrOrStderr())
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
