package main

import (
	"fmt"
	"path/filepath"

	"github.com/policylab/ohbsim/internal/mcp"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the simulator over MCP (stdio)",
		Long: `Run an MCP server on stdin/stdout exposing the ohbsim tools:
ohbsim_scenarios, ohbsim_validate, ohbsim_run, ohbsim_runs and ohbsim_metrics.

Logs go to stderr; stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			dbPath, err := settings.ResolvedDatabasePath()
			if err != nil {
				return err
			}
			noAudit, _ := cmd.Flags().GetBool("no-audit")

			cfg := &mcp.Config{
				Name:         "ohbsim",
				Version:      version,
				ConfigDir:    settings.ConfigDir,
				DatabasePath: dbPath,
				Logger:       newLogger(cmd, settings),
			}
			if !noAudit {
				cfg.AuditDir = filepath.Dir(dbPath)
			}

			server, err := mcp.NewServer(cfg)
			if err != nil {
				return fmt.Errorf("failed to start MCP server: %w", err)
			}
			return server.Run(commandContext(cmd))
		},
	}
	cmd.Flags().Bool("no-audit", false, "Do not write audit.jsonl next to the run store")
	return cmd
}
