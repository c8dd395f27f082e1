package main

import (
	"fmt"

	"github.com/policylab/ohbsim/internal/export"
	"github.com/spf13/cobra"
)

func newPruneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old exported results from the output directory",
		Long: `Apply a retention policy to the exports in the output directory. An export
is one JSON document, one archive, or the CSV files of one run; it is kept
if any given policy keeps it, and removed with all of its files otherwise.

Examples:
  ohbsim prune --keep 10
  ohbsim prune --max-age 30d --dry-run
  ohbsim prune --max-size 200MB`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			keep, _ := cmd.Flags().GetInt("keep")
			maxAge, _ := cmd.Flags().GetString("max-age")
			maxSize, _ := cmd.Flags().GetString("max-size")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			policy, err := retentionPolicy(keep, maxAge, maxSize)
			if err != nil {
				return err
			}
			if policy == nil {
				return fmt.Errorf("nothing to do: set --keep, --max-age or --max-size")
			}

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			dir := settings.OutputDir
			if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
				dir = v
			}

			var removed []string
			if dryRun {
				drop, err := export.Prunable(dir, policy)
				if err != nil {
					return err
				}
				for _, e := range drop {
					removed = append(removed, e.Paths...)
				}
			} else {
				removed, err = export.ApplyRetention(dir, policy)
				if err != nil {
					return err
				}
			}

			if jsonOut {
				if removed == nil {
					removed = []string{}
				}
				return writeJSON(cmd, map[string]any{"dry_run": dryRun, "removed": removed, "count": len(removed)})
			}
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			for _, p := range removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, p)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d file(s)\n", verb, len(removed))
			return nil
		},
	}
	cmd.Flags().Int("keep", 0, "Keep the N newest exports")
	cmd.Flags().String("max-age", "", "Keep exports newer than this (e.g. 30d, 2w, 720h)")
	cmd.Flags().String("max-size", "", "Keep the newest exports up to this total size (e.g. 200MB)")
	cmd.Flags().String("output-dir", "", "Directory holding exports (default from settings)")
	cmd.Flags().Bool("dry-run", false, "List what would be removed without deleting")
	return cmd
}
