package main

import (
	"fmt"

	"github.com/policylab/ohbsim/internal/config"
	"github.com/spf13/cobra"
)

func newScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List available scenarios",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			names, err := config.ListScenarios(settings.ConfigDir)
			if err != nil {
				return err
			}

			if jsonOut {
				if names == nil {
					names = []string{}
				}
				return writeJSON(cmd, map[string]any{
					"config_dir": settings.ConfigDir,
					"scenarios":  names,
					"count":      len(names),
				})
			}

			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintf(out, "No scenarios found in %s\n", settings.ConfigDir)
				return nil
			}
			fmt.Fprintln(out, "Available scenarios:")
			for _, n := range names {
				fmt.Fprintf(out, "  - %s\n", n)
			}
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [scenario]",
		Short: "Validate the base configuration or a scenario",
		Long: `Load the base configuration, overlay the named scenario if given, and
report every consistency problem found.

Examples:
  ohbsim validate
  ohbsim validate accelerated_rollout --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}

			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			scenario, err := config.Load(settings.ConfigDir, name)
			if err != nil {
				return err
			}
			problems := scenario.Problems()

			if jsonOut {
				if problems == nil {
					problems = []string{}
				}
				if err := writeJSON(cmd, map[string]any{
					"scenario": name,
					"revision": scenario.Revision(),
					"valid":    len(problems) == 0,
					"problems": problems,
				}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				if len(problems) == 0 {
					fmt.Fprintf(out, "✓ Configuration is valid (revision %s)\n", shortRevision(scenario.Revision()))
				} else {
					fmt.Fprintf(out, "✗ Found %d problem(s):\n", len(problems))
					for _, p := range problems {
						fmt.Fprintf(out, "  - %s\n", p)
					}
				}
			}

			if len(problems) > 0 {
				return fmt.Errorf("%w: %d problem(s)", config.ErrInvalid, len(problems))
			}
			return nil
		},
	}
	return cmd
}
