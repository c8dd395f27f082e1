package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/policylab/ohbsim/internal/calendar"
	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/constants"
	"github.com/policylab/ohbsim/internal/export"
	"github.com/policylab/ohbsim/internal/metrics"
	"github.com/policylab/ohbsim/internal/store"
	"github.com/spf13/cobra"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs saved with run --save",
	}
	cmd.AddCommand(
		newRunsListCmd(),
		newRunsShowCmd(),
		newRunsExportCmd(),
		newRunsDeleteCmd(),
		newRunsCheckCmd(),
	)
	return cmd
}

// openRunStore opens the run store named by the settings and --db flag.
func openRunStore(cmd *cobra.Command) (*store.SQLiteRunStore, error) {
	settings, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := settings.ResolvedDatabasePath()
	if err != nil {
		return nil, err
	}
	runs, err := store.NewSQLiteRunStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening run store: %w", err)
	}
	return runs, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newRunsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			scenario, _ := cmd.Flags().GetString("scenario")

			runs, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer runs.Close()

			list, err := runs.ListRuns(commandContext(cmd), scenario)
			if err != nil {
				return err
			}

			if jsonOut {
				if list == nil {
					list = []store.Run{}
				}
				return writeJSON(cmd, map[string]any{"runs": list, "count": len(list)})
			}

			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No saved runs.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSCENARIO\tPERIOD RANGE\tINTERVAL\tSEED\tRECORDS\tCREATED")
			for _, r := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s..%s\t%s\t%d\t%d\t%s\n",
					r.ID, displayScenario(r.Scenario), r.StartDate, r.EndDate, r.Interval,
					r.Seed, r.Records, r.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("scenario", "", "Only list runs of this scenario")
	return cmd
}

func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().String("type", "", "Metric type: state, flow, financial or derived")
	cmd.Flags().String("id", "", "Metric id (e.g. eligible, enrollment_rate)")
	cmd.Flags().String("period", "", "Period label (e.g. 2025-04, 2025-Q2, INITIAL)")
	cmd.Flags().String("region", "", "Region id or ALL")
	cmd.Flags().String("cohort", "", "Cohort or ALL")
	cmd.Flags().String("age-bracket", "", "Age bracket or ALL")
	cmd.Flags().String("segment", "", "Segment id or ALL")
}

func filterFromFlags(cmd *cobra.Command) metrics.Filter {
	var f metrics.Filter
	f.Type, _ = cmd.Flags().GetString("type")
	f.ID, _ = cmd.Flags().GetString("id")
	f.Period, _ = cmd.Flags().GetString("period")
	f.Region, _ = cmd.Flags().GetString("region")
	f.Cohort, _ = cmd.Flags().GetString("cohort")
	f.AgeBracket, _ = cmd.Flags().GetString("age-bracket")
	f.Segment, _ = cmd.Flags().GetString("segment")
	return f
}

func newRunsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a saved run and query its metrics",
		Long: `Show a saved run. Filter flags select metric records to print; with no
filter only the run description is shown.

Examples:
  ohbsim runs show 3f6c... --type derived --id enrollment_rate --region ALL --cohort ALL --age-bracket ALL --segment ALL
  ohbsim runs show 3f6c... --period 2025-06 --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			limit, _ := cmd.Flags().GetInt("limit")

			runs, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer runs.Close()

			ctx := commandContext(cmd)
			run, err := runs.GetRun(ctx, args[0])
			if err != nil {
				return err
			}

			filter := filterFromFlags(cmd)
			var records []metrics.Record
			if filter != (metrics.Filter{}) {
				records, err = runs.LoadMetrics(ctx, run.ID, filter)
				if err != nil {
					return err
				}
			}
			truncated := limit > 0 && len(records) > limit
			if truncated {
				records = records[:limit]
			}

			if jsonOut {
				if records == nil {
					records = []metrics.Record{}
				}
				return writeJSON(cmd, map[string]any{
					"run":       run,
					"records":   records,
					"count":     len(records),
					"truncated": truncated,
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Run:       %s\n", run.ID)
			fmt.Fprintf(out, "Scenario:  %s\n", displayScenario(run.Scenario))
			fmt.Fprintf(out, "Revision:  %s\n", shortRevision(run.Revision))
			fmt.Fprintf(out, "Dates:     %s to %s (%s)\n", run.StartDate, run.EndDate, run.Interval)
			fmt.Fprintf(out, "Seed:      %d\n", run.Seed)
			printer.Fprintf(out, "Periods:   %d\n", run.Periods)
			printer.Fprintf(out, "Records:   %d\n", run.Records)
			fmt.Fprintf(out, "Created:   %s\n", run.CreatedAt.Local().Format(time.RFC1123))

			if filter == (metrics.Filter{}) {
				return nil
			}
			fmt.Fprintln(out)
			if len(records) == 0 {
				fmt.Fprintln(out, "No matching records.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tID\tPERIOD\tREGION\tCOHORT\tAGE\tSEGMENT\tVALUE")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Type, r.ID, r.Period, r.Region, r.Cohort, r.AgeBracket, r.Segment, formatValue(r.Value))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if truncated {
				fmt.Fprintf(out, "... truncated to %d records\n", limit)
			}
			return nil
		},
	}
	addFilterFlags(cmd)
	cmd.Flags().Int("limit", 200, "Maximum records to print (0 for all)")
	return cmd
}

func newRunsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a saved run's metrics to the output directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			format, _ := cmd.Flags().GetString("format")
			format = strings.ToLower(format)
			if format == formatNone {
				return fmt.Errorf("format %q writes nothing", format)
			}

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			outputDir := settings.OutputDir
			if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
				outputDir = v
			}

			runs, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer runs.Close()

			ctx := commandContext(cmd)
			run, err := runs.GetRun(ctx, args[0])
			if err != nil {
				return err
			}
			records, err := runs.LoadMetrics(ctx, run.ID, filterFromFlags(cmd))
			if err != nil {
				return err
			}

			doc, err := documentForRun(run, records)
			if err != nil {
				return err
			}
			var files []string
			switch format {
			case formatJSON, formatCSV, formatArchive:
				files, err = writeExport(outputDir, format, doc, time.Now())
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown format %q (valid: json, csv, archive)", format)
			}

			if jsonOut {
				return writeJSON(cmd, map[string]any{"run_id": run.ID, "files": files, "records": len(records)})
			}
			for _, f := range files {
				fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", f)
			}
			return nil
		},
	}
	addFilterFlags(cmd)
	cmd.Flags().String("format", formatJSON, "Export format: json, csv or archive")
	cmd.Flags().String("output-dir", "", "Directory for exported results (default from settings)")
	return cmd
}

// documentForRun rebuilds a results document from a saved run.
func documentForRun(run *store.Run, records []metrics.Record) (*export.Document, error) {
	interval, err := calendar.ParseInterval(run.Interval)
	if err != nil {
		return nil, err
	}
	start, err := calendar.ParseDate(run.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := calendar.ParseDate(run.EndDate)
	if err != nil {
		return nil, err
	}

	fiscalMonth, fiscalDay := run.FiscalMonth, run.FiscalDay
	if fiscalMonth == 0 {
		fiscalMonth, fiscalDay = constants.DefaultFiscalYearStartMonth, constants.DefaultFiscalYearStartDay
	}

	doc := export.NewDocument(run.Scenario, run.Revision, config.SimulationParameters{
		StartDate:            start,
		EndDate:              end,
		Interval:             interval,
		FiscalYearStartMonth: fiscalMonth,
		FiscalYearStartDay:   fiscalDay,
		Seed:                 run.Seed,
	}, records)
	doc.RunID = run.ID
	doc.CreatedAt = run.CreatedAt
	return doc, nil
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a saved run and its metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			runs, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer runs.Close()

			if err := runs.DeleteRun(commandContext(cmd), args[0]); err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, map[string]string{"deleted": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", args[0])
			return nil
		},
	}
}

func newRunsCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check the run store for corruption",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			runs, err := openRunStore(cmd)
			if err != nil {
				return err
			}
			defer runs.Close()

			if err := runs.Check(commandContext(cmd)); err != nil {
				return fmt.Errorf("run store %s: %w", runs.Path(), err)
			}
			if jsonOut {
				return writeJSON(cmd, map[string]any{"path": runs.Path(), "ok": true})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Run store %s is healthy\n", runs.Path())
			return nil
		},
	}
}

func displayScenario(name string) string {
	if name == "" {
		return "(base)"
	}
	return name
}

func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return printer.Sprintf("%d", int64(v))
	}
	return printer.Sprintf("%.4f", v)
}
