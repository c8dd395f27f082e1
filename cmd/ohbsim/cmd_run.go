package main

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/export"
	"github.com/policylab/ohbsim/internal/logging"
	"github.com/policylab/ohbsim/internal/metrics"
	"github.com/policylab/ohbsim/internal/simulation"
	"github.com/policylab/ohbsim/internal/store"
	"github.com/spf13/cobra"
)

// Export formats accepted by --format.
const (
	formatJSON    = "json"
	formatCSV     = "csv"
	formatArchive = "archive"
	formatNone    = "none"
)

// runResult is the JSON output of the run command.
type runResult struct {
	Scenario string          `json:"scenario"`
	Revision string          `json:"revision"`
	Seed     int64           `json:"seed"`
	RunID    string          `json:"run_id,omitempty"`
	Files    []string        `json:"files,omitempty"`
	Pruned   []string        `json:"pruned,omitempty"`
	Summary  metrics.Summary `json:"summary"`
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a forecast for a scenario",
		Long: `Run a scenario from start to end date and export its metrics.

The base configuration is read from <config-dir>/base_config.yaml and the
scenario overlay from <config-dir>/scenarios/<name>.yaml. Date, interval and
seed flags override the merged configuration.

Examples:
  ohbsim run --scenario simple_scenario
  ohbsim run --scenario accelerated_rollout --interval QUARTERLY --format csv
  ohbsim run --end-date 2027-03-31 --save --keep 10`,
		RunE: runRun,
	}

	cmd.Flags().String("scenario", "", "Scenario name (empty runs the base configuration)")
	cmd.Flags().String("start-date", "", "Override start date (YYYY-MM-DD)")
	cmd.Flags().String("end-date", "", "Override end date (YYYY-MM-DD)")
	cmd.Flags().String("interval", "", "Override time interval: MONTHLY, QUARTERLY or ANNUAL")
	cmd.Flags().Int64("seed", 0, "Random seed for variation draws (0 uses settings, then a fresh seed)")
	cmd.Flags().String("output-dir", "", "Directory for exported results (default from settings)")
	cmd.Flags().String("format", formatJSON, "Export format: json, csv, archive or none")
	cmd.Flags().Bool("save", false, "Save the run and its metrics to the run store")
	cmd.Flags().Int("keep", 0, "Keep only the N newest exports in the output directory (0 keeps all)")
	cmd.Flags().String("max-age", "", "Delete exports older than this (e.g. 30d, 2w, 720h)")
	cmd.Flags().String("max-size", "", "Delete the oldest exports once they total more than this (e.g. 200MB)")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	jsonOut, _ := cmd.Flags().GetBool("json")
	name, _ := cmd.Flags().GetString("scenario")
	format, _ := cmd.Flags().GetString("format")
	save, _ := cmd.Flags().GetBool("save")
	keep, _ := cmd.Flags().GetInt("keep")
	maxAge, _ := cmd.Flags().GetString("max-age")
	maxSize, _ := cmd.Flags().GetString("max-size")

	format = strings.ToLower(format)
	switch format {
	case formatJSON, formatCSV, formatArchive, formatNone:
	default:
		return fmt.Errorf("unknown format %q (valid: json, csv, archive, none)", format)
	}
	policy, err := retentionPolicy(keep, maxAge, maxSize)
	if err != nil {
		return err
	}

	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	outputDir := settings.OutputDir
	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		outputDir = v
	}

	scenario, err := scenarioFromFlags(cmd, settings, name)
	if err != nil {
		return err
	}

	logger := newLogger(cmd, settings)
	trace := logging.NewTraceLogger(outputDir, settings.Logging.Level)
	defer trace.Close()

	sim := simulation.New(scenario, simulation.WithLogger(logger), simulation.WithTrace(trace))
	records, err := sim.Run()
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}

	params := scenario.SimulationParameters()
	result := runResult{
		Scenario: name,
		Revision: scenario.Revision(),
		Seed:     params.Seed,
		Summary:  sim.Metrics().Summary(),
	}

	if save {
		run, err := saveRun(commandContext(cmd), settings, store.NewRun(name, scenario.Revision(), params, sim.PeriodsRun()), records)
		if err != nil {
			return err
		}
		result.RunID = run.ID
		logger.Info("run saved", "run_id", run.ID, "records", run.Records)
	}

	doc := export.NewDocument(name, scenario.Revision(), params, records)
	doc.RunID = result.RunID
	result.Files, err = writeExport(outputDir, format, doc, time.Now())
	if err != nil {
		return err
	}

	if policy != nil {
		result.Pruned, err = export.ApplyRetention(outputDir, policy)
		if err != nil {
			return fmt.Errorf("applying retention: %w", err)
		}
	}

	if jsonOut {
		return writeJSON(cmd, result)
	}
	printRunSummary(cmd.OutOrStdout(), result)
	return nil
}

// scenarioFromFlags loads the named scenario and applies the override flags.
// A run always ends up with a concrete seed: the --seed flag, then the
// scenario's own seed, then the settings seed, then a fresh one.
func scenarioFromFlags(cmd *cobra.Command, settings *config.Settings, name string) (*config.Scenario, error) {
	scenario, err := config.Load(settings.ConfigDir, name)
	if err != nil {
		return nil, fmt.Errorf("loading scenario: %w", err)
	}

	var o config.Overrides
	o.StartDate, _ = cmd.Flags().GetString("start-date")
	o.EndDate, _ = cmd.Flags().GetString("end-date")
	o.Interval, _ = cmd.Flags().GetString("interval")
	o.Seed, _ = cmd.Flags().GetInt64("seed")
	o.Interval = strings.ToUpper(o.Interval)

	scenario, err = o.Apply(scenario)
	if err != nil {
		return nil, fmt.Errorf("applying overrides: %w", err)
	}
	if scenario, err = config.EnsureSeed(scenario, settings.Seed); err != nil {
		return nil, err
	}
	if scenario, err = config.EnsureSeed(scenario, time.Now().UnixNano()); err != nil {
		return nil, err
	}
	return scenario, nil
}

func saveRun(ctx context.Context, settings *config.Settings, run store.Run, records []metrics.Record) (store.Run, error) {
	dbPath, err := settings.ResolvedDatabasePath()
	if err != nil {
		return run, err
	}
	runs, err := store.NewSQLiteRunStore(dbPath)
	if err != nil {
		return run, fmt.Errorf("opening run store: %w", err)
	}
	defer runs.Close()

	saved, err := runs.SaveRun(ctx, run, records)
	if err != nil {
		return run, fmt.Errorf("saving run: %w", err)
	}
	return saved, nil
}

// writeExport writes doc in format into dir and returns the files written.
func writeExport(dir, format string, doc *export.Document, now time.Time) ([]string, error) {
	switch format {
	case formatJSON:
		path := export.GeneratePath(dir, doc.Scenario, export.ExtJSON, now)
		if err := export.WriteJSON(path, doc); err != nil {
			return nil, fmt.Errorf("writing results: %w", err)
		}
		return []string{path}, nil
	case formatArchive:
		path := export.GeneratePath(dir, doc.Scenario, export.ExtArchive, now)
		meta := map[string]string{"revision": doc.Revision}
		if doc.RunID != "" {
			meta["run_id"] = doc.RunID
		}
		if err := export.WriteArchive(path, doc, meta); err != nil {
			return nil, fmt.Errorf("writing archive: %w", err)
		}
		return []string{path}, nil
	case formatCSV:
		base := filepath.Base(export.GeneratePath(dir, doc.Scenario, "", now))
		paths, err := export.WriteCSV(dir, base, doc.Records)
		if err != nil {
			return paths, fmt.Errorf("writing csv: %w", err)
		}
		return paths, nil
	default:
		return nil, nil
	}
}

// retentionPolicy builds the export retention policy from the --keep,
// --max-age and --max-size flags. It returns nil when none is set.
func retentionPolicy(keep int, maxAge, maxSize string) (export.RetentionPolicy, error) {
	if keep < 0 {
		return nil, fmt.Errorf("--keep must not be negative, got %d", keep)
	}

	var policies []export.RetentionPolicy
	if keep > 0 {
		policies = append(policies, &export.CountPolicy{MaxCount: keep})
	}
	if maxAge != "" {
		d, err := export.ParseDuration(maxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-age: %w", err)
		}
		policies = append(policies, &export.AgePolicy{MaxAge: d})
	}
	if maxSize != "" {
		n, err := humanize.ParseBytes(maxSize)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-size: %w", err)
		}
		if n == 0 || n > math.MaxInt64 {
			return nil, fmt.Errorf("invalid --max-size: %q is out of range", maxSize)
		}
		policies = append(policies, &export.SizePolicy{MaxTotalBytes: int64(n)})
	}

	switch len(policies) {
	case 0:
		return nil, nil
	case 1:
		return policies[0], nil
	default:
		return &export.CompositePolicy{Policies: policies}, nil
	}
}
