// Package mcp provides an MCP (Model Context Protocol) server for ohbsim.
package mcp

import (
	"time"

	"github.com/policylab/ohbsim/internal/metrics"
	"github.com/policylab/ohbsim/internal/store"
)

// ScenariosInput defines the input for the ohbsim_scenarios tool.
type ScenariosInput struct{}

// ScenariosOutput defines the output for the ohbsim_scenarios tool.
type ScenariosOutput struct {
	ConfigDir string   `json:"config_dir" jsonschema:"Directory holding base_config.yaml and scenarios/"`
	Scenarios []string `json:"scenarios" jsonschema:"Names of the available scenarios"`
	Count     int      `json:"count" jsonschema:"Number of scenarios"`
}

// ValidateInput defines the input for the ohbsim_validate tool.
type ValidateInput struct {
	Scenario string `json:"scenario,omitempty" jsonschema:"Scenario name (empty validates the base configuration)"`
}

// ValidateOutput defines the output for the ohbsim_validate tool.
type ValidateOutput struct {
	Scenario string   `json:"scenario"`
	Revision string   `json:"revision" jsonschema:"Hash of the merged configuration"`
	Valid    bool     `json:"valid"`
	Problems []string `json:"problems,omitempty" jsonschema:"Every consistency problem found"`
	Phases   []Phase  `json:"phases,omitempty" jsonschema:"Rollout schedule as configured"`
}

// Phase describes one rollout phase of a validated scenario.
type Phase struct {
	ID          string `json:"phase_id"`
	CohortID    string `json:"cohort_id"`
	AgeMin      int    `json:"age_min"`
	AgeMax      int    `json:"age_max"`
	StartDate   string `json:"start_date"`
	Description string `json:"description,omitempty"`
}

// RunInput defines the input for the ohbsim_run tool.
type RunInput struct {
	Scenario  string `json:"scenario,omitempty" jsonschema:"Scenario name (empty runs the base configuration)"`
	StartDate string `json:"start_date,omitempty" jsonschema:"Override simulation start date (YYYY-MM-DD)"`
	EndDate   string `json:"end_date,omitempty" jsonschema:"Override simulation end date (YYYY-MM-DD)"`
	Interval  string `json:"interval,omitempty" jsonschema:"Override time interval: MONTHLY or QUARTERLY"`
	Seed      int64  `json:"seed,omitempty" jsonschema:"Random seed for variation draws (0 picks one)"`
	DryRun    bool   `json:"dry_run,omitempty" jsonschema:"Run without saving to the run store (default: false)"`
}

// RunOutput defines the output for the ohbsim_run tool.
type RunOutput struct {
	RunID    string          `json:"run_id,omitempty" jsonschema:"ID of the saved run (empty on dry run)"`
	Scenario string          `json:"scenario"`
	Revision string          `json:"revision"`
	Seed     int64           `json:"seed"`
	Summary  metrics.Summary `json:"summary"`
	Message  string          `json:"message" jsonschema:"Human-readable result message"`
}

// RunsInput defines the input for the ohbsim_runs tool.
type RunsInput struct {
	Scenario string `json:"scenario,omitempty" jsonschema:"Only list runs of this scenario"`
}

// RunInfo describes a saved run.
type RunInfo struct {
	ID        string `json:"id"`
	Scenario  string `json:"scenario"`
	Revision  string `json:"revision"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Interval  string `json:"interval"`
	Seed      int64  `json:"seed"`
	Periods   int    `json:"periods"`
	Records   int    `json:"records"`
	CreatedAt string `json:"created_at" jsonschema:"RFC 3339 creation time"`
}

func runInfo(r store.Run) RunInfo {
	return RunInfo{
		ID:        r.ID,
		Scenario:  r.Scenario,
		Revision:  r.Revision,
		StartDate: r.StartDate,
		EndDate:   r.EndDate,
		Interval:  r.Interval,
		Seed:      r.Seed,
		Periods:   r.Periods,
		Records:   r.Records,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}

// RunsOutput defines the output for the ohbsim_runs tool.
type RunsOutput struct {
	Runs  []RunInfo `json:"runs"`
	Count int       `json:"count"`
}

// MetricsInput defines the input for the ohbsim_metrics tool. Empty filter
// fields match everything.
type MetricsInput struct {
	RunID      string `json:"run_id" jsonschema:"ID of a saved run"`
	Type       string `json:"type,omitempty" jsonschema:"Metric type: state, flow, financial or derived"`
	ID         string `json:"id,omitempty" jsonschema:"Metric id, e.g. eligible or enrollment_rate"`
	Period     string `json:"period,omitempty" jsonschema:"Period label, e.g. 2025-04 or 2025-Q2"`
	Region     string `json:"region,omitempty" jsonschema:"Region id or ALL"`
	Cohort     string `json:"cohort,omitempty" jsonschema:"Cohort or ALL"`
	AgeBracket string `json:"age_bracket,omitempty" jsonschema:"Age bracket or ALL"`
	Segment    string `json:"segment,omitempty" jsonschema:"Segment id or ALL"`
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum records to return (default: 500)"`
}

// MetricsOutput defines the output for the ohbsim_metrics tool.
type MetricsOutput struct {
	Run       RunInfo          `json:"run"`
	Records   []MetricRecord `json:"records"`
	Count     int            `json:"count"`
	Truncated bool           `json:"truncated,omitempty"`
}

// MetricRecord is one metric value with its dimensions spelled out.
type MetricRecord struct {
	Type       string  `json:"type"`
	ID         string  `json:"id"`
	Period     string  `json:"period"`
	Region     string  `json:"region"`
	Cohort     string  `json:"cohort"`
	AgeBracket string  `json:"age_bracket"`
	Segment    string  `json:"segment"`
	Value      float64 `json:"value"`
}

func metricRecords(records []metrics.Record) []MetricRecord {
	out := make([]MetricRecord, len(records))
	for i, r := range records {
		out[i] = MetricRecord{
			Type:       r.Type,
			ID:         r.ID,
			Period:     r.Period,
			Region:     r.Region,
			Cohort:     r.Cohort,
			AgeBracket: r.AgeBracket,
			Segment:    r.Segment,
			Value:      r.Value,
		}
	}
	return out
}
