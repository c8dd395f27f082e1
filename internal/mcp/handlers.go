package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/policylab/ohbsim/internal/calendar"
	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/metrics"
	"github.com/policylab/ohbsim/internal/sanitize"
	"github.com/policylab/ohbsim/internal/simulation"
	"github.com/policylab/ohbsim/internal/store"
)

// DefaultMetricsLimit caps ohbsim_metrics responses when no limit is given.
const DefaultMetricsLimit = 500

// registerTools registers all ohbsim MCP tools with the server.
func (s *Server) registerTools() error {
	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolScenarios,
		Description: "List the scenarios available in the configuration directory",
	}, s.handleScenarios)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolValidate,
		Description: "Validate a scenario configuration and report every problem found",
	}, s.handleValidate)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolRun,
		Description: "Run an enrollment and expenditure forecast for a scenario, save it to the run store and return a summary",
	}, s.handleRun)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolRuns,
		Description: "List saved runs, newest first",
	}, s.handleRuns)

	sdk.AddTool(s.server, &sdk.Tool{
		Name:        ToolMetrics,
		Description: "Query the metric records of a saved run by type, id, period and dimensions",
	}, s.handleMetrics)

	return nil
}

// handleScenarios implements the ohbsim_scenarios tool.
func (s *Server) handleScenarios(ctx context.Context, req *sdk.CallToolRequest, args ScenariosInput) (_ *sdk.CallToolResult, _ ScenariosOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ToolScenarios, start, retErr, nil)
	}()

	if err := s.toolLimiters.Check(ToolScenarios); err != nil {
		return nil, ScenariosOutput{}, err
	}

	names, err := config.ListScenarios(s.configDir)
	if err != nil {
		return nil, ScenariosOutput{}, err
	}
	if names == nil {
		names = []string{}
	}
	return nil, ScenariosOutput{ConfigDir: s.configDir, Scenarios: names, Count: len(names)}, nil
}

// handleValidate implements the ohbsim_validate tool. An invalid scenario is
// a successful call with Valid false; only unreadable configuration fails.
func (s *Server) handleValidate(ctx context.Context, req *sdk.CallToolRequest, args ValidateInput) (_ *sdk.CallToolResult, _ ValidateOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ToolValidate, start, retErr, toolParams("scenario", args.Scenario))
	}()

	if err := s.toolLimiters.Check(ToolValidate); err != nil {
		return nil, ValidateOutput{}, err
	}

	scenario, err := config.Load(s.configDir, args.Scenario)
	if err != nil {
		return nil, ValidateOutput{}, fmt.Errorf("loading scenario: %w", err)
	}

	problems := scenario.Problems()
	out := ValidateOutput{
		Scenario: args.Scenario,
		Revision: scenario.Revision(),
		Valid:    len(problems) == 0,
		Problems: problems,
	}
	for _, p := range scenario.RolloutSchedule() {
		out.Phases = append(out.Phases, Phase{
			ID:          p.ID,
			CohortID:    p.CohortID,
			AgeMin:      p.AgeMin,
			AgeMax:      p.AgeMax,
			StartDate:   p.StartDate.Format(calendar.DateLayout),
			Description: sanitize.Text(p.Description),
		})
	}
	return nil, out, nil
}

// handleRun implements the ohbsim_run tool.
func (s *Server) handleRun(ctx context.Context, req *sdk.CallToolRequest, args RunInput) (_ *sdk.CallToolResult, _ RunOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ToolRun, start, retErr, toolParams(
			"scenario", args.Scenario,
			"start_date", args.StartDate,
			"end_date", args.EndDate,
			"interval", args.Interval,
			"dry_run", strconv.FormatBool(args.DryRun),
		))
	}()

	if err := s.toolLimiters.Check(ToolRun); err != nil {
		return nil, RunOutput{}, err
	}

	scenario, err := config.Load(s.configDir, args.Scenario)
	if err != nil {
		return nil, RunOutput{}, fmt.Errorf("loading scenario: %w", err)
	}
	scenario, err = config.Overrides{
		StartDate: args.StartDate,
		EndDate:   args.EndDate,
		Interval:  args.Interval,
		Seed:      args.Seed,
	}.Apply(scenario)
	if err != nil {
		return nil, RunOutput{}, fmt.Errorf("applying overrides: %w", err)
	}
	scenario, err = config.EnsureSeed(scenario, time.Now().UnixNano())
	if err != nil {
		return nil, RunOutput{}, fmt.Errorf("seeding scenario: %w", err)
	}

	sim := simulation.New(scenario, simulation.WithLogger(s.logger))
	records, err := sim.Run()
	if err != nil {
		return nil, RunOutput{}, fmt.Errorf("running scenario: %w", err)
	}

	params := scenario.SimulationParameters()
	out := RunOutput{
		Scenario: args.Scenario,
		Revision: scenario.Revision(),
		Seed:     params.Seed,
		Summary:  sim.Metrics().Summary(),
	}

	if args.DryRun {
		out.Message = fmt.Sprintf("Ran %d periods (dry run, not saved)", out.Summary.Periods)
		return nil, out, nil
	}

	run, err := s.runs.SaveRun(ctx, store.NewRun(args.Scenario, scenario.Revision(), params, sim.PeriodsRun()), records)
	if err != nil {
		return nil, RunOutput{}, fmt.Errorf("saving run: %w", err)
	}
	out.RunID = run.ID
	out.Message = fmt.Sprintf("Ran %d periods, saved %d records as run %s", out.Summary.Periods, run.Records, run.ID)
	return nil, out, nil
}

// handleRuns implements the ohbsim_runs tool.
func (s *Server) handleRuns(ctx context.Context, req *sdk.CallToolRequest, args RunsInput) (_ *sdk.CallToolResult, _ RunsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ToolRuns, start, retErr, toolParams("scenario", args.Scenario))
	}()

	if err := s.toolLimiters.Check(ToolRuns); err != nil {
		return nil, RunsOutput{}, err
	}

	runs, err := s.runs.ListRuns(ctx, args.Scenario)
	if err != nil {
		return nil, RunsOutput{}, err
	}

	out := RunsOutput{Runs: make([]RunInfo, 0, len(runs))}
	for _, r := range runs {
		out.Runs = append(out.Runs, runInfo(r))
	}
	out.Count = len(out.Runs)
	return nil, out, nil
}

// handleMetrics implements the ohbsim_metrics tool.
func (s *Server) handleMetrics(ctx context.Context, req *sdk.CallToolRequest, args MetricsInput) (_ *sdk.CallToolResult, _ MetricsOutput, retErr error) {
	start := time.Now()
	defer func() {
		s.auditTool(ToolMetrics, start, retErr, toolParams(
			"run_id", args.RunID,
			"type", args.Type,
			"id", args.ID,
			"period", args.Period,
		))
	}()

	if err := s.toolLimiters.Check(ToolMetrics); err != nil {
		return nil, MetricsOutput{}, err
	}
	if args.RunID == "" {
		return nil, MetricsOutput{}, errors.New("run_id is required")
	}
	if args.Limit < 0 {
		return nil, MetricsOutput{}, fmt.Errorf("limit must not be negative, got %d", args.Limit)
	}

	run, err := s.runs.GetRun(ctx, args.RunID)
	if err != nil {
		return nil, MetricsOutput{}, err
	}
	records, err := s.runs.LoadMetrics(ctx, args.RunID, metrics.Filter{
		Type:       args.Type,
		ID:         args.ID,
		Period:     args.Period,
		Region:     args.Region,
		Cohort:     args.Cohort,
		AgeBracket: args.AgeBracket,
		Segment:    args.Segment,
	})
	if err != nil {
		return nil, MetricsOutput{}, err
	}

	limit := args.Limit
	if limit == 0 {
		limit = DefaultMetricsLimit
	}
	out := MetricsOutput{Run: runInfo(*run)}
	if len(records) > limit {
		records = records[:limit]
		out.Truncated = true
	}
	out.Records = metricRecords(records)
	out.Count = len(records)
	return nil, out, nil
}
