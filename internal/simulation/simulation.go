package simulation

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/policylab/ohbsim/internal/calendar"
	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/constants"
	"github.com/policylab/ohbsim/internal/logging"
	"github.com/policylab/ohbsim/internal/metrics"
	"github.com/policylab/ohbsim/internal/population"
	"github.com/policylab/ohbsim/internal/process"
	"github.com/policylab/ohbsim/internal/rates"
	"github.com/policylab/ohbsim/internal/rollout"
)

// Status is the lifecycle position of a Simulation.
type Status int

const (
	StatusUninitialized Status = iota
	StatusInitialized
	StatusRunning
	StatusCompleted
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusInitialized:
		return "initialized"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

var (
	// ErrMissingStates means the configuration lacks a canonical state.
	ErrMissingStates = errors.New("missing required states")
	// ErrNotInitialized is returned when a period is run before Initialize.
	ErrNotInitialized = errors.New("simulation not initialized")
	// ErrFinished is returned when a period is run after the end date or a failure.
	ErrFinished = errors.New("simulation finished")
)

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) { s.logger = l }
}

// WithTrace enables the JSONL transition trace.
func WithTrace(t *logging.TraceLogger) Option {
	return func(s *Simulation) { s.trace = t }
}

// WithRand injects the generator used for distribution draws. Without it a
// generator seeded from the scenario's simulation.seed is used.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulation) { s.rng = r }
}

// Simulation is one run of the model over a configured date range. It is not
// safe for concurrent use; its metric store is.
type Simulation struct {
	provider config.Provider
	params   config.SimulationParameters
	logger   *slog.Logger
	trace    *logging.TraceLogger
	rng      *rand.Rand

	status   Status
	cal      *calendar.Calendar
	gate     *rollout.Gate
	regions  []*population.Region
	segments []*population.Segment
	resolver *rates.Resolver
	steps    []process.Step
	store    *metrics.Store

	// pending holds fiscal reset results, recorded with the next period.
	pending []process.Result
	periods int
}

// New creates an uninitialized simulation over p.
func New(p config.Provider, opts ...Option) *Simulation {
	s := &Simulation{provider: p, store: metrics.NewStore()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrDiscard(s.logger)
	return s
}

// Initialize validates the configuration, builds the calendar, segments and
// rollout gate, holds back segments that are not yet eligible and records
// the INITIAL snapshot.
func (s *Simulation) Initialize() error {
	if s.status != StatusUninitialized {
		return fmt.Errorf("initialize: simulation is %s", s.status)
	}
	if err := s.initialize(); err != nil {
		s.status = StatusFailed
		return err
	}
	s.status = StatusInitialized
	return nil
}

func (s *Simulation) initialize() error {
	defs := withHoldingState(s.provider.StateDefinitions())
	if missing := missingStates(defs); len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingStates, missing)
	}
	if v, ok := s.provider.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validating configuration: %w", err)
		}
	}

	s.params = s.provider.SimulationParameters()
	cal, err := calendar.New(s.params.StartDate, s.params.Interval, s.params.FiscalYearStartMonth, s.params.FiscalYearStartDay)
	if err != nil {
		return fmt.Errorf("building calendar: %w", err)
	}
	s.cal = cal
	s.gate = rollout.NewGate(s.provider.RolloutSchedule(), s.params.StartDate)

	for _, rd := range s.provider.Regions() {
		region := population.NewRegion(rd, s.provider.Segments(), defs, s.logger)
		s.regions = append(s.regions, region)
		s.segments = append(s.segments, region.Segments...)
	}
	if len(s.segments) == 0 {
		s.logger.Warn("no population segments configured")
	}
	for _, seg := range s.segments {
		if err := seg.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrMissingStates, err)
		}
	}

	for _, seg := range s.segments {
		seg.CaptureOriginalEligible()
		if !seg.IsEligible(s.gate, cal.Current()) {
			held := seg.Hold()
			if next, ok := s.gate.NextActivation(seg.Cohort, seg.Age.Midpoint(), cal.Current()); ok {
				s.logger.Debug("segment held until rollout", "segment", seg.ID, "population", held,
					"activation", next.Format(time.DateOnly))
			} else {
				s.logger.Warn("segment has no rollout phase", "segment", seg.ID, "cohort", seg.Cohort, "population", held)
			}
		}
		seg.Ledger.Snapshot(constants.InitialPeriod)
	}

	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(s.params.Seed))
	}
	s.resolver = rates.NewResolver(s.provider, s.rng, s.logger)
	s.steps = process.Plan(process.Env{
		Provider: s.provider,
		Resolver: s.resolver,
		Logger:   s.logger,
		Trace:    s.trace,
	})

	if err := s.store.RecordStates(constants.InitialPeriod, s.segments); err != nil {
		return fmt.Errorf("recording initial state: %w", err)
	}
	s.logger.Info("simulation initialized",
		"segments", len(s.segments),
		"regions", len(s.regions),
		"start", s.params.StartDate.Format(time.DateOnly),
		"end", s.params.EndDate.Format(time.DateOnly),
		"interval", s.params.Interval)
	return nil
}

// withHoldingState appends the non_eligible state when the configuration
// does not define it.
func withHoldingState(defs []config.StateDefinition) []config.StateDefinition {
	for _, d := range defs {
		if d.ID == constants.StateNonEligible {
			return defs
		}
	}
	out := append([]config.StateDefinition(nil), defs...)
	return append(out, config.StateDefinition{
		Key:  constants.StateNonEligible,
		ID:   constants.StateNonEligible,
		Name: "Not Yet Eligible",
	})
}

func missingStates(defs []config.StateDefinition) []string {
	have := make(map[string]bool, len(defs))
	for _, d := range defs {
		have[d.ID] = true
	}
	var missing []string
	for _, id := range constants.RequiredStates {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// Done reports whether the calendar has passed the end date.
func (s *Simulation) Done() bool {
	return s.cal != nil && s.cal.Current().After(s.params.EndDate)
}

// RunOnePeriod executes one period: rollout refresh, the application
// pipeline, the remaining flows and claims, metric recording, then calendar
// advance with fiscal reset. Any error marks the simulation failed.
func (s *Simulation) RunOnePeriod() error {
	switch s.status {
	case StatusUninitialized:
		return ErrNotInitialized
	case StatusCompleted, StatusFailed:
		return ErrFinished
	}
	if s.Done() {
		return ErrFinished
	}
	s.status = StatusRunning

	if err := s.runPeriod(); err != nil {
		s.status = StatusFailed
		s.logger.Error("period failed", "period", s.cal.PeriodLabel(), "error", err)
		return err
	}
	return nil
}

func (s *Simulation) runPeriod() error {
	period := s.cal.PeriodLabel()
	results := s.pending
	s.pending = nil

	results = append(results, s.refreshEligibility()...)

	for _, step := range s.steps {
		rs, err := step.Execute(s.segments, s.cal)
		if err != nil {
			return fmt.Errorf("period %s: step %s: %w", period, step.ID(), err)
		}
		results = append(results, rs...)
	}

	for _, seg := range s.segments {
		if total := seg.Ledger.Total(); total != seg.PopulationSize {
			return fmt.Errorf("period %s: segment %s holds %d people, want %d", period, seg.ID, total, seg.PopulationSize)
		}
		seg.Ledger.Snapshot(period)
	}
	if err := s.store.RecordStates(period, s.segments); err != nil {
		return err
	}
	if err := s.store.RecordResults(period, s.cal.FiscalYearLabel(), results); err != nil {
		return err
	}
	if err := s.store.ComputeDerived(period); err != nil {
		return err
	}
	s.periods++
	s.logger.Debug("period complete", "period", period, "results", len(results))

	if s.cal.Advance() {
		s.resetFiscalYear()
	}
	return nil
}

// refreshEligibility releases held segments whose rollout phase has started.
func (s *Simulation) refreshEligibility() []process.Result {
	var results []process.Result
	for _, seg := range s.segments {
		if !seg.Gated() || !seg.IsEligible(s.gate, s.cal.Current()) {
			continue
		}
		restored := seg.Release()
		s.logger.Info("rollout activated segment", "segment", seg.ID, "date", s.cal.Current().Format(time.DateOnly), "population", restored)
		if restored == 0 {
			continue
		}
		r := process.NewResult(seg, constants.FlowRolloutActivation, constants.StateNonEligible, constants.StateEligible)
		r.Attempted = seg.OriginalEligible()
		r.Success = restored
		results = append(results, r)
	}
	return results
}

// resetFiscalYear moves every reset-flagged state into re_enrollment_eligible.
func (s *Simulation) resetFiscalYear() {
	s.logger.Info("fiscal year transition", "fiscal_year", s.cal.FiscalYearLabel(), "date", s.cal.Current().Format(time.DateOnly))
	for _, seg := range s.segments {
		moved := seg.Ledger.ResetAnnual(constants.StateReEnrollmentEligible)
		ids := make([]string, 0, len(moved))
		for id := range moved {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			r := process.NewResult(seg, constants.FlowFiscalYearReset, id, constants.StateReEnrollmentEligible)
			r.Attempted = moved[id]
			r.Success = moved[id]
			s.pending = append(s.pending, r)
		}
	}
}

// Run initializes if needed, runs every remaining period and returns all
// recorded metrics.
func (s *Simulation) Run() ([]metrics.Record, error) {
	if s.status == StatusUninitialized {
		if err := s.Initialize(); err != nil {
			return nil, err
		}
	}
	for !s.Done() {
		if err := s.RunOnePeriod(); err != nil {
			return nil, err
		}
	}
	if s.status != StatusFailed {
		s.status = StatusCompleted
	}
	s.logger.Info("simulation completed", "periods", s.periods, "records", s.store.Len())
	return s.store.All(), nil
}

// Status returns the lifecycle state.
func (s *Simulation) Status() Status { return s.status }

// Metrics returns the metric store.
func (s *Simulation) Metrics() *metrics.Store { return s.store }

// Segments returns every segment in region order.
func (s *Simulation) Segments() []*population.Segment { return s.segments }

// Regions returns the regions.
func (s *Simulation) Regions() []*population.Region { return s.regions }

// Calendar returns the calendar, nil before Initialize.
func (s *Simulation) Calendar() *calendar.Calendar { return s.cal }

// Gate returns the rollout gate, nil before Initialize.
func (s *Simulation) Gate() *rollout.Gate { return s.gate }

// Resolver returns the rate resolver, nil before Initialize.
func (s *Simulation) Resolver() *rates.Resolver { return s.resolver }

// Parameters returns the simulation parameters read at Initialize.
func (s *Simulation) Parameters() config.SimulationParameters { return s.params }

// PeriodsRun returns the number of completed periods.
func (s *Simulation) PeriodsRun() int { return s.periods }
