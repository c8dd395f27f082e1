package simulation

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/logging"
	"github.com/policylab/ohbsim/internal/population"
)

// Runner runs scenarios period by period in tests, capturing every segment's
// ledger after each period.
type Runner struct {
	t        *testing.T
	traceDir string
}

// NewRunner creates a runner with an isolated trace directory and a
// sandboxed HOME.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	return &Runner{t: t, traceDir: dir}
}

// PeriodResult is the state of every segment after one period.
type PeriodResult struct {
	Index  int
	Label  string
	States map[string]map[string]int64 // segment id -> state id -> population
}

// RunResult captures all periods and the finished simulation.
type RunResult struct {
	Periods    []PeriodResult
	Simulation *Simulation
}

// Run builds the scenario and runs it to completion with a fixed seed.
func (r *Runner) Run(b *Builder) RunResult {
	r.t.Helper()

	scenario, err := b.Build()
	if err != nil {
		r.t.Fatalf("Run: building scenario: %v", err)
	}
	return r.RunProvider(scenario)
}

// RunProvider runs p to completion with a fixed seed.
func (r *Runner) RunProvider(p config.Provider) RunResult {
	r.t.Helper()

	trace := logging.NewTraceLogger(r.traceDir, "trace")
	r.t.Cleanup(trace.Close)

	sim := New(p, WithTrace(trace), WithRand(rand.New(rand.NewSource(1))))
	if err := sim.Initialize(); err != nil {
		r.t.Fatalf("Run: Initialize: %v", err)
	}

	var periods []PeriodResult
	for i := 0; !sim.Done(); i++ {
		label := sim.Calendar().PeriodLabel()
		if err := sim.RunOnePeriod(); err != nil {
			r.t.Fatalf("Run: period %s: %v", label, err)
		}
		periods = append(periods, PeriodResult{Index: i, Label: label, States: capture(sim.Segments())})
	}
	return RunResult{Periods: periods, Simulation: sim}
}

func capture(segments []*population.Segment) map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(segments))
	for _, seg := range segments {
		states := make(map[string]int64)
		for _, st := range seg.Ledger.States() {
			states[st.ID] = st.Population()
		}
		out[seg.ID] = states
	}
	return out
}

// FormatPeriodDebug returns a debug string for a period result.
func FormatPeriodDebug(pr PeriodResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Period %d (%s):\n", pr.Index, pr.Label)
	for seg, states := range pr.States {
		fmt.Fprintf(&sb, "  %s: %v\n", seg, states)
	}
	return sb.String()
}
