package simulation

import (
	"testing"

	"github.com/policylab/ohbsim/internal/metrics"
)

// AssertConserved asserts that every segment's states sum to its population
// size after every period.
func AssertConserved(t *testing.T, result RunResult) {
	t.Helper()
	sizes := make(map[string]int64)
	for _, seg := range result.Simulation.Segments() {
		sizes[seg.ID] = seg.PopulationSize
	}
	for _, pr := range result.Periods {
		for seg, states := range pr.States {
			var total int64
			for _, n := range states {
				total += n
			}
			if total != sizes[seg] {
				t.Errorf("AssertConserved: period %s: segment %s holds %d, want %d", pr.Label, seg, total, sizes[seg])
			}
		}
	}
}

// AssertNonNegative asserts that no state population is ever negative.
func AssertNonNegative(t *testing.T, result RunResult) {
	t.Helper()
	for _, pr := range result.Periods {
		for seg, states := range pr.States {
			for id, n := range states {
				if n < 0 {
					t.Errorf("AssertNonNegative: period %s: %s.%s = %d", pr.Label, seg, id, n)
				}
			}
		}
	}
}

// AssertState asserts a segment's population in a state after a period.
func AssertState(t *testing.T, result RunResult, period, segment, state string, want int64) {
	t.Helper()
	for _, pr := range result.Periods {
		if pr.Label != period {
			continue
		}
		if got := pr.States[segment][state]; got != want {
			t.Errorf("AssertState: period %s: %s.%s = %d, want %d\n%s", period, segment, state, got, want, FormatPeriodDebug(pr))
		}
		return
	}
	t.Errorf("AssertState: period %s not found", period)
}

// AssertMetric asserts a recorded metric value at the overall rollup.
func AssertMetric(t *testing.T, result RunResult, typ, id, period string, want float64) {
	t.Helper()
	got, ok := result.Simulation.Metrics().Lookup(typ, id, period, metrics.Total)
	if !ok {
		t.Errorf("AssertMetric: %s %s at %s not recorded", typ, id, period)
		return
	}
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("AssertMetric: %s %s at %s = %v, want %v", typ, id, period, got, want)
	}
}

// AssertNoMetric asserts that a metric was not recorded at the overall rollup.
func AssertNoMetric(t *testing.T, result RunResult, typ, id, period string) {
	t.Helper()
	if got, ok := result.Simulation.Metrics().Lookup(typ, id, period, metrics.Total); ok {
		t.Errorf("AssertNoMetric: %s %s at %s = %v, want absent", typ, id, period, got)
	}
}
