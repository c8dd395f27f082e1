package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/policylab/ohbsim/internal/calendar"
	"github.com/policylab/ohbsim/internal/constants"
	"github.com/shopspring/decimal"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

var decimalOne = decimal.NewFromInt(1)

// With returns a new scenario with overlay deep-merged over s.
func (s *Scenario) With(overlay map[string]any) (*Scenario, error) {
	tree := Merge(clone(s.tree).(map[string]any), overlay)
	return NewScenario(s.name, tree)
}

// Validate checks the scenario for consistency. All problems are reported
// together, joined under ErrInvalid.
func (s *Scenario) Validate() error {
	problems := s.Problems()
	if len(problems) == 0 {
		return nil
	}
	errs := make([]error, len(problems))
	for i, msg := range problems {
		errs[i] = errors.New(msg)
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
}

// Problems lists every consistency problem in the scenario, sorted.
func (s *Scenario) Problems() []string {
	problems := append([]string(nil), s.problems...)
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(s.states) == 0 {
		add("states section is required")
	}
	if len(s.flows) == 0 {
		add("flows section is required")
	}

	stateIDs := make(map[string]bool, len(s.states))
	for _, st := range s.states {
		stateIDs[st.ID] = true
		if st.ID == constants.StateNonEligible && st.ResetOnFiscalYear {
			add("state %s is the rollout holding state and cannot reset_on_fiscal_year", st.Key)
		}
	}
	for _, id := range constants.RequiredStates {
		if !stateIDs[id] {
			add("missing required state %q", id)
		}
	}
	for _, f := range s.flows {
		switch {
		case f.Source == "" || f.Target == "":
			add("flow %s missing source or target", f.ID)
		default:
			if !stateIDs[f.Source] {
				add("flow %s references unknown source state %q", f.ID, f.Source)
			}
			if !stateIDs[f.Target] {
				add("flow %s references unknown target state %q", f.ID, f.Target)
			}
		}
	}

	p := s.params
	if _, err := calendar.New(p.StartDate, p.Interval, p.FiscalYearStartMonth, p.FiscalYearStartDay); err != nil {
		add("simulation: %v", err)
	}
	if p.EndDate.Before(p.StartDate) {
		add("simulation.end_date %s is before start_date %s", p.EndDate.Format(calendar.DateLayout), p.StartDate.Format(calendar.DateLayout))
	}

	for key, v := range s.flowRates {
		if v < 0 || v > 1 {
			add("flow_rates.%s = %g is outside [0, 1]", key, v)
		}
	}
	for key, d := range s.distributions {
		switch d.Type {
		case Uniform:
			if d.Max < d.Min {
				add("distributions.%s: max %g below min %g", key, d.Max, d.Min)
			}
		case Normal:
			if d.StdDev < 0 {
				add("distributions.%s: negative stddev", key)
			}
		default:
			add("distributions.%s: unknown type %q (valid: uniform, normal)", key, d.Type)
		}
		if d.Mode != Multiplicative && d.Mode != Additive {
			add("distributions.%s: unknown mode %q (valid: multiplicative, additive)", key, d.Mode)
		}
	}
	for key, c := range s.claimCosts {
		if c.AverageCost.IsNegative() {
			add("claim_costs.%s: negative average_cost", key)
		}
		if c.ProgramShare.IsNegative() || c.ProgramShare.GreaterThan(decimalOne) {
			add("claim_costs.%s: program_share must be between 0 and 1", key)
		}
	}

	for _, ph := range s.phases {
		if ph.AgeMin > ph.AgeMax {
			add("rollout phase %s: age_min %d above age_max %d", ph.ID, ph.AgeMin, ph.AgeMax)
		}
	}

	regionIDs := make(map[string]bool, len(s.regions))
	for _, r := range s.regions {
		if r.ID == "" {
			add("region with empty region_id")
		}
		if regionIDs[r.ID] {
			add("duplicate region %q", r.ID)
		}
		regionIDs[r.ID] = true
	}
	segmentIDs := make(map[string]bool, len(s.segments))
	for _, seg := range s.segments {
		if seg.ID == "" {
			add("population segment with empty segment_id")
		}
		if segmentIDs[seg.ID] {
			add("duplicate population segment %q", seg.ID)
		}
		segmentIDs[seg.ID] = true
		if !regionIDs[seg.RegionID] {
			add("segment %s references unknown region %q", seg.ID, seg.RegionID)
		}
		if seg.PopulationSize <= 0 {
			add("segment %s: population_size must be positive", seg.ID)
		}
		if seg.AgeMin > seg.AgeMax {
			add("segment %s: age_min %d above age_max %d", seg.ID, seg.AgeMin, seg.AgeMax)
		}
	}

	sort.Strings(problems)
	return problems
}
