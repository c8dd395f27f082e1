// Package rollout decides program eligibility from a phased rollout schedule.
package rollout

import (
	"sort"
	"time"

	"github.com/policylab/ohbsim/internal/constants"
)

// Phase activates eligibility for a cohort and age range from a given date.
type Phase struct {
	ID          string    `json:"phase_id" yaml:"phase_id"`
	CohortID    string    `json:"cohort_id" yaml:"cohort_id"`
	AgeMin      int       `json:"age_min" yaml:"age_min"`
	AgeMax      int       `json:"age_max" yaml:"age_max"`
	StartDate   time.Time `json:"start_date" yaml:"start_date"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
}

// IsActive reports whether the phase has started on or before date.
func (p Phase) IsActive(date time.Time) bool {
	return !date.Before(p.StartDate)
}

// Matches reports whether the phase covers cohort and age. A phase for the
// wildcard cohort matches every cohort.
func (p Phase) Matches(cohort string, age int) bool {
	if p.CohortID != cohort && p.CohortID != constants.DefaultCohort {
		return false
	}
	return age >= p.AgeMin && age <= p.AgeMax
}

// AgeRange is an inclusive [Min, Max] pair.
type AgeRange struct {
	Min int
	Max int
}

// Gate evaluates eligibility against an unordered set of phases.
type Gate struct {
	phases []Phase
}

// NewGate builds a gate from phases. With no phases the gate falls back to a
// single default phase making every cohort and age eligible from defaultStart.
func NewGate(phases []Phase, defaultStart time.Time) *Gate {
	if len(phases) == 0 {
		return &Gate{phases: []Phase{{
			ID:          constants.DefaultPhaseID,
			CohortID:    constants.DefaultCohort,
			AgeMin:      0,
			AgeMax:      constants.MaxAge,
			StartDate:   defaultStart,
			Description: "Default rollout (all cohorts eligible)",
		}}}
	}
	cp := make([]Phase, len(phases))
	copy(cp, phases)
	return &Gate{phases: cp}
}

// Phases returns a copy of the configured phases.
func (g *Gate) Phases() []Phase {
	cp := make([]Phase, len(g.phases))
	copy(cp, g.phases)
	return cp
}

// IsDefault reports whether the gate is running on the fallback phase.
func (g *Gate) IsDefault() bool {
	return len(g.phases) == 1 && g.phases[0].ID == constants.DefaultPhaseID
}

// EligibleCohorts returns the sorted cohort ids with at least one active phase.
func (g *Gate) EligibleCohorts(date time.Time) []string {
	seen := make(map[string]bool)
	var cohorts []string
	for _, p := range g.phases {
		if p.IsActive(date) && !seen[p.CohortID] {
			seen[p.CohortID] = true
			cohorts = append(cohorts, p.CohortID)
		}
	}
	sort.Strings(cohorts)
	return cohorts
}

// EligibleAgeRanges returns the age ranges of active phases for cohort.
func (g *Gate) EligibleAgeRanges(cohort string, date time.Time) []AgeRange {
	var ranges []AgeRange
	for _, p := range g.phases {
		if p.IsActive(date) && (p.CohortID == cohort || p.CohortID == constants.DefaultCohort) {
			ranges = append(ranges, AgeRange{Min: p.AgeMin, Max: p.AgeMax})
		}
	}
	return ranges
}

// IsEligible reports whether some active phase covers cohort and age on date.
func (g *Gate) IsEligible(cohort string, age int, date time.Time) bool {
	for _, p := range g.phases {
		if p.IsActive(date) && p.Matches(cohort, age) {
			return true
		}
	}
	return false
}

// PhasesByCohort returns the phases configured for cohort.
func (g *Gate) PhasesByCohort(cohort string) []Phase {
	var out []Phase
	for _, p := range g.phases {
		if p.CohortID == cohort {
			out = append(out, p)
		}
	}
	return out
}

// NextActivation returns the earliest phase start after date that would make
// cohort and age eligible. ok is false when no such phase exists.
func (g *Gate) NextActivation(cohort string, age int, after time.Time) (next time.Time, ok bool) {
	for _, p := range g.phases {
		if !p.Matches(cohort, age) || !p.StartDate.After(after) {
			continue
		}
		if !ok || p.StartDate.Before(next) {
			next = p.StartDate
			ok = true
		}
	}
	return next, ok
}
