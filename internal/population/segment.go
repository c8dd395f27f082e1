package population

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/constants"
	"github.com/policylab/ohbsim/internal/rollout"
)

// AgeBracket is an inclusive age range.
type AgeBracket struct {
	Min  int
	Max  int
	Name string

	// EligibleFrom, when set, is a date before which the bracket is never
	// eligible regardless of the rollout schedule.
	EligibleFrom *time.Time
}

// Midpoint is the representative age used for rollout checks.
func (b AgeBracket) Midpoint() int { return (b.Min + b.Max) / 2 }

// Contains reports whether age falls within the bracket.
func (b AgeBracket) Contains(age int) bool { return age >= b.Min && age <= b.Max }

// EligibleOn reports whether the bracket's own start date has passed.
func (b AgeBracket) EligibleOn(date time.Time) bool {
	return b.EligibleFrom == nil || !date.Before(*b.EligibleFrom)
}

func (b AgeBracket) String() string {
	if b.Max >= 100 {
		return fmt.Sprintf("%s (%d+)", b.Name, b.Min)
	}
	return fmt.Sprintf("%s (%d-%d)", b.Name, b.Min, b.Max)
}

// Segment is a cohort, age bracket and region combination with its own ledger.
type Segment struct {
	ID             string
	Cohort         string
	Age            AgeBracket
	RegionID       string
	PopulationSize int64
	Ledger         *Ledger

	originalEligible int64
	captured         bool
	gated            bool
}

// NewSegment builds a segment and places its whole population in eligible.
func NewSegment(def config.SegmentDefinition, states []config.StateDefinition, logger *slog.Logger) *Segment {
	s := &Segment{
		ID:     def.ID,
		Cohort: def.CohortType,
		Age: AgeBracket{
			Min:          def.AgeMin,
			Max:          def.AgeMax,
			Name:         def.AgeBracketName,
			EligibleFrom: def.EligibilityStartDate,
		},
		RegionID:       def.RegionID,
		PopulationSize: def.PopulationSize,
		Ledger:         NewLedger(def.ID, states, logger),
	}
	s.Ledger.Set(constants.StateEligible, def.PopulationSize)
	return s
}

// Validate returns an error naming any canonical state the segment lacks.
func (s *Segment) Validate() error {
	if missing := s.Ledger.Missing(constants.RequiredStates); len(missing) > 0 {
		return fmt.Errorf("segment %s missing states %v", s.ID, missing)
	}
	return nil
}

// CaptureOriginalEligible records the eligible population for later
// restoration. Only the first call has any effect.
func (s *Segment) CaptureOriginalEligible() {
	if s.captured {
		return
	}
	s.originalEligible = s.Ledger.Get(constants.StateEligible)
	s.captured = true
}

// OriginalEligible returns the captured eligible population.
func (s *Segment) OriginalEligible() int64 { return s.originalEligible }

// Gated reports whether the segment's eligible population is being held back.
func (s *Segment) Gated() bool { return s.gated }

// IsEligible combines the bracket's own start date with the rollout gate.
func (s *Segment) IsEligible(gate *rollout.Gate, date time.Time) bool {
	return s.Age.EligibleOn(date) && gate.IsEligible(s.Cohort, s.Age.Midpoint(), date)
}

// Hold moves the eligible population into the non-eligible holding state and
// marks the segment gated. It returns the number moved.
func (s *Segment) Hold() int64 {
	s.CaptureOriginalEligible()
	moved := s.Ledger.Transfer(constants.StateEligible, constants.StateNonEligible, s.Ledger.Get(constants.StateEligible))
	s.gated = true
	return moved
}

// Release returns the captured eligible population from the holding state and
// clears the gated flag. It returns the number restored.
func (s *Segment) Release() int64 {
	if !s.gated {
		return 0
	}
	restored := s.Ledger.Transfer(constants.StateNonEligible, constants.StateEligible, s.originalEligible)
	s.gated = false
	return restored
}

// Region owns a set of segments.
type Region struct {
	ID       string
	Name     string
	Segments []*Segment
}

// NewRegion creates a region holding the segments whose RegionID matches id.
func NewRegion(def config.RegionDefinition, segments []config.SegmentDefinition, states []config.StateDefinition, logger *slog.Logger) *Region {
	r := &Region{ID: def.ID, Name: def.Name}
	for _, sd := range segments {
		if sd.RegionID != def.ID {
			continue
		}
		r.Segments = append(r.Segments, NewSegment(sd, states, logger))
	}
	return r
}

// Population returns the total population across the region's segments.
func (r *Region) Population() int64 {
	var total int64
	for _, s := range r.Segments {
		total += s.PopulationSize
	}
	return total
}

// StatePopulation sums state id across the region's segments.
func (r *Region) StatePopulation(id string) int64 {
	var total int64
	for _, s := range r.Segments {
		if s.Ledger.Has(id) {
			total += s.Ledger.Get(id)
		}
	}
	return total
}
