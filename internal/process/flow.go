package process

import (
	"github.com/policylab/ohbsim/internal/calendar"
	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/constants"
	"github.com/policylab/ohbsim/internal/population"
	"github.com/policylab/ohbsim/internal/rates"
)

// GenericFlow moves round(source x rate) people along a configured flow.
type GenericFlow struct {
	def config.FlowDefinition
	env Env
}

// NewGenericFlow creates a step for def.
func NewGenericFlow(def config.FlowDefinition, env Env) *GenericFlow {
	return &GenericFlow{def: def, env: env}
}

// ID returns the flow id.
func (f *GenericFlow) ID() string { return f.def.ID }

// Execute applies the flow to every segment. Segments where nobody moves
// produce no result.
func (f *GenericFlow) Execute(segments []*population.Segment, cal *calendar.Calendar) ([]Result, error) {
	var results []Result
	for _, seg := range segments {
		if !seg.Ledger.Has(f.def.Source) || !seg.Ledger.Has(f.def.Target) {
			f.env.logger().Warn("flow references unknown state", "flow", f.def.ID, "segment", seg.ID,
				"source", f.def.Source, "target", f.def.Target)
			continue
		}
		available := seg.Ledger.Get(f.def.Source)
		rate := f.env.Resolver.Rate(seg, f.def.ID, cal.Current(), rates.Flat)
		requested := rates.Amount(available, rate)
		moved := seg.Ledger.Transfer(f.def.Source, f.def.Target, requested)
		if moved <= 0 {
			continue
		}

		r := NewResult(seg, f.def.ID, f.def.Source, f.def.Target)
		r.Attempted = requested
		r.Success = moved
		f.env.price(&r, f.def.ID, moved)
		f.env.trace(cal, r)
		results = append(results, r)
	}
	return results, nil
}

// ClaimGenerator produces subsequent claims from active claimants. It prices
// claims but moves nobody.
type ClaimGenerator struct {
	env Env
}

// NewClaimGenerator creates the claim step.
func NewClaimGenerator(env Env) *ClaimGenerator {
	return &ClaimGenerator{env: env}
}

// ID returns the subsequent-claims flow id.
func (g *ClaimGenerator) ID() string { return constants.FlowNewSubsequentClaims }

// Execute emits one result per segment with at least one claim.
func (g *ClaimGenerator) Execute(segments []*population.Segment, cal *calendar.Calendar) ([]Result, error) {
	var results []Result
	for _, seg := range segments {
		if !seg.Ledger.Has(constants.StateActiveClaimant) {
			continue
		}
		active := seg.Ledger.Get(constants.StateActiveClaimant)
		if active == 0 {
			continue
		}
		rate := g.env.Resolver.Rate(seg, constants.FlowNewSubsequentClaims, cal.Current(), rates.Flat)
		claims := rates.Amount(active, rate)
		if claims == 0 {
			continue
		}

		r := NewResult(seg, constants.FlowNewSubsequentClaims, constants.StateActiveClaimant, constants.StateActiveClaimant)
		r.Attempted = active
		r.Success = claims
		g.env.price(&r, constants.FlowNewSubsequentClaims, claims)
		g.env.trace(cal, r)
		results = append(results, r)
	}
	return results, nil
}
