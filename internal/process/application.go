package process

import (
	"fmt"
	"math"

	"github.com/policylab/ohbsim/internal/calendar"
	"github.com/policylab/ohbsim/internal/constants"
	"github.com/policylab/ohbsim/internal/population"
	"github.com/policylab/ohbsim/internal/rates"
)

// ApplicationGenerator moves people into applied from eligible and from
// re_enrollment_eligible, each under its own flow id and rate.
type ApplicationGenerator struct {
	env Env
}

// NewApplicationGenerator creates the generation stage.
func NewApplicationGenerator(env Env) *ApplicationGenerator {
	return &ApplicationGenerator{env: env}
}

// ID returns the first-time application flow id.
func (g *ApplicationGenerator) ID() string { return constants.FlowNewApplications }

// Execute generates applications in every segment.
func (g *ApplicationGenerator) Execute(segments []*population.Segment, cal *calendar.Calendar) ([]Result, error) {
	var results []Result
	for _, seg := range segments {
		for _, src := range []struct{ flow, state string }{
			{constants.FlowNewApplications, constants.StateEligible},
			{constants.FlowNewReEnrollmentApplications, constants.StateReEnrollmentEligible},
		} {
			available := seg.Ledger.Get(src.state)
			if available == 0 {
				continue
			}
			rate := g.env.Resolver.Rate(seg, src.flow, cal.Current(), rates.Generation)
			requested := rates.Amount(available, rate)
			moved := seg.Ledger.Transfer(src.state, constants.StateApplied, requested)
			if moved <= 0 {
				continue
			}

			r := NewResult(seg, src.flow, src.state, constants.StateApplied)
			r.Attempted = requested
			r.Success = moved
			g.env.trace(cal, r)
			results = append(results, r)
		}
	}
	return results, nil
}

// ApplicationProcessor approves or rejects the applied population. Applicants
// are split by provenance using the eligible : re_enrollment_eligible ratio
// captured before generation ran.
type ApplicationProcessor struct {
	env        Env
	provenance map[string]float64
}

// NewApplicationProcessor creates the processing stage.
func NewApplicationProcessor(env Env) *ApplicationProcessor {
	return &ApplicationProcessor{env: env, provenance: make(map[string]float64)}
}

// ID returns the first-time enrollment flow id.
func (p *ApplicationProcessor) ID() string { return constants.FlowNewEnrollments }

// CaptureProvenance records each segment's share of first-time applicants.
// It must run before the generation stage of the same period.
func (p *ApplicationProcessor) CaptureProvenance(segments []*population.Segment) {
	for _, seg := range segments {
		p.provenance[seg.ID] = originalShare(
			seg.Ledger.Get(constants.StateEligible),
			seg.Ledger.Get(constants.StateReEnrollmentEligible),
		)
	}
}

// originalShare is eligible / (eligible + reEnroll), or 1 when both are zero.
func originalShare(eligible, reEnroll int64) float64 {
	total := eligible + reEnroll
	if total == 0 {
		return 1
	}
	return float64(eligible) / float64(total)
}

// Execute processes every segment's applied population.
func (p *ApplicationProcessor) Execute(segments []*population.Segment, cal *calendar.Calendar) ([]Result, error) {
	var results []Result
	for _, seg := range segments {
		applied := seg.Ledger.Get(constants.StateApplied)
		if applied == 0 {
			continue
		}

		share, ok := p.provenance[seg.ID]
		if !ok {
			share = 1
		}
		original := int64(math.RoundToEven(float64(applied) * share))
		if original > applied {
			original = applied
		}
		groups := []struct {
			count              int64
			flow, reject, back string
		}{
			{original, constants.FlowNewEnrollments, constants.FlowRejectedApplications, constants.StateEligible},
			{applied - original, constants.FlowNewReEnrollment, constants.FlowRejectedReEnrollments, constants.StateReEnrollmentEligible},
		}

		for _, g := range groups {
			if g.count <= 0 {
				continue
			}
			rate := p.env.Resolver.Rate(seg, g.flow, cal.Current(), rates.Approval)
			approved := seg.Ledger.Transfer(constants.StateApplied, constants.StateEnrolledInactive, rates.Amount(g.count, rate))
			rejected := seg.Ledger.Transfer(constants.StateApplied, g.back, g.count-approved)
			if approved+rejected != g.count {
				return results, fmt.Errorf("segment %s: processed %d of %d %s applicants", seg.ID, approved+rejected, g.count, g.flow)
			}

			r := NewResult(seg, g.flow, constants.StateApplied, constants.StateEnrolledInactive)
			r.Attempted = g.count
			r.Success = approved
			r.Failure = rejected
			r.RejectFlowID = g.reject
			p.env.trace(cal, r)
			results = append(results, r)
		}
	}
	return results, nil
}

// ApplicationPipeline runs provenance capture, generation and processing in
// that order.
type ApplicationPipeline struct {
	generator *ApplicationGenerator
	processor *ApplicationProcessor
}

// NewApplicationPipeline wires both stages over env.
func NewApplicationPipeline(env Env) *ApplicationPipeline {
	return &ApplicationPipeline{
		generator: NewApplicationGenerator(env),
		processor: NewApplicationProcessor(env),
	}
}

// ID names the pipeline.
func (p *ApplicationPipeline) ID() string { return "application_pipeline" }

// Execute returns generation results followed by processing results.
func (p *ApplicationPipeline) Execute(segments []*population.Segment, cal *calendar.Calendar) ([]Result, error) {
	p.processor.CaptureProvenance(segments)

	generated, err := p.generator.Execute(segments, cal)
	if err != nil {
		return nil, fmt.Errorf("generating applications: %w", err)
	}
	processed, err := p.processor.Execute(segments, cal)
	if err != nil {
		return nil, fmt.Errorf("processing applications: %w", err)
	}
	return append(generated, processed...), nil
}
