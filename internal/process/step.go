package process

import (
	"log/slog"

	"github.com/policylab/ohbsim/internal/calendar"
	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/constants"
	"github.com/policylab/ohbsim/internal/logging"
	"github.com/policylab/ohbsim/internal/population"
	"github.com/policylab/ohbsim/internal/rates"
)

// Step is one unit of per-period work over every segment.
type Step interface {
	ID() string
	Execute(segments []*population.Segment, cal *calendar.Calendar) ([]Result, error)
}

// Env carries the collaborators shared by all steps.
type Env struct {
	Provider config.Provider
	Resolver *rates.Resolver
	Logger   *slog.Logger
	Trace    *logging.TraceLogger
}

func (e Env) logger() *slog.Logger { return logging.OrDiscard(e.Logger) }

// price attaches a cost breakdown to r when flowID has a configured claim cost.
func (e Env) price(r *Result, flowID string, claims int64) {
	if claims <= 0 {
		return
	}
	if cost, ok := e.Provider.ClaimCost(flowID, r.Cohort); ok {
		r.Financial = Price(claims, cost)
	}
}

func (e Env) trace(cal *calendar.Calendar, r Result) {
	e.Trace.Log(logging.TransitionEvent{
		Period:    cal.PeriodLabel(),
		Segment:   r.SegmentID,
		Flow:      r.FlowID,
		From:      r.Source,
		To:        r.Target,
		Attempted: r.Attempted,
		Moved:     r.Success,
		Rejected:  r.Failure,
	})
}

// notGeneric lists flow ids handled by dedicated steps.
var notGeneric = map[string]bool{
	constants.FlowNewSubsequentClaims: true,
}

// Plan returns the ordered steps for one period: the application pipeline,
// then each remaining configured flow, then claim generation.
func Plan(env Env) []Step {
	steps := []Step{NewApplicationPipeline(env)}
	for _, def := range env.Provider.FlowDefinitions() {
		if constants.PipelineFlows[def.ID] || notGeneric[def.ID] {
			continue
		}
		steps = append(steps, NewGenericFlow(def, env))
	}
	return append(steps, NewClaimGenerator(env))
}
