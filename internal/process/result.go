// Package process implements the per-period transition steps: generic
// single-hop flows, the two-stage application pipeline, and claim generation.
package process

import (
	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/population"
	"github.com/shopspring/decimal"
)

// Financial is the cost breakdown attached to a result that produced claims.
type Financial struct {
	Claims  int64           `json:"claims"`
	Total   decimal.Decimal `json:"total"`
	Program decimal.Decimal `json:"program"`
	Patient decimal.Decimal `json:"patient"`
}

// Price computes the cost of claims at the given per-claim cost. Amounts are
// rounded to cents; the patient share is the remainder so the parts always sum
// to the total.
func Price(claims int64, cost config.ClaimCost) *Financial {
	total := cost.AverageCost.Mul(decimal.NewFromInt(claims)).Round(2)
	program := total.Mul(cost.ProgramShare).Round(2)
	return &Financial{
		Claims:  claims,
		Total:   total,
		Program: program,
		Patient: total.Sub(program),
	}
}

// Result is the outcome of one transition attempt in one segment.
type Result struct {
	FlowID string `json:"flow_id"`
	Source string `json:"source"`
	Target string `json:"target"`

	SegmentID  string `json:"segment_id"`
	RegionID   string `json:"region_id"`
	Cohort     string `json:"cohort"`
	AgeBracket string `json:"age_bracket"`

	Attempted int64 `json:"attempted"`
	Success   int64 `json:"success"`
	Failure   int64 `json:"failure"`

	// RejectFlowID names the flow metric failures are recorded under.
	// Empty when failures are not tracked.
	RejectFlowID string `json:"reject_flow_id,omitempty"`

	// Financial is nil when the transition carries no cost.
	Financial *Financial `json:"financial,omitempty"`
}

// NewResult returns an empty result carrying seg's dimensions.
func NewResult(seg *population.Segment, flowID, source, target string) Result {
	return Result{
		FlowID:     flowID,
		Source:     source,
		Target:     target,
		SegmentID:  seg.ID,
		RegionID:   seg.RegionID,
		Cohort:     seg.Cohort,
		AgeBracket: seg.Age.Name,
	}
}
