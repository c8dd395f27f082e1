package config

import (
	"time"

	"github.com/policylab/ohbsim/internal/calendar"
	"github.com/policylab/ohbsim/internal/rollout"
	"github.com/shopspring/decimal"
)

// Provider is the read-only view of a scenario that the simulation engine queries.
type Provider interface {
	// FlowRate resolves a base rate for flow using the lookup chain
	// flow_cohort_age -> flow_cohort -> flow -> 0.
	FlowRate(flowID, cohort, ageBracket string) float64

	// Distribution returns the variation distribution configured for id and
	// cohort. ok is false when nothing is configured; the returned value is then
	// DefaultDistribution.
	Distribution(id, cohort string) (d Distribution, ok bool)

	// SeasonalFactor returns the configured factor for flow, cohort and month.
	SeasonalFactor(flowID, cohort string, month time.Month) (float64, bool)

	// ClaimCost returns the per-claim cost configured for flow and cohort.
	ClaimCost(flowID, cohort string) (ClaimCost, bool)

	StateDefinitions() []StateDefinition
	FlowDefinitions() []FlowDefinition
	RolloutSchedule() []rollout.Phase
	SimulationParameters() SimulationParameters
	Regions() []RegionDefinition
	Segments() []SegmentDefinition

	// Revision identifies the configuration contents. It changes whenever
	// any value that could affect a rate lookup changes.
	Revision() string
}

// StateDefinition describes one process state.
type StateDefinition struct {
	Key               string `json:"key" yaml:"-"`
	ID                string `json:"id" yaml:"id"`
	Name              string `json:"name" yaml:"name"`
	ResetOnFiscalYear bool   `json:"reset_on_fiscal_year" yaml:"reset_on_fiscal_year"`
}

// FlowDefinition describes a directed transition between two states.
type FlowDefinition struct {
	ID          string `json:"id" yaml:"-"`
	Source      string `json:"source" yaml:"source"`
	Target      string `json:"target" yaml:"target"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// SimulationParameters holds run-wide settings.
type SimulationParameters struct {
	StartDate            time.Time         `json:"start_date"`
	EndDate              time.Time         `json:"end_date"`
	Interval             calendar.Interval `json:"interval"`
	FiscalYearStartMonth int               `json:"fiscal_year_start_month"`
	FiscalYearStartDay   int               `json:"fiscal_year_start_day"`

	// SeasonalFallback enables the built-in seasonal curves for flows that
	// have no configured factors.
	SeasonalFallback bool `json:"seasonal_fallback"`

	// Seed drives the variation draws. Zero means "pick one at run time".
	Seed int64 `json:"seed"`
}

// RegionDefinition names a region.
type RegionDefinition struct {
	ID   string `json:"region_id" yaml:"region_id"`
	Name string `json:"region_name" yaml:"region_name"`
}

// SegmentDefinition describes one population segment.
type SegmentDefinition struct {
	ID                   string     `json:"segment_id"`
	CohortType           string     `json:"cohort_type"`
	AgeMin               int        `json:"age_min"`
	AgeMax               int        `json:"age_max"`
	AgeBracketName       string     `json:"age_bracket_name"`
	RegionID             string     `json:"region_id"`
	PopulationSize       int64      `json:"population_size"`
	EligibilityStartDate *time.Time `json:"eligibility_start_date,omitempty"`
}

// DistributionType names a variation distribution.
type DistributionType string

const (
	Uniform DistributionType = "uniform"
	Normal  DistributionType = "normal"
)

// VariationMode controls how a draw is applied to a rate.
type VariationMode string

const (
	// Multiplicative scales the rate by the draw.
	Multiplicative VariationMode = "multiplicative"
	// Additive adds the draw to the rate.
	Additive VariationMode = "additive"
)

// Distribution parameterizes rate variation.
type Distribution struct {
	Type   DistributionType `json:"type"`
	Min    float64          `json:"min,omitempty"`
	Max    float64          `json:"max,omitempty"`
	Mean   float64          `json:"mean,omitempty"`
	StdDev float64          `json:"stddev,omitempty"`
	Mode   VariationMode    `json:"mode"`
}

// DefaultDistribution is reported when no distribution is configured.
var DefaultDistribution = Distribution{Type: Uniform, Min: 0, Max: 1, Mode: Multiplicative}

// ClaimCost prices the claims produced by a flow.
type ClaimCost struct {
	AverageCost decimal.Decimal `json:"average_cost"`
	// ProgramShare is the fraction of each claim paid by the program.
	ProgramShare decimal.Decimal `json:"program_share"`
}
