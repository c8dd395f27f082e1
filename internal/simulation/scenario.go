package simulation

import (
	"github.com/policylab/ohbsim/internal/config"
)

// SegmentSpec is a flat builder for a population segment.
type SegmentSpec struct {
	ID           string
	Cohort       string
	AgeMin       int
	AgeMax       int
	AgeBracket   string
	Region       string
	Population   int64
	EligibleFrom string // YYYY-MM-DD, optional
}

// PhaseSpec is a flat builder for a rollout phase.
type PhaseSpec struct {
	ID        string
	Cohort    string
	AgeMin    int
	AgeMax    int
	StartDate string
}

// Builder assembles a scenario programmatically on top of the built-in
// defaults. It is used by tests and by callers that generate scenarios.
type Builder struct {
	name string
	tree map[string]any
}

// NewBuilder starts a scenario called name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name, tree: map[string]any{}}
}

func (b *Builder) section(name string) map[string]any {
	if m, ok := b.tree[name].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	b.tree[name] = m
	return m
}

func (b *Builder) list(name string, item map[string]any) {
	items, _ := b.tree[name].([]any)
	b.tree[name] = append(items, item)
}

// Dates sets the simulated range.
func (b *Builder) Dates(start, end string) *Builder {
	sim := b.section("simulation")
	sim["start_date"] = start
	sim["end_date"] = end
	return b
}

// Interval sets MONTHLY, QUARTERLY or ANNUAL.
func (b *Builder) Interval(interval string) *Builder {
	b.section("simulation")["time_interval"] = interval
	return b
}

// FiscalYear sets the fiscal year start.
func (b *Builder) FiscalYear(month, day int) *Builder {
	sim := b.section("simulation")
	sim["fiscal_year_start_month"] = month
	sim["fiscal_year_start_day"] = day
	return b
}

// Seed sets the seed for distribution draws.
func (b *Builder) Seed(seed int64) *Builder {
	b.section("simulation")["seed"] = seed
	return b
}

// SeasonalFallback toggles the built-in seasonal curves.
func (b *Builder) SeasonalFallback(on bool) *Builder {
	b.section("simulation")["seasonal_fallback"] = on
	return b
}

// Rate sets flow_rates[key]; key is <flow>, <flow>_<cohort> or
// <flow>_<cohort>_<age bracket>.
func (b *Builder) Rate(key string, rate float64) *Builder {
	b.section("flow_rates")[key] = rate
	return b
}

// Seasonal sets one monthly factor for flow and cohort.
func (b *Builder) Seasonal(flow, cohort string, month int, factor float64) *Builder {
	flows := b.section("seasonal_factors")
	cohorts, ok := flows[flow].(map[string]any)
	if !ok {
		cohorts = map[string]any{}
		flows[flow] = cohorts
	}
	months, ok := cohorts[cohort].(map[int]any)
	if !ok {
		months = map[int]any{}
		cohorts[cohort] = months
	}
	months[month] = factor
	return b
}

// Distribution sets distributions[key].
func (b *Builder) Distribution(key string, params map[string]any) *Builder {
	b.section("distributions")[key] = params
	return b
}

// ClaimCost sets claim_costs[key]. Amounts are decimal strings.
func (b *Builder) ClaimCost(key, averageCost, programShare string) *Builder {
	b.section("claim_costs")[key] = map[string]any{
		"average_cost":  averageCost,
		"program_share": programShare,
	}
	return b
}

// Flow adds or replaces a flow.
func (b *Builder) Flow(id, source, target string) *Builder {
	b.section("flows")[id] = map[string]any{"source": source, "target": target}
	return b
}

// State adds or replaces a state under key.
func (b *Builder) State(key, id string, resetOnFiscalYear bool) *Builder {
	b.section("states")[key] = map[string]any{"id": id, "name": id, "reset_on_fiscal_year": resetOnFiscalYear}
	return b
}

// Region adds a region.
func (b *Builder) Region(id, name string) *Builder {
	b.list("regions", map[string]any{"region_id": id, "region_name": name})
	return b
}

// Segment adds a population segment.
func (b *Builder) Segment(s SegmentSpec) *Builder {
	item := map[string]any{
		"segment_id":       s.ID,
		"cohort_type":      s.Cohort,
		"age_min":          s.AgeMin,
		"age_max":          s.AgeMax,
		"age_bracket_name": s.AgeBracket,
		"region_id":        s.Region,
		"population_size":  s.Population,
	}
	if s.EligibleFrom != "" {
		item["eligibility_start_date"] = s.EligibleFrom
	}
	b.list("population_segments", item)
	return b
}

// Phase adds a rollout phase.
func (b *Builder) Phase(p PhaseSpec) *Builder {
	b.list("rollout_schedule", map[string]any{
		"phase_id":   p.ID,
		"cohort_id":  p.Cohort,
		"age_min":    p.AgeMin,
		"age_max":    p.AgeMax,
		"start_date": p.StartDate,
	})
	return b
}

// Tree returns the overlay built so far.
func (b *Builder) Tree() map[string]any { return b.tree }

// Build merges the overlay over the built-in defaults.
func (b *Builder) Build() (*config.Scenario, error) {
	return config.NewScenario(b.name, config.Merge(config.DefaultTree(), b.tree))
}
