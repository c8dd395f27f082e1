package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/policylab/ohbsim/internal/calendar"
	"github.com/policylab/ohbsim/internal/constants"
	"github.com/policylab/ohbsim/internal/pathutil"
	"github.com/policylab/ohbsim/internal/rollout"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// File layout of a configuration directory.
const (
	BaseConfigFile = "base_config.yaml"
	ScenariosDir   = "scenarios"
)

// ErrScenarioNotFound is returned when a named scenario file does not exist.
var ErrScenarioNotFound = errors.New("scenario not found")

// document mirrors the YAML layout of a merged scenario.
type document struct {
	Simulation      simulationSection                     `yaml:"simulation"`
	States          map[string]StateDefinition            `yaml:"states"`
	Flows           map[string]FlowDefinition             `yaml:"flows"`
	FlowRates       map[string]float64                    `yaml:"flow_rates"`
	Distributions   map[string]distributionSpec           `yaml:"distributions"`
	SeasonalFactors map[string]map[string]map[int]float64 `yaml:"seasonal_factors"`
	ClaimCosts      map[string]claimCostSpec              `yaml:"claim_costs"`
	RolloutSchedule []phaseSpec                           `yaml:"rollout_schedule"`
	Regions         []RegionDefinition                    `yaml:"regions"`
	Segments        []segmentSpec                         `yaml:"population_segments"`
}

type simulationSection struct {
	StartDate            string `yaml:"start_date"`
	EndDate              string `yaml:"end_date"`
	TimeInterval         string `yaml:"time_interval"`
	FiscalYearStartMonth int    `yaml:"fiscal_year_start_month"`
	FiscalYearStartDay   int    `yaml:"fiscal_year_start_day"`
	SeasonalFallback     *bool  `yaml:"seasonal_fallback"`
	Seed                 int64  `yaml:"seed"`
}

type distributionSpec struct {
	Type   string             `yaml:"type"`
	Min    *float64           `yaml:"min"`
	Max    *float64           `yaml:"max"`
	Mean   *float64           `yaml:"mean"`
	StdDev *float64           `yaml:"stddev"`
	Mode   string             `yaml:"mode"`
	Params map[string]float64 `yaml:"params"`
}

type claimCostSpec struct {
	AverageCost  decimal.Decimal `yaml:"average_cost"`
	ProgramShare decimal.Decimal `yaml:"program_share"`
}

type phaseSpec struct {
	PhaseID     string `yaml:"phase_id"`
	CohortID    string `yaml:"cohort_id"`
	AgeMin      int    `yaml:"age_min"`
	AgeMax      int    `yaml:"age_max"`
	StartDate   string `yaml:"start_date"`
	Description string `yaml:"description"`
}

type segmentSpec struct {
	SegmentID            string `yaml:"segment_id"`
	CohortType           string `yaml:"cohort_type"`
	AgeMin               int    `yaml:"age_min"`
	AgeMax               int    `yaml:"age_max"`
	AgeBracketName       string `yaml:"age_bracket_name"`
	RegionID             string `yaml:"region_id"`
	PopulationSize       int64  `yaml:"population_size"`
	EligibilityStartDate string `yaml:"eligibility_start_date"`
}

// Scenario is a merged, decoded configuration. It implements Provider and is
// immutable once built.
type Scenario struct {
	name     string
	tree     map[string]any
	revision string
	problems []string

	params        SimulationParameters
	states        []StateDefinition
	flows         []FlowDefinition
	flowRates     map[string]float64
	distributions map[string]Distribution
	seasonal      map[string]map[string]map[time.Month]float64
	claimCosts    map[string]ClaimCost
	phases        []rollout.Phase
	regions       []RegionDefinition
	segments      []SegmentDefinition
}

var _ Provider = (*Scenario)(nil)

// Load reads dir/base_config.yaml (the built-in defaults stand in when it is
// absent) and, if name is not empty, overlays dir/scenarios/<name>.yaml.
func Load(dir, name string) (*Scenario, error) {
	tree, err := readTree(filepath.Join(dir, BaseConfigFile))
	switch {
	case errors.Is(err, os.ErrNotExist):
		tree = DefaultTree()
	case err != nil:
		return nil, err
	case tree == nil:
		tree = make(map[string]any)
	}

	if name != "" {
		if err := checkScenarioName(dir, name); err != nil {
			return nil, err
		}
		overlay, err := readTree(ScenarioPath(dir, name))
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrScenarioNotFound, name)
		}
		if err != nil {
			return nil, err
		}
		Merge(tree, overlay)
	}

	return NewScenario(name, tree)
}

// Parse builds a scenario from YAML documents applied in order over the
// built-in defaults.
func Parse(name string, docs ...[]byte) (*Scenario, error) {
	tree := DefaultTree()
	for i, data := range docs {
		var overlay map[string]any
		if err := yaml.Unmarshal(data, &overlay); err != nil {
			return nil, fmt.Errorf("parsing document %d: %w", i, err)
		}
		Merge(tree, overlay)
	}
	return NewScenario(name, tree)
}

// ScenarioPath returns the file path of scenario name inside dir.
func ScenarioPath(dir, name string) string {
	return filepath.Join(dir, ScenariosDir, name+".yaml")
}

// checkScenarioName rejects names that would address a file outside
// dir/scenarios.
func checkScenarioName(dir, name string) error {
	if err := pathutil.ValidateName(name); err != nil {
		return fmt.Errorf("scenario: %w", err)
	}
	if err := pathutil.Within(ScenarioPath(dir, name), filepath.Join(dir, ScenariosDir)); err != nil {
		return fmt.Errorf("scenario %s: %w", name, err)
	}
	return nil
}

// ListScenarios returns the sorted names of dir/scenarios/*.yaml.
// A missing scenarios directory yields an empty list.
func ListScenarios(dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(dir, ScenariosDir))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing scenarios: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names, nil
}

func readTree(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", pathutil.RedactPath(path), err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", pathutil.RedactPath(path), err)
	}
	return tree, nil
}

// NewScenario decodes a merged configuration tree. Structural problems (wrong
// types, unparseable dates) are returned as errors; semantic problems are
// collected for Validate.
func NewScenario(name string, tree map[string]any) (*Scenario, error) {
	data, err := yaml.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encoding merged configuration: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}

	sum := sha256.Sum256(data)
	s := &Scenario{
		name:          name,
		tree:          tree,
		revision:      hex.EncodeToString(sum[:]),
		flowRates:     doc.FlowRates,
		distributions: make(map[string]Distribution, len(doc.Distributions)),
		seasonal:      make(map[string]map[string]map[time.Month]float64, len(doc.SeasonalFactors)),
		claimCosts:    make(map[string]ClaimCost, len(doc.ClaimCosts)),
		regions:       doc.Regions,
	}
	if s.flowRates == nil {
		s.flowRates = make(map[string]float64)
	}

	if err := s.decodeSimulation(doc.Simulation); err != nil {
		return nil, err
	}
	s.decodeStates(doc.States)
	s.decodeFlows(doc.Flows)

	for id, spec := range doc.Distributions {
		s.distributions[id] = spec.toDistribution()
	}
	for flow, byCohort := range doc.SeasonalFactors {
		m := make(map[string]map[time.Month]float64, len(byCohort))
		for cohort, months := range byCohort {
			mm := make(map[time.Month]float64, len(months))
			for month, f := range months {
				if month < 1 || month > 12 {
					s.problems = append(s.problems, fmt.Sprintf("seasonal_factors.%s.%s: month %d out of range", flow, cohort, month))
					continue
				}
				mm[time.Month(month)] = f
			}
			m[cohort] = mm
		}
		s.seasonal[flow] = m
	}
	for id, spec := range doc.ClaimCosts {
		s.claimCosts[id] = ClaimCost{AverageCost: spec.AverageCost, ProgramShare: spec.ProgramShare}
	}

	for i, p := range doc.RolloutSchedule {
		start, err := calendar.ParseDate(p.StartDate)
		if err != nil {
			return nil, fmt.Errorf("rollout_schedule[%d]: %w", i, err)
		}
		s.phases = append(s.phases, rollout.Phase{
			ID:          p.PhaseID,
			CohortID:    p.CohortID,
			AgeMin:      p.AgeMin,
			AgeMax:      p.AgeMax,
			StartDate:   start,
			Description: p.Description,
		})
	}

	for i, seg := range doc.Segments {
		def := SegmentDefinition{
			ID:             seg.SegmentID,
			CohortType:     seg.CohortType,
			AgeMin:         seg.AgeMin,
			AgeMax:         seg.AgeMax,
			AgeBracketName: seg.AgeBracketName,
			RegionID:       seg.RegionID,
			PopulationSize: seg.PopulationSize,
		}
		if seg.EligibilityStartDate != "" {
			d, err := calendar.ParseDate(seg.EligibilityStartDate)
			if err != nil {
				return nil, fmt.Errorf("population_segments[%d]: %w", i, err)
			}
			def.EligibilityStartDate = &d
		}
		s.segments = append(s.segments, def)
	}

	return s, nil
}

func (s *Scenario) decodeSimulation(sec simulationSection) error {
	p := SimulationParameters{
		FiscalYearStartMonth: sec.FiscalYearStartMonth,
		FiscalYearStartDay:   sec.FiscalYearStartDay,
		SeasonalFallback:     sec.SeasonalFallback == nil || *sec.SeasonalFallback,
		Seed:                 sec.Seed,
		Interval:             calendar.Monthly,
	}
	if p.FiscalYearStartMonth == 0 {
		p.FiscalYearStartMonth = constants.DefaultFiscalYearStartMonth
	}
	if p.FiscalYearStartDay == 0 {
		p.FiscalYearStartDay = constants.DefaultFiscalYearStartDay
	}

	if sec.TimeInterval == "" {
		s.problems = append(s.problems, "simulation.time_interval is required")
	} else if iv, err := calendar.ParseInterval(sec.TimeInterval); err != nil {
		s.problems = append(s.problems, "simulation.time_interval: "+err.Error())
	} else {
		p.Interval = iv
	}

	if sec.StartDate == "" {
		sec.StartDate = DefaultStartDate
	}
	if sec.EndDate == "" {
		sec.EndDate = DefaultEndDate
	}
	var err error
	if p.StartDate, err = calendar.ParseDate(sec.StartDate); err != nil {
		return fmt.Errorf("simulation.start_date: %w", err)
	}
	if p.EndDate, err = calendar.ParseDate(sec.EndDate); err != nil {
		return fmt.Errorf("simulation.end_date: %w", err)
	}
	s.params = p
	return nil
}

func (s *Scenario) decodeStates(states map[string]StateDefinition) {
	keys := make([]string, 0, len(states))
	for k := range states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		d := states[k]
		d.Key = k
		if d.ID == "" {
			d.ID = k
		}
		if seen[d.ID] {
			s.problems = append(s.problems, fmt.Sprintf("states.%s: duplicate state id %q", k, d.ID))
			continue
		}
		seen[d.ID] = true
		if d.Name == "" {
			d.Name = d.ID
		}
		s.states = append(s.states, d)
	}
}

func (s *Scenario) decodeFlows(flows map[string]FlowDefinition) {
	ids := make([]string, 0, len(flows))
	for id := range flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		f := flows[id]
		if f.ID == "" {
			f.ID = id
		}
		s.flows = append(s.flows, f)
	}
}

func (d distributionSpec) toDistribution() Distribution {
	pick := func(field *float64, keys ...string) float64 {
		if field != nil {
			return *field
		}
		for _, k := range keys {
			if v, ok := d.Params[k]; ok {
				return v
			}
		}
		return 0
	}
	out := Distribution{
		Type:   DistributionType(strings.ToLower(d.Type)),
		Min:    pick(d.Min, "min"),
		Max:    pick(d.Max, "max"),
		Mean:   pick(d.Mean, "mean"),
		StdDev: pick(d.StdDev, "stddev", "std", "std_dev"),
		Mode:   VariationMode(strings.ToLower(d.Mode)),
	}
	if out.Type == "" {
		out.Type = Uniform
	}
	if out.Mode == "" {
		out.Mode = Multiplicative
	}
	return out
}

// Name returns the scenario name ("" for the base configuration).
func (s *Scenario) Name() string { return s.name }

// Revision returns the sha256 of the merged configuration.
func (s *Scenario) Revision() string { return s.revision }

// YAML renders the merged configuration.
func (s *Scenario) YAML() ([]byte, error) { return yaml.Marshal(s.tree) }

// FlowRate implements Provider.
func (s *Scenario) FlowRate(flowID, cohort, ageBracket string) float64 {
	for _, key := range []string{flowID + "_" + cohort + "_" + ageBracket, flowID + "_" + cohort, flowID} {
		if v, ok := s.flowRates[key]; ok {
			return v
		}
	}
	return 0
}

// Distribution implements Provider.
func (s *Scenario) Distribution(id, cohort string) (Distribution, bool) {
	if d, ok := s.distributions[id+"_"+cohort]; ok {
		return d, true
	}
	if d, ok := s.distributions[id]; ok {
		return d, true
	}
	return DefaultDistribution, false
}

// SeasonalFactor implements Provider. A cohort table takes precedence over
// the flow's "default" table.
func (s *Scenario) SeasonalFactor(flowID, cohort string, month time.Month) (float64, bool) {
	byCohort, ok := s.seasonal[flowID]
	if !ok {
		return 0, false
	}
	for _, key := range []string{cohort, "default"} {
		if f, ok := byCohort[key][month]; ok {
			return f, true
		}
	}
	return 0, false
}

// ClaimCost implements Provider.
func (s *Scenario) ClaimCost(flowID, cohort string) (ClaimCost, bool) {
	if c, ok := s.claimCosts[flowID+"_"+cohort]; ok {
		return c, true
	}
	c, ok := s.claimCosts[flowID]
	return c, ok
}

// StateDefinitions implements Provider.
func (s *Scenario) StateDefinitions() []StateDefinition {
	return append([]StateDefinition(nil), s.states...)
}

// FlowDefinitions implements Provider. Flows are ordered by id.
func (s *Scenario) FlowDefinitions() []FlowDefinition {
	return append([]FlowDefinition(nil), s.flows...)
}

// RolloutSchedule implements Provider.
func (s *Scenario) RolloutSchedule() []rollout.Phase {
	return append([]rollout.Phase(nil), s.phases...)
}

// SimulationParameters implements Provider.
func (s *Scenario) SimulationParameters() SimulationParameters { return s.params }

// Regions implements Provider.
func (s *Scenario) Regions() []RegionDefinition {
	return append([]RegionDefinition(nil), s.regions...)
}

// Segments implements Provider.
func (s *Scenario) Segments() []SegmentDefinition {
	return append([]SegmentDefinition(nil), s.segments...)
}
