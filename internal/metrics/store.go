package metrics

import (
	"fmt"
	"sync"

	"github.com/policylab/ohbsim/internal/constants"
	"github.com/policylab/ohbsim/internal/population"
	"github.com/policylab/ohbsim/internal/process"
)

// Store is an append-only list of records plus a lookup index. Writers are
// the simulation loop; readers may run concurrently.
type Store struct {
	mu      sync.RWMutex
	records []Record
	index   map[Key]int
	periods []string

	statesDone  map[string]bool
	resultsDone map[string]bool
	derivedDone map[string]bool

	// dims lists every dimension combination seen in a period's state records.
	dims map[string][]Dimensions
	// claims counts priced claims per period and dimensions; it feeds
	// expenditure_per_claim and is not itself recorded.
	claims map[string]accumulator

	fiscalYear string
	cumulative moneyAccumulator
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		index:       make(map[Key]int),
		statesDone:  make(map[string]bool),
		resultsDone: make(map[string]bool),
		derivedDone: make(map[string]bool),
		dims:        make(map[string][]Dimensions),
		claims:      make(map[string]accumulator),
		cumulative:  make(moneyAccumulator),
	}
}

func segmentDims(s *population.Segment) Dimensions {
	return Dimensions{Region: s.RegionID, Cohort: s.Cohort, AgeBracket: s.Age.Name, Segment: s.ID}
}

func resultDims(r process.Result) Dimensions {
	return Dimensions{Region: r.RegionID, Cohort: r.Cohort, AgeBracket: r.AgeBracket, Segment: r.SegmentID}
}

// append adds rec. Callers hold mu.
func (s *Store) append(rec Record) {
	if _, seen := s.index[rec.Key()]; !seen && !s.knownPeriod(rec.Period) {
		s.periods = append(s.periods, rec.Period)
	}
	s.index[rec.Key()] = len(s.records)
	s.records = append(s.records, rec)
}

func (s *Store) knownPeriod(p string) bool {
	for _, q := range s.periods {
		if q == p {
			return true
		}
	}
	return false
}

// RecordStates snapshots every state of every segment under period, with
// region, cohort, age bracket and overall rollups. A period can be recorded
// only once.
func (s *Store) RecordStates(period string, segments []*population.Segment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.statesDone[period] {
		return fmt.Errorf("states for period %s already recorded", period)
	}
	s.statesDone[period] = true

	acc := make(accumulator)
	for _, seg := range segments {
		d := segmentDims(seg)
		for _, st := range seg.Ledger.States() {
			acc.add(st.ID, d, float64(st.Population()))
		}
	}

	seen := make(map[Dimensions]bool)
	for _, k := range acc.sorted() {
		s.append(Record{Type: constants.MetricTypeState, ID: k.id, Period: period, Dimensions: k.Dimensions, Value: acc[k]})
		if !seen[k.Dimensions] {
			seen[k.Dimensions] = true
			s.dims[period] = append(s.dims[period], k.Dimensions)
		}
	}
	return nil
}

// RecordResults records the period's flow counts and expenditures. Rejections
// are recorded under the result's RejectFlowID. Cumulative expenditure runs
// per fiscal year and restarts when fiscalYear changes. A period can be
// recorded only once.
func (s *Store) RecordResults(period, fiscalYear string, results []process.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resultsDone[period] {
		return fmt.Errorf("results for period %s already recorded", period)
	}
	s.resultsDone[period] = true

	if fiscalYear != s.fiscalYear {
		s.fiscalYear = fiscalYear
		s.cumulative = make(moneyAccumulator)
	}

	flows := make(accumulator)
	money := make(moneyAccumulator)
	claims := make(accumulator)
	for _, r := range results {
		d := resultDims(r)
		if r.Success > 0 {
			flows.add(r.FlowID, d, float64(r.Success))
		}
		if r.Failure > 0 && r.RejectFlowID != "" {
			flows.add(r.RejectFlowID, d, float64(r.Failure))
		}
		if f := r.Financial; f != nil {
			money.add(constants.FinancialClaimExpenditure, d, f.Total)
			money.add(constants.FinancialProgramExpenditure, d, f.Program)
			money.add(constants.FinancialPatientExpenditure, d, f.Patient)
			claims.add(constants.FinancialClaimExpenditure, d, float64(f.Claims))
			s.cumulative.add(constants.FinancialCumulativeExpenditure, d, f.Total)
		}
	}
	s.claims[period] = claims

	for _, k := range flows.sorted() {
		s.append(Record{Type: constants.MetricTypeFlow, ID: k.id, Period: period, Dimensions: k.Dimensions, Value: flows[k]})
	}
	for _, k := range money.sorted() {
		s.append(Record{Type: constants.MetricTypeFinancial, ID: k.id, Period: period, Dimensions: k.Dimensions, Value: money[k].InexactFloat64()})
	}
	for _, k := range s.cumulative.sorted() {
		s.append(Record{Type: constants.MetricTypeFinancial, ID: k.id, Period: period, Dimensions: k.Dimensions, Value: s.cumulative[k].InexactFloat64()})
	}
	return nil
}
