package metrics

import (
	"fmt"

	"github.com/policylab/ohbsim/internal/constants"
)

// ComputeDerived adds the ratio metrics for period at every dimension
// combination that has state records. Ratios are skipped when their
// denominator is zero. It runs at most once per period.
func (s *Store) ComputeDerived(period string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.statesDone[period] {
		return fmt.Errorf("no states recorded for period %s", period)
	}
	if s.derivedDone[period] {
		return fmt.Errorf("derived metrics for period %s already computed", period)
	}
	s.derivedDone[period] = true

	claims := s.claims[period]
	for _, d := range s.dims[period] {
		state := func(id string) float64 { return s.value(constants.MetricTypeState, id, period, d) }
		flow := func(id string) float64 { return s.value(constants.MetricTypeFlow, id, period, d) }
		emit := func(id string, v float64) {
			s.append(Record{Type: constants.MetricTypeDerived, ID: id, Period: period, Dimensions: d, Value: v})
		}

		eligible := state(constants.StateEligible) + state(constants.StateReEnrollmentEligible)
		enrolled := state(constants.StateEnrolledInactive) + state(constants.StateActiveClaimant)
		emit(constants.DerivedTotalEligiblePopulation, eligible)
		emit(constants.DerivedTotalEnrolledPopulation, enrolled)
		if eligible > 0 {
			emit(constants.DerivedEnrollmentRate, enrolled/eligible)
		}

		applications := flow(constants.FlowNewApplications)
		if e := state(constants.StateEligible); e > 0 && applications > 0 {
			emit(constants.DerivedApplicationRate, applications/e)
		}
		if applications > 0 {
			emit(constants.DerivedApprovalRate, flow(constants.FlowNewEnrollments)/applications)
		}

		spend := s.value(constants.MetricTypeFinancial, constants.FinancialClaimExpenditure, period, d)
		if spend <= 0 {
			continue
		}
		if enrolled > 0 {
			emit(constants.DerivedExpenditurePerEnrollee, spend/enrolled)
		}
		if n := claims[idDims{constants.FinancialClaimExpenditure, d}]; n > 0 {
			emit(constants.DerivedExpenditurePerClaim, spend/n)
		}
	}
	return nil
}

// value returns the recorded value or zero. Callers hold mu.
func (s *Store) value(typ, id, period string, d Dimensions) float64 {
	if i, ok := s.index[Key{Type: typ, ID: id, Period: period, Dimensions: d}]; ok {
		return s.records[i].Value
	}
	return 0
}
