package metrics

import (
	"github.com/policylab/ohbsim/internal/constants"
	"github.com/shopspring/decimal"
)

// Summary is the headline of a finished run: the final period's population
// totals and the expenditure summed over every period.
type Summary struct {
	Periods            int     `json:"periods"`
	FinalPeriod        string  `json:"final_period"`
	TotalEligible      float64 `json:"total_eligible"`
	TotalEnrolled      float64 `json:"total_enrolled"`
	EnrollmentRate     float64 `json:"enrollment_rate"`
	ClaimExpenditure   float64 `json:"claim_expenditure"`
	ProgramExpenditure float64 `json:"program_expenditure"`
	PatientExpenditure float64 `json:"patient_expenditure"`
	Records            int     `json:"records"`
}

// Summary reports the overall (Total) figures. The INITIAL snapshot is not
// counted as a period.
func (s *Store) Summary() Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := Summary{Records: len(s.records)}
	var claim, program, patient decimal.Decimal
	cents := func(id, period string) decimal.Decimal {
		return decimal.NewFromFloat(s.value(constants.MetricTypeFinancial, id, period, Total)).Round(2)
	}
	for _, p := range s.periods {
		if p == constants.InitialPeriod {
			continue
		}
		sum.Periods++
		sum.FinalPeriod = p
		claim = claim.Add(cents(constants.FinancialClaimExpenditure, p))
		program = program.Add(cents(constants.FinancialProgramExpenditure, p))
		patient = patient.Add(cents(constants.FinancialPatientExpenditure, p))
	}
	sum.ClaimExpenditure = claim.InexactFloat64()
	sum.ProgramExpenditure = program.InexactFloat64()
	sum.PatientExpenditure = patient.InexactFloat64()
	if sum.FinalPeriod == "" {
		return sum
	}
	sum.TotalEligible = s.value(constants.MetricTypeDerived, constants.DerivedTotalEligiblePopulation, sum.FinalPeriod, Total)
	sum.TotalEnrolled = s.value(constants.MetricTypeDerived, constants.DerivedTotalEnrolledPopulation, sum.FinalPeriod, Total)
	sum.EnrollmentRate = s.value(constants.MetricTypeDerived, constants.DerivedEnrollmentRate, sum.FinalPeriod, Total)
	return sum
}
