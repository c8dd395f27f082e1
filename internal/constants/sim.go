package constants

// Canonical process state identifiers.
const (
	StateEligible             = "eligible"
	StateReEnrollmentEligible = "re_enrollment_eligible"
	StateApplied              = "applied"
	StateEnrolledInactive     = "enrolled_inactive"
	StateActiveClaimant       = "active_claimant"
	StateNonEligible          = "non_eligible" // holding state for rollout-gated population
)

// RequiredStates lists the states every segment must define.
var RequiredStates = []string{
	StateEligible,
	StateReEnrollmentEligible,
	StateApplied,
	StateEnrolledInactive,
	StateActiveClaimant,
}

// Flow identifiers.
const (
	FlowNewApplications             = "new_applications"
	FlowNewReEnrollmentApplications = "new_re_enrollment_applications"
	FlowNewEnrollments              = "new_enrollments"
	FlowNewReEnrollment             = "new_re_enrollment"
	FlowNewFirstClaimants           = "new_first_claimants"
	FlowNewSubsequentClaims         = "new_subsequent_claims"
	FlowRejectedApplications        = "rejected_applications"
	FlowRejectedReEnrollments       = "rejected_re_enrollments"
	FlowFiscalYearReset             = "fiscal_year_reset"
	FlowRolloutActivation           = "rollout_activation"
)

// PipelineFlows are handled by the application pipeline and skipped by the
// generic flow pass.
var PipelineFlows = map[string]bool{
	FlowNewApplications:             true,
	FlowNewReEnrollmentApplications: true,
	FlowNewEnrollments:              true,
	FlowNewReEnrollment:             true,
}

// Metric types.
const (
	MetricTypeState     = "state"
	MetricTypeFlow      = "flow"
	MetricTypeFinancial = "financial"
	MetricTypeDerived   = "derived"
)

// Financial metric identifiers.
const (
	FinancialClaimExpenditure      = "claim_expenditure"
	FinancialProgramExpenditure    = "program_expenditure"
	FinancialPatientExpenditure    = "patient_expenditure"
	FinancialCumulativeExpenditure = "cumulative_expenditure"
)

// Derived metric identifiers.
const (
	DerivedTotalEligiblePopulation = "total_eligible_population"
	DerivedTotalEnrolledPopulation = "total_enrolled_population"
	DerivedEnrollmentRate          = "enrollment_rate"
	DerivedApplicationRate         = "application_rate"
	DerivedApprovalRate            = "approval_rate"
	DerivedExpenditurePerEnrollee  = "expenditure_per_enrollee"
	DerivedExpenditurePerClaim     = "expenditure_per_claim"
)

// Dimension and period markers.
const (
	// AllDimension marks a record aggregated across a dimension.
	AllDimension = "ALL"

	// InitialPeriod labels the snapshot taken at initialization, before any flow runs.
	InitialPeriod = "INITIAL"

	// DefaultCohort matches every cohort in rollout phases and seasonal factor lookups.
	DefaultCohort = "ALL"
)

// Rollout defaults.
const (
	DefaultPhaseID = "default"
	MaxAge         = 120
)

// Fiscal year defaults.
const (
	DefaultFiscalYearStartMonth = 4
	DefaultFiscalYearStartDay   = 1
)
