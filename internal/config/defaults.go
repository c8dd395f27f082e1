package config

import "github.com/policylab/ohbsim/internal/constants"

// Default scenario values used when a base configuration omits them.
const (
	DefaultStartDate = "2025-04-01"
	DefaultEndDate   = "2026-03-31"
	DefaultInterval  = "MONTHLY"
)

// DefaultTree returns the built-in base configuration: the canonical states
// and flows, a monthly interval and an April 1 fiscal year.
func DefaultTree() map[string]any {
	state := func(id, name string, reset bool) map[string]any {
		return map[string]any{"id": id, "name": name, "reset_on_fiscal_year": reset}
	}
	flow := func(source, target string) map[string]any {
		return map[string]any{"source": source, "target": target}
	}

	return map[string]any{
		"simulation": map[string]any{
			"start_date":              DefaultStartDate,
			"end_date":                DefaultEndDate,
			"time_interval":           DefaultInterval,
			"fiscal_year_start_month": constants.DefaultFiscalYearStartMonth,
			"fiscal_year_start_day":   constants.DefaultFiscalYearStartDay,
			"seasonal_fallback":       true,
		},
		"states": map[string]any{
			"eligible_population":               state(constants.StateEligible, "Eligible Population", false),
			"re_enrollment_eligible_population": state(constants.StateReEnrollmentEligible, "Re-enrollment Eligible Population", false),
			"applied_population":                state(constants.StateApplied, "Applied Population", false),
			"enrolled_inactive_population":      state(constants.StateEnrolledInactive, "Enrolled Inactive Population", true),
			"active_claimant_population":        state(constants.StateActiveClaimant, "Active Claimant Population", true),
		},
		"flows": map[string]any{
			constants.FlowNewApplications:             flow(constants.StateEligible, constants.StateApplied),
			constants.FlowNewReEnrollmentApplications: flow(constants.StateReEnrollmentEligible, constants.StateApplied),
			constants.FlowNewEnrollments:              flow(constants.StateApplied, constants.StateEnrolledInactive),
			constants.FlowNewReEnrollment:             flow(constants.StateApplied, constants.StateEnrolledInactive),
			constants.FlowNewFirstClaimants:           flow(constants.StateEnrolledInactive, constants.StateActiveClaimant),
		},
	}
}
