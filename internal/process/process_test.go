package process

import (
	"math/rand"
	"testing"

	"github.com/policylab/ohbsim/internal/calendar"
	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/constants"
	"github.com/policylab/ohbsim/internal/population"
	"github.com/policylab/ohbsim/internal/rates"
	"github.com/shopspring/decimal"
)

type fixture struct {
	env     Env
	cal     *calendar.Calendar
	segment *population.Segment
}

func newFixture(t *testing.T, yamlDoc string) *fixture {
	t.Helper()
	cfg, err := config.Parse("test", []byte(yamlDoc))
	if err != nil {
		t.Fatalf("config.Parse() error = %v", err)
	}
	cal, err := calendar.New(calendar.Date(2025, 4, 1), calendar.Monthly, 4, 1)
	if err != nil {
		t.Fatalf("calendar.New() error = %v", err)
	}
	seg := population.NewSegment(config.SegmentDefinition{
		ID:             "adults_18_64_north",
		CohortType:     "adults",
		AgeMin:         18,
		AgeMax:         64,
		AgeBracketName: "18-64",
		RegionID:       "north",
		PopulationSize: 1000,
	}, cfg.StateDefinitions(), nil)

	return &fixture{
		env: Env{
			Provider: cfg,
			Resolver: rates.NewResolver(cfg, rand.New(rand.NewSource(1)), nil),
		},
		cal:     cal,
		segment: seg,
	}
}

func (f *fixture) segments() []*population.Segment { return []*population.Segment{f.segment} }

func assertPopulation(t *testing.T, seg *population.Segment, state string, want int64) {
	t.Helper()
	if got := seg.Ledger.Get(state); got != want {
		t.Errorf("%s = %d, want %d", state, got, want)
	}
}

func assertConserved(t *testing.T, seg *population.Segment) {
	t.Helper()
	if got := seg.Ledger.Total(); got != seg.PopulationSize {
		t.Errorf("Total() = %d, want %d", got, seg.PopulationSize)
	}
}

func TestApplicationGenerator_FlatRate(t *testing.T) {
	f := newFixture(t, "flow_rates:\n  new_applications: 0.1\n")

	results, err := NewApplicationGenerator(f.env).Execute(f.segments(), f.cal)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	assertPopulation(t, f.segment, constants.StateApplied, 100)
	assertPopulation(t, f.segment, constants.StateEligible, 900)
	assertConserved(t, f.segment)

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	r := results[0]
	if r.FlowID != constants.FlowNewApplications || r.Success != 100 || r.Cohort != "adults" || r.RegionID != "north" || r.AgeBracket != "18-64" {
		t.Errorf("result = %+v", r)
	}
	if r.Financial != nil {
		t.Error("application results carry no financial record")
	}
}

func TestApplicationGenerator_ReEnrollmentTaggedSeparately(t *testing.T) {
	f := newFixture(t, "flow_rates:\n  new_applications: 0.1\n  new_re_enrollment_applications: 0.5\n")
	f.segment.Ledger.Transfer(constants.StateEligible, constants.StateReEnrollmentEligible, 200)

	results, err := NewApplicationGenerator(f.env).Execute(f.segments(), f.cal)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].FlowID != constants.FlowNewApplications || results[0].Success != 80 {
		t.Errorf("first result = %+v", results[0])
	}
	if results[1].FlowID != constants.FlowNewReEnrollmentApplications || results[1].Success != 100 {
		t.Errorf("second result = %+v", results[1])
	}
	assertPopulation(t, f.segment, constants.StateApplied, 180)
	assertConserved(t, f.segment)
}

func TestApplicationPipeline_ApprovesAndRoutesRejections(t *testing.T) {
	f := newFixture(t, "flow_rates:\n  new_applications: 0.1\n  new_enrollments: 0.8\n")

	results, err := NewApplicationPipeline(f.env).Execute(f.segments(), f.cal)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	assertPopulation(t, f.segment, constants.StateApplied, 0)
	assertPopulation(t, f.segment, constants.StateEnrolledInactive, 80)
	assertPopulation(t, f.segment, constants.StateEligible, 920)
	assertConserved(t, f.segment)

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	proc := results[1]
	if proc.FlowID != constants.FlowNewEnrollments || proc.Attempted != 100 || proc.Success != 80 || proc.Failure != 20 {
		t.Errorf("processing result = %+v", proc)
	}
	if proc.RejectFlowID != constants.FlowRejectedApplications {
		t.Errorf("RejectFlowID = %q, want %q", proc.RejectFlowID, constants.FlowRejectedApplications)
	}
}

func TestApplicationPipeline_ProvenanceSplit(t *testing.T) {
	f := newFixture(t, `
flow_rates:
  new_applications: 0.1
  new_re_enrollment_applications: 0.1
  new_enrollments: 1.0
  new_re_enrollment: 0.0
`)
	f.segment.Ledger.Set(constants.StateEligible, 600)
	f.segment.Ledger.Set(constants.StateReEnrollmentEligible, 400)

	results, err := NewApplicationPipeline(f.env).Execute(f.segments(), f.cal)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// 60 + 40 applied; the 0.6 share approves 60 first-time applicants and the
	// remaining 40 re-enrollment applicants are all rejected back.
	assertPopulation(t, f.segment, constants.StateEnrolledInactive, 60)
	assertPopulation(t, f.segment, constants.StateEligible, 540)
	assertPopulation(t, f.segment, constants.StateReEnrollmentEligible, 400)
	assertPopulation(t, f.segment, constants.StateApplied, 0)
	assertConserved(t, f.segment)

	var reResult *Result
	for i := range results {
		if results[i].FlowID == constants.FlowNewReEnrollment {
			reResult = &results[i]
		}
	}
	if reResult == nil {
		t.Fatal("missing new_re_enrollment result")
	}
	if reResult.Attempted != 40 || reResult.Success != 0 || reResult.Failure != 40 || reResult.RejectFlowID != constants.FlowRejectedReEnrollments {
		t.Errorf("re-enrollment result = %+v", *reResult)
	}
}

func TestApplicationProcessor_ZeroPrePeriodTotalIsAllOriginal(t *testing.T) {
	f := newFixture(t, "flow_rates:\n  new_enrollments: 0.5\n")
	f.segment.Ledger.Transfer(constants.StateEligible, constants.StateApplied, 1000)

	p := NewApplicationProcessor(f.env)
	p.CaptureProvenance(f.segments())
	results, err := p.Execute(f.segments(), f.cal)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(results) != 1 || results[0].FlowID != constants.FlowNewEnrollments || results[0].Attempted != 1000 {
		t.Fatalf("results = %+v", results)
	}
	assertPopulation(t, f.segment, constants.StateEnrolledInactive, 500)
	assertPopulation(t, f.segment, constants.StateEligible, 500)
}

func TestOriginalShare(t *testing.T) {
	tests := []struct {
		eligible, reEnroll int64
		want               float64
	}{
		{900, 100, 0.9},
		{0, 0, 1},
		{0, 50, 0},
	}
	for _, tt := range tests {
		if got := originalShare(tt.eligible, tt.reEnroll); got != tt.want {
			t.Errorf("originalShare(%d, %d) = %v, want %v", tt.eligible, tt.reEnroll, got, tt.want)
		}
	}
}

func TestGenericFlow_WithClaimCost(t *testing.T) {
	f := newFixture(t, `
flow_rates:
  new_first_claimants: 0.25
claim_costs:
  new_first_claimants:
    average_cost: 120
    program_share: 0.8
`)
	f.segment.Ledger.Transfer(constants.StateEligible, constants.StateEnrolledInactive, 100)

	def := config.FlowDefinition{ID: constants.FlowNewFirstClaimants, Source: constants.StateEnrolledInactive, Target: constants.StateActiveClaimant}
	results, err := NewGenericFlow(def, f.env).Execute(f.segments(), f.cal)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	fin := results[0].Financial
	if fin == nil {
		t.Fatal("expected a financial record")
	}
	if !fin.Total.Equal(decimal.NewFromInt(3000)) || !fin.Program.Equal(decimal.NewFromInt(2400)) || !fin.Patient.Equal(decimal.NewFromInt(600)) {
		t.Errorf("financial = total %s program %s patient %s", fin.Total, fin.Program, fin.Patient)
	}
	assertPopulation(t, f.segment, constants.StateActiveClaimant, 25)
	assertConserved(t, f.segment)
}

func TestGenericFlow_NoResultWhenNothingMoves(t *testing.T) {
	f := newFixture(t, "flow_rates:\n  new_first_claimants: 0.5\n")
	def := config.FlowDefinition{ID: constants.FlowNewFirstClaimants, Source: constants.StateEnrolledInactive, Target: constants.StateActiveClaimant}

	results, err := NewGenericFlow(def, f.env).Execute(f.segments(), f.cal)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results from an empty source, want 0", len(results))
	}
}

func TestGenericFlow_UnknownStateIsNoop(t *testing.T) {
	f := newFixture(t, "flow_rates:\n  ghost_flow: 1.0\n")
	def := config.FlowDefinition{ID: "ghost_flow", Source: "ghost", Target: constants.StateApplied}

	results, err := NewGenericFlow(def, f.env).Execute(f.segments(), f.cal)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
	assertPopulation(t, f.segment, constants.StateEligible, 1000)
}

func TestClaimGenerator(t *testing.T) {
	f := newFixture(t, `
flow_rates:
  new_subsequent_claims: 0.5
claim_costs:
  new_subsequent_claims:
    average_cost: 50
    program_share: 1
`)
	f.segment.Ledger.Transfer(constants.StateEligible, constants.StateActiveClaimant, 40)

	results, err := NewClaimGenerator(f.env).Execute(f.segments(), f.cal)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(results) != 1 || results[0].Success != 20 {
		t.Fatalf("results = %+v", results)
	}
	if fin := results[0].Financial; fin == nil || !fin.Total.Equal(decimal.NewFromInt(1000)) || !fin.Patient.IsZero() {
		t.Errorf("financial = %+v", fin)
	}
	assertPopulation(t, f.segment, constants.StateActiveClaimant, 40)
}

func TestPrice_RoundsToCents(t *testing.T) {
	cost := config.ClaimCost{AverageCost: decimal.RequireFromString("33.333"), ProgramShare: decimal.RequireFromString("0.5")}
	fin := Price(3, cost)
	if fin.Total.String() != "100" {
		t.Errorf("Total = %s, want 100", fin.Total)
	}
	if !fin.Program.Add(fin.Patient).Equal(fin.Total) {
		t.Errorf("program %s + patient %s != total %s", fin.Program, fin.Patient, fin.Total)
	}
}

func TestPlan(t *testing.T) {
	f := newFixture(t, "")
	steps := Plan(f.env)

	var ids []string
	for _, s := range steps {
		ids = append(ids, s.ID())
	}
	want := []string{"application_pipeline", constants.FlowNewFirstClaimants, constants.FlowNewSubsequentClaims}
	if len(ids) != len(want) {
		t.Fatalf("Plan() ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Plan()[%d] = %s, want %s", i, ids[i], want[i])
		}
	}
}
