package main

import (
	"fmt"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// printer groups thousands in population and currency figures.
var printer = message.NewPrinter(language.English)

func printRunSummary(w io.Writer, r runResult) {
	name := r.Scenario
	if name == "" {
		name = "(base configuration)"
	}
	s := r.Summary

	fmt.Fprintf(w, "Scenario:   %s\n", name)
	fmt.Fprintf(w, "Revision:   %s\n", shortRevision(r.Revision))
	fmt.Fprintf(w, "Seed:       %d\n", r.Seed)
	printer.Fprintf(w, "Periods:    %d (final %s)\n", s.Periods, s.FinalPeriod)
	fmt.Fprintln(w)
	printer.Fprintf(w, "Eligible:            %12.0f\n", s.TotalEligible)
	printer.Fprintf(w, "Enrolled:            %12.0f\n", s.TotalEnrolled)
	printer.Fprintf(w, "Enrollment rate:     %11.2f%%\n", s.EnrollmentRate*100)
	printer.Fprintf(w, "Claim expenditure:   %12.2f\n", s.ClaimExpenditure)
	printer.Fprintf(w, "  program share:     %12.2f\n", s.ProgramExpenditure)
	printer.Fprintf(w, "  patient share:     %12.2f\n", s.PatientExpenditure)
	printer.Fprintf(w, "Records:             %12d\n", s.Records)

	if r.RunID != "" {
		fmt.Fprintf(w, "\nSaved as run %s\n", r.RunID)
	}
	for _, f := range r.Files {
		fmt.Fprintf(w, "Wrote %s\n", f)
	}
	for _, f := range r.Pruned {
		fmt.Fprintf(w, "Pruned %s\n", f)
	}
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}
