package config

import (
	"testing"
	"time"

	"github.com/policylab/ohbsim/internal/calendar"
)

func TestOverrides_Apply(t *testing.T) {
	base := mustParse(t, testBase)

	same, err := Overrides{}.Apply(base)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if same != base {
		t.Error("empty Overrides should return the scenario unchanged")
	}

	next, err := Overrides{EndDate: "2025-06-30", Interval: "QUARTERLY", Seed: 42}.Apply(base)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	p := next.SimulationParameters()
	if want := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC); !p.EndDate.Equal(want) {
		t.Errorf("EndDate = %v, want %v", p.EndDate, want)
	}
	if p.Interval != calendar.Quarterly {
		t.Errorf("Interval = %v, want QUARTERLY", p.Interval)
	}
	if p.Seed != 42 {
		t.Errorf("Seed = %d, want 42", p.Seed)
	}
	if next.Revision() == base.Revision() {
		t.Error("overridden scenario should have a new revision")
	}
	if !p.StartDate.Equal(base.SimulationParameters().StartDate) {
		t.Error("StartDate should keep the scenario value")
	}
}

func TestEnsureSeed(t *testing.T) {
	base, err := mustParse(t, testBase).With(map[string]any{"simulation": map[string]any{"seed": 0}})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	seeded, err := EnsureSeed(base, 7)
	if err != nil {
		t.Fatalf("EnsureSeed() error = %v", err)
	}
	if seeded.SimulationParameters().Seed != 7 {
		t.Errorf("Seed = %d, want 7", seeded.SimulationParameters().Seed)
	}

	kept, err := EnsureSeed(seeded, 99)
	if err != nil {
		t.Fatalf("EnsureSeed() error = %v", err)
	}
	if kept != seeded {
		t.Error("EnsureSeed should keep an existing seed")
	}
}
