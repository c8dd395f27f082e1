package config

// Overrides replace values in a scenario's simulation section. Empty strings
// and a zero seed leave the scenario value in place.
type Overrides struct {
	StartDate string
	EndDate   string
	Interval  string
	Seed      int64
}

// Apply returns s with the overrides merged in, or s itself when there is
// nothing to override.
func (o Overrides) Apply(s *Scenario) (*Scenario, error) {
	sim := make(map[string]any)
	if o.StartDate != "" {
		sim["start_date"] = o.StartDate
	}
	if o.EndDate != "" {
		sim["end_date"] = o.EndDate
	}
	if o.Interval != "" {
		sim["time_interval"] = o.Interval
	}
	if o.Seed != 0 {
		sim["seed"] = o.Seed
	}
	if len(sim) == 0 {
		return s, nil
	}
	return s.With(map[string]any{"simulation": sim})
}

// EnsureSeed returns s unchanged when it already carries a seed, otherwise s
// with seed applied. Callers pass a fresh seed so the stored parameters
// reproduce the run.
func EnsureSeed(s *Scenario, seed int64) (*Scenario, error) {
	if s.SimulationParameters().Seed != 0 || seed == 0 {
		return s, nil
	}
	return Overrides{Seed: seed}.Apply(s)
}
