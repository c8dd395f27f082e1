// Package simulation drives the period loop: it builds segments from a
// configuration provider, applies rollout gating, runs the transition steps
// each period, records metrics and performs fiscal-year resets.
//
// Usage:
//
//	sim := simulation.New(scenario, simulation.WithLogger(logger))
//	records, err := sim.Run()
//
// The package also carries a test harness (Runner, Builder and the Assert*
// helpers) that checks population invariants after every period.
package simulation
