// Package population holds regions, segments and the per-segment state ledger.
package population

import (
	"log/slog"
	"sort"

	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/constants"
	"github.com/policylab/ohbsim/internal/logging"
)

// ProcessState is one stage of the program lifecycle within a segment.
type ProcessState struct {
	ID                string
	Name              string
	ResetOnFiscalYear bool

	population int64
	history    map[string]int64
}

// Population returns the current count.
func (s *ProcessState) Population() int64 { return s.population }

// History returns a copy of the per-period snapshots.
func (s *ProcessState) History() map[string]int64 {
	out := make(map[string]int64, len(s.history))
	for k, v := range s.history {
		out[k] = v
	}
	return out
}

// Ledger maps state ids to population counters for a single segment.
// Counters never go negative. The ledger is not safe for concurrent use.
type Ledger struct {
	owner  string
	states map[string]*ProcessState
	order  []string
	logger *slog.Logger
}

// NewLedger creates a ledger with one zeroed counter per definition.
// owner is used only for diagnostics.
func NewLedger(owner string, defs []config.StateDefinition, logger *slog.Logger) *Ledger {
	l := &Ledger{
		owner:  owner,
		states: make(map[string]*ProcessState, len(defs)),
		logger: logging.OrDiscard(logger),
	}
	for _, d := range defs {
		if _, dup := l.states[d.ID]; dup {
			continue
		}
		l.states[d.ID] = &ProcessState{
			ID:                d.ID,
			Name:              d.Name,
			ResetOnFiscalYear: d.ResetOnFiscalYear,
			history:           make(map[string]int64),
		}
		l.order = append(l.order, d.ID)
	}
	return l
}

// Has reports whether the ledger defines state id.
func (l *Ledger) Has(id string) bool {
	_, ok := l.states[id]
	return ok
}

// Missing returns the ids in required that the ledger does not define.
func (l *Ledger) Missing(required []string) []string {
	var missing []string
	for _, id := range required {
		if !l.Has(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// State returns the state for id, or nil.
func (l *Ledger) State(id string) *ProcessState { return l.states[id] }

// States returns the states in definition order.
func (l *Ledger) States() []*ProcessState {
	out := make([]*ProcessState, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.states[id])
	}
	return out
}

// Get returns the population of id, or 0 for an unknown state.
func (l *Ledger) Get(id string) int64 {
	s, ok := l.states[id]
	if !ok {
		l.logger.Warn("unknown state", "segment", l.owner, "state", id)
		return 0
	}
	return s.population
}

// Set replaces the population of id, clamping at zero.
func (l *Ledger) Set(id string, n int64) {
	s, ok := l.states[id]
	if !ok {
		l.logger.Warn("set on unknown state ignored", "segment", l.owner, "state", id)
		return
	}
	if n < 0 {
		n = 0
	}
	s.population = n
}

// Add applies delta to id. The result is clamped at zero.
func (l *Ledger) Add(id string, delta int64) {
	s, ok := l.states[id]
	if !ok {
		l.logger.Warn("add on unknown state ignored", "segment", l.owner, "state", id)
		return
	}
	s.population += delta
	if s.population < 0 {
		s.population = 0
	}
}

// Transfer moves up to n people from one state to another and returns the
// number actually moved, min(n, Get(from)). Unknown states and non-positive
// counts are no-ops returning 0.
func (l *Ledger) Transfer(from, to string, n int64) int64 {
	src, ok := l.states[from]
	if !ok {
		l.logger.Warn("transfer from unknown state ignored", "segment", l.owner, "from", from, "to", to)
		return 0
	}
	dst, ok := l.states[to]
	if !ok {
		l.logger.Warn("transfer to unknown state ignored", "segment", l.owner, "from", from, "to", to)
		return 0
	}
	if n > src.population {
		l.logger.Debug("transfer clamped", "segment", l.owner, "from", from, "requested", n, "available", src.population)
		n = src.population
	}
	if n <= 0 {
		return 0
	}
	src.population -= n
	dst.population += n
	return n
}

// Total returns the sum of all state populations.
func (l *Ledger) Total() int64 {
	var total int64
	for _, s := range l.states {
		total += s.population
	}
	return total
}

// Snapshot records every state's population under period. A period that was
// already recorded keeps its first value.
func (l *Ledger) Snapshot(period string) {
	for _, s := range l.states {
		if _, seen := s.history[period]; !seen {
			s.history[period] = s.population
		}
	}
}

// ResetAnnual moves the whole population of every reset-flagged state into
// target and returns the amount moved per state. Neither target nor the
// rollout holding state is ever reset.
func (l *Ledger) ResetAnnual(target string) map[string]int64 {
	moved := make(map[string]int64)
	if !l.Has(target) {
		l.logger.Warn("fiscal reset target missing", "segment", l.owner, "state", target)
		return moved
	}
	ids := make([]string, 0, len(l.states))
	for id, s := range l.states {
		if s.ResetOnFiscalYear && id != target && id != constants.StateNonEligible {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	for _, id := range ids {
		if n := l.Transfer(id, target, l.states[id].population); n > 0 {
			moved[id] = n
		}
	}
	return moved
}
