package metrics

// Filter selects records. Empty fields match anything.
type Filter struct {
	Type       string
	ID         string
	Period     string
	Region     string
	Cohort     string
	AgeBracket string
	Segment    string
}

// Matches reports whether r satisfies every non-empty field of f.
func (f Filter) Matches(r Record) bool {
	return match(f.Type, r.Type) &&
		match(f.ID, r.ID) &&
		match(f.Period, r.Period) &&
		match(f.Region, r.Region) &&
		match(f.Cohort, r.Cohort) &&
		match(f.AgeBracket, r.AgeBracket) &&
		match(f.Segment, r.Segment)
}

func match(want, got string) bool {
	return want == "" || want == got
}

// Query returns the records matching f in insertion order.
func (s *Store) Query(f Filter) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// All returns a copy of every record.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record(nil), s.records...)
}

// ByType returns the records of one metric type.
func (s *Store) ByType(typ string) []Record { return s.Query(Filter{Type: typ}) }

// ByID returns the records with one metric id.
func (s *Store) ByID(id string) []Record { return s.Query(Filter{ID: id}) }

// ByPeriod returns the records of one period.
func (s *Store) ByPeriod(period string) []Record { return s.Query(Filter{Period: period}) }

// ByDimensions returns the records at exactly d.
func (s *Store) ByDimensions(d Dimensions) []Record {
	return s.Query(Filter{Region: d.Region, Cohort: d.Cohort, AgeBracket: d.AgeBracket, Segment: d.Segment})
}

// Lookup returns a single value.
func (s *Store) Lookup(typ, id, period string, d Dimensions) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[Key{Type: typ, ID: id, Period: period, Dimensions: d}]
	if !ok {
		return 0, false
	}
	return s.records[i].Value, true
}

// Periods lists periods in the order they were first recorded.
func (s *Store) Periods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.periods...)
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Load appends previously exported records, replacing the store's contents.
// Loaded periods are closed to further recording.
func (s *Store) Load(records []Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.periods = nil
	s.index = make(map[Key]int)
	for _, r := range records {
		s.append(r)
		s.statesDone[r.Period] = true
		s.resultsDone[r.Period] = true
		s.derivedDone[r.Period] = true
	}
}
