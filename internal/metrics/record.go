// Package metrics keeps the normalized fact table of simulation output: state
// snapshots, flow counts, expenditures and derived ratios, each tagged with
// explicit region, cohort, age bracket and segment dimensions.
package metrics

import (
	"sort"

	"github.com/policylab/ohbsim/internal/constants"
	"github.com/shopspring/decimal"
)

// Dimensions locate a record. constants.AllDimension marks a rollup across
// that dimension.
type Dimensions struct {
	Region     string `json:"region"`
	Cohort     string `json:"cohort"`
	AgeBracket string `json:"age_bracket"`
	Segment    string `json:"segment"`
}

// Total is the rollup across every dimension.
var Total = Dimensions{
	Region:     constants.AllDimension,
	Cohort:     constants.AllDimension,
	AgeBracket: constants.AllDimension,
	Segment:    constants.AllDimension,
}

// Record is one normalized fact.
type Record struct {
	Type   string `json:"type"`
	ID     string `json:"id"`
	Period string `json:"period"`
	Dimensions
	Value float64 `json:"value"`
}

// Key identifies a record uniquely.
type Key struct {
	Type   string
	ID     string
	Period string
	Dimensions
}

// Key returns the record's identity.
func (r Record) Key() Key {
	return Key{Type: r.Type, ID: r.ID, Period: r.Period, Dimensions: r.Dimensions}
}

// rollups returns the segment-level dimensions followed by the region, cohort,
// age bracket and overall aggregates it contributes to.
func rollups(d Dimensions) []Dimensions {
	all := constants.AllDimension
	return []Dimensions{
		d,
		{Region: d.Region, Cohort: all, AgeBracket: all, Segment: all},
		{Region: all, Cohort: d.Cohort, AgeBracket: all, Segment: all},
		{Region: all, Cohort: all, AgeBracket: d.AgeBracket, Segment: all},
		Total,
	}
}

// accumulator sums values per (id, dimensions) across rollup levels.
type accumulator map[idDims]float64

type idDims struct {
	id string
	Dimensions
}

func (a accumulator) add(id string, d Dimensions, v float64) {
	for _, r := range rollups(d) {
		a[idDims{id, r}] += v
	}
}

// moneyAccumulator sums amounts exactly; values become float64 only when
// a record is emitted.
type moneyAccumulator map[idDims]decimal.Decimal

func (a moneyAccumulator) add(id string, d Dimensions, v decimal.Decimal) {
	for _, r := range rollups(d) {
		k := idDims{id, r}
		a[k] = a[k].Add(v)
	}
}

func (a moneyAccumulator) sorted() []idDims {
	keys := make([]idDims, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessIDDims(keys[i], keys[j]) })
	return keys
}

// sorted returns the accumulated keys in a stable order.
func (a accumulator) sorted() []idDims {
	keys := make([]idDims, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessIDDims(keys[i], keys[j]) })
	return keys
}

func lessIDDims(a, b idDims) bool {
	if a.id != b.id {
		return a.id < b.id
	}
	return lessDims(a.Dimensions, b.Dimensions)
}

func lessDims(a, b Dimensions) bool {
	switch {
	case a.Region != b.Region:
		return a.Region < b.Region
	case a.Cohort != b.Cohort:
		return a.Cohort < b.Cohort
	case a.AgeBracket != b.AgeBracket:
		return a.AgeBracket < b.AgeBracket
	default:
		return a.Segment < b.Segment
	}
}
