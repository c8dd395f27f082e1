package rates

import "time"

// Curve selects the built-in seasonal pattern used when a flow has no
// configured factors.
type Curve int

const (
	// Flat applies no seasonal adjustment.
	Flat Curve = iota
	// Generation peaks in January and September and dips in July.
	Generation
	// Approval slows slightly in the peak months and speeds up over summer.
	Approval
)

func (c Curve) String() string {
	switch c {
	case Generation:
		return "generation"
	case Approval:
		return "approval"
	default:
		return "flat"
	}
}

var (
	generationCurve = map[time.Month]float64{
		time.January:   2.0,
		time.September: 1.5,
		time.July:      0.5,
	}
	approvalCurve = map[time.Month]float64{
		time.January:   0.95,
		time.September: 0.95,
		time.June:      1.05,
		time.July:      1.05,
		time.August:    1.05,
	}
)

// FallbackFactor returns the built-in factor for month on curve.
func FallbackFactor(c Curve, month time.Month) float64 {
	var table map[time.Month]float64
	switch c {
	case Generation:
		table = generationCurve
	case Approval:
		table = approvalCurve
	default:
		return 1.0
	}
	if f, ok := table[month]; ok {
		return f
	}
	return 1.0
}
