// Package rates resolves per-segment transition rates: a cached base rate from
// the configuration, a seasonal factor, and optional random variation.
package rates

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/policylab/ohbsim/internal/config"
	"github.com/policylab/ohbsim/internal/logging"
	"github.com/policylab/ohbsim/internal/population"
)

// DistributionSuffix is appended to a flow id to form its distribution key.
const DistributionSuffix = "_distribution"

// Resolver computes adjusted rates. It is not safe for concurrent use.
type Resolver struct {
	provider config.Provider
	cache    *Cache
	rng      *rand.Rand
	fallback bool
	logger   *slog.Logger
}

// NewResolver creates a resolver over p. rng drives distribution draws and
// may be nil when no distributions are configured.
func NewResolver(p config.Provider, rng *rand.Rand, logger *slog.Logger) *Resolver {
	r := &Resolver{
		provider: p,
		cache:    NewCache(),
		rng:      rng,
		fallback: p.SimulationParameters().SeasonalFallback,
		logger:   logging.OrDiscard(logger),
	}
	r.cache.Bind(p.Revision())
	return r
}

// Cache exposes the resolver's base-rate cache.
func (r *Resolver) Cache() *Cache { return r.cache }

// Reset clears the cache and rebinds it to the provider's current revision.
func (r *Resolver) Reset() {
	r.cache.Reset()
	r.cache.Bind(r.provider.Revision())
	r.fallback = r.provider.SimulationParameters().SeasonalFallback
}

// BaseRate returns the configured rate for flow in seg, clamped to [0, 1].
func (r *Resolver) BaseRate(seg *population.Segment, flowID string) float64 {
	if r.cache.Bind(r.provider.Revision()) {
		r.logger.Debug("rate cache invalidated", "revision", r.cache.Revision())
	}
	if v, ok := r.cache.get(seg.ID, flowID); ok {
		return v
	}
	v := Clamp(r.provider.FlowRate(flowID, seg.Cohort, seg.Age.Name))
	r.cache.put(seg.ID, flowID, v)
	return v
}

// SeasonalFactor returns the configured factor for month, or the fallback
// curve's factor when none is configured and fallbacks are enabled.
func (r *Resolver) SeasonalFactor(flowID, cohort string, month time.Month, curve Curve) float64 {
	if f, ok := r.provider.SeasonalFactor(flowID, cohort, month); ok {
		return f
	}
	if !r.fallback {
		return 1.0
	}
	return FallbackFactor(curve, month)
}

// Vary applies the distribution configured for flow and cohort to rate.
// Without a configured distribution the rate is returned unchanged.
func (r *Resolver) Vary(flowID, cohort string, rate float64) float64 {
	d, ok := r.provider.Distribution(flowID+DistributionSuffix, cohort)
	if !ok {
		return rate
	}
	if r.rng == nil {
		r.logger.Warn("distribution configured without a random source", "flow", flowID, "cohort", cohort)
		return rate
	}
	draw := Draw(r.rng, d)
	if d.Mode == config.Additive {
		return Clamp(rate + draw)
	}
	return Clamp(rate * draw)
}

// Rate returns the fully adjusted rate for flow in seg on date.
func (r *Resolver) Rate(seg *population.Segment, flowID string, date time.Time, curve Curve) float64 {
	base := r.BaseRate(seg, flowID)
	if base == 0 {
		return 0
	}
	rate := Clamp(base * r.SeasonalFactor(flowID, seg.Cohort, date.Month(), curve))
	rate = r.Vary(flowID, seg.Cohort, rate)
	r.logger.Log(context.Background(), logging.LevelTrace, "rate resolved",
		"segment", seg.ID, "flow", flowID, "base", base, "rate", rate)
	return rate
}

// Draw samples d using rng.
func Draw(rng *rand.Rand, d config.Distribution) float64 {
	switch d.Type {
	case config.Normal:
		return d.Mean + rng.NormFloat64()*d.StdDev
	default:
		return d.Min + rng.Float64()*(d.Max-d.Min)
	}
}

// Clamp limits v to [0, 1]. NaN becomes 0.
func Clamp(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Amount converts a rate applied to population into a head count, rounding
// half to even and clamping to [0, population].
func Amount(population int64, rate float64) int64 {
	if population <= 0 || rate <= 0 {
		return 0
	}
	n := int64(math.RoundToEven(float64(population) * rate))
	if n > population {
		return population
	}
	return n
}
