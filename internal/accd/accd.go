// Package accd implements Additive Continuous Collision Detection, the
// conservative advancement time of impact solver from "Codimensional
// Incremental Potential Contact" (Li et al., SIGGRAPH 2021).
//
// The solver works on any pair of geom.ColliderPart values through a squared
// distance Metric. It never advances past a configuration closer than the
// thickness, so the returned time is safe to step to.
package accd

import (
	"math"

	"github.com/racharron/abd/internal/geom"
)

const (
	// DefaultDeltaScale is the time advancement factor recommended by the paper.
	DefaultDeltaScale = 0.9
	// DefaultMaxRounds bounds the number of restarts of a single query.
	DefaultMaxRounds = 1024
	// DefaultMaxSubSteps bounds the conservative sub-steps of a single query,
	// summed over its rounds.
	DefaultMaxSubSteps = 1 << 20
)

// Params configures a time of impact query.
type Params struct {
	Thickness        float64 // Sum of the half thicknesses of the two parts
	Scale            float64 // Fraction of the current gap a round halts at
	BarrierThickness float64 // Distance below which a contact is accepted
	TimeStep         float64 // Search horizon
	DeltaScale       float64 // Advancement factor, strictly inside (0, 1)
	MaxRounds        int     // Restart limit; <= 0 means DefaultMaxRounds
	MaxSubSteps      int     // Sub-step budget; <= 0 means DefaultMaxSubSteps
}

// DefaultParams returns parameters for a unit time step with a small
// thickness and barrier.
func DefaultParams() Params {
	return Params{
		Thickness:        1e-3,
		Scale:            0.1,
		BarrierThickness: 2e-3,
		TimeStep:         1,
		DeltaScale:       DefaultDeltaScale,
		MaxRounds:        DefaultMaxRounds,
		MaxSubSteps:      DefaultMaxSubSteps,
	}
}

// Metric returns the squared distance between two parts.
type Metric[A, B any] func(a *A, b *B) float64

// Contact is a conservative contact estimate reported by IPC. Time is the last
// safe time; Distance is measured one sub-step past it. Steps counts the
// sub-steps taken.
type Contact struct {
	Time     float64
	Distance float64
	Steps    int
}

// IPC advances a and b from ti towards p.TimeStep in conservative sub-steps
// and reports the last time before the gap has shrunk to the fraction p.Scale
// of its starting value or the distance has dropped below p.BarrierThickness.
// It reports no contact when the parts do not move relative to each other, the
// horizon is exceeded or maxSteps sub-steps were not enough.
//
// On contact a and b are left at the reported time. The frame of reference is
// not changed; see ACCD for the recentering wrapper.
func IPC[V geom.Vector[V], A, B any, PA geom.Part[V, A], PB geom.Part[V, B]](
	a *A, b *B, metric Metric[A, B], p Params, ti float64, maxSteps int,
) (Contact, bool) {
	assertDeltaScale(p.DeltaScale)
	pa, pb := PA(a), PB(b)
	thickness, scale, deltaScale := p.Thickness, p.Scale, p.DeltaScale
	stop := func(d float64) bool {
		return d <= thickness || d < p.BarrierThickness
	}

	lp := pa.MaxSpeed() + pb.MaxSpeed()
	if lp == 0 {
		return Contact{}, false
	}

	dSqr := metric(a, b)
	d := math.Sqrt(dSqr)
	if stop(d) {
		return Contact{Time: ti, Distance: d}, true
	}

	xiSqr := thickness * thickness
	g := scale*(dSqr-xiSqr)/d + thickness
	t := ti
	tl := (1 - scale) * (dSqr - xiSqr) / ((d + thickness) * lp)
	for steps := 1; steps <= maxSteps; steps++ {
		pa.Advance(tl)
		pb.Advance(tl)
		dSqr = metric(a, b)
		d = math.Sqrt(dSqr)
		if stop(d) || (t > ti && (dSqr-xiSqr)/(d+thickness) < g) {
			pa.Advance(-tl)
			pb.Advance(-tl)
			return Contact{Time: t, Distance: d, Steps: steps}, true
		}
		t += tl
		if t > p.TimeStep {
			return Contact{}, false
		}
		tl = deltaScale * (dSqr - xiSqr) / ((d + thickness) * lp)
	}
	return Contact{}, false
}

// ACCD returns a conservative time of impact of a and b within p.TimeStep.
//
// Both parts are copied. Velocities are recentered once around the middle of
// their combined velocity box and positions around the middle of their
// combined position box before every round, keeping coordinates near the
// origin. Rounds of IPC restart from the last reported time until the reported
// distance is below p.BarrierThickness.
//
// A pair already closer than the barrier reports time 0. When p.MaxRounds
// rounds pass without an accepted contact the last safe time is returned.
// A query that exhausts p.MaxSubSteps reports no contact.
func ACCD[V geom.Vector[V], A, B any, PA geom.Part[V, A], PB geom.Part[V, B]](
	a A, b B, metric Metric[A, B], p Params,
) (float64, bool) {
	assertDeltaScale(p.DeltaScale)
	pa, pb := PA(&a), PB(&b)

	avMin, avMax := pa.VelocityAABB()
	bvMin, bvMax := pb.VelocityAABB()
	vc := geom.Midpoint(geom.Min(avMin, bvMin), geom.Max(avMax, bvMax))
	pa.CenterVelocity(vc)
	pb.CenterVelocity(vc)
	if pa.MaxSpeed()+pb.MaxSpeed() == 0 {
		return 0, false
	}

	recenter[V](pa, pb)
	if math.Sqrt(metric(&a, &b)) < p.BarrierThickness {
		return 0, true
	}

	rounds := p.MaxRounds
	if rounds <= 0 {
		rounds = DefaultMaxRounds
	}

	budget := p.MaxSubSteps
	if budget <= 0 {
		budget = DefaultMaxSubSteps
	}

	var t float64
	for i := 0; i < rounds; i++ {
		recenter[V](pa, pb)
		c, ok := IPC[V, A, B, PA, PB](&a, &b, metric, p, t, budget)
		if !ok {
			return 0, false
		}
		budget -= c.Steps
		if c.Distance < p.BarrierThickness {
			return c.Time, true
		}
		t = c.Time
	}
	return t, true
}

func recenter[V geom.Vector[V]](a, b geom.ColliderPart[V]) {
	aMin, aMax := a.CurrentAABB()
	bMin, bMax := b.CurrentAABB()
	c := geom.Midpoint(geom.Min(aMin, bMin), geom.Max(aMax, bMax))
	a.CenterPosition(c)
	b.CenterPosition(c)
}
