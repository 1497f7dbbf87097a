// Package distance implements the closest point queries and squared distance
// metrics used by the narrow phase.
//
// Dimension-generic functions accept any geom.Vector. Queries that need a
// cross product (line-line, segment-segment, point-triangle) are 3-D only.
package distance

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/racharron/abd/internal/geom"
)

// Lerp returns a + t(b-a).
func Lerp[V geom.Vector[V]](a, b V, t float64) V {
	return a.Add(b.Sub(a).Mul(t))
}

// PointLineParameter returns t such that a + t(b-a) is the point on line ab
// closest to p. The result is NaN when a == b.
func PointLineParameter[V geom.Vector[V]](p, a, b V) float64 {
	ab := b.Sub(a)
	return p.Sub(a).Dot(ab) / ab.Dot(ab)
}

// ClosestOnLine returns the point on the infinite line through a and b closest
// to p.
func ClosestOnLine[V geom.Vector[V]](p, a, b V) V {
	if a == b {
		return a
	}
	return Lerp(a, b, PointLineParameter(p, a, b))
}

// ClosestOnSegment returns the point on segment ab closest to p.
func ClosestOnSegment[V geom.Vector[V]](p, a, b V) V {
	if a == b {
		return a
	}
	return Lerp(a, b, clamp01(PointLineParameter(p, a, b)))
}

// LineLineParameter returns the parameter s on line a0a1 of the point closest
// to line b0b1. ok is false when the lines are parallel and the closest
// approach is not unique.
func LineLineParameter(a0, a1, b0, b1 mgl64.Vec3) (s float64, ok bool) {
	d1 := a1.Sub(a0)
	d2 := b1.Sub(b0)
	r := a0.Sub(b0)
	a := d1.Dot(d1)
	e := d2.Dot(d2)
	b := d1.Dot(d2)
	c := d1.Dot(r)
	f := d2.Dot(r)

	denom := a*e - b*b
	if denom == 0 {
		return 0, false
	}
	return (b*f - c*e) / denom, true
}

// ClosestOnTriangle returns the point of triangle abc closest to p.
//
// The point is classified against the Voronoi regions of the triangle: the
// three corners first, then the edges in the order ab, bc, ca, then the face.
// A triangle with zero area falls back to the closest of its three edges.
func ClosestOnTriangle(p, a, b, c mgl64.Vec3) mgl64.Vec3 {
	n := b.Sub(a).Cross(c.Sub(a))
	nn := n.Dot(n)
	if nn == 0 {
		return closestOnEdges(p, a, b, c)
	}

	tab := PointLineParameter(p, a, b)
	tbc := PointLineParameter(p, b, c)
	tca := PointLineParameter(p, c, a)
	switch {
	case tca > 1 && tab < 0:
		return a
	case tab > 1 && tbc < 0:
		return b
	case tbc > 1 && tca < 0:
		return c
	}

	if q, ok := onEdge(tab, p, a, b, c); ok {
		return q
	}
	if q, ok := onEdge(tbc, p, b, c, a); ok {
		return q
	}
	if q, ok := onEdge(tca, p, c, a, b); ok {
		return q
	}
	return p.Sub(n.Mul(p.Sub(a).Dot(n) / nn))
}

// onEdge reports the closest point on edge ab when p lies in that edge's
// region: its parameter is inside [0, 1] and it is on the far side of the edge
// from the opposite vertex c.
func onEdge(t float64, p, a, b, c mgl64.Vec3) (mgl64.Vec3, bool) {
	if t < 0 || t > 1 {
		return mgl64.Vec3{}, false
	}
	on := Lerp(a, b, t)
	if p.Sub(on).Dot(OffsetToLine(c, a, b)) >= 0 {
		return on, true
	}
	return mgl64.Vec3{}, false
}

func closestOnEdges(p, a, b, c mgl64.Vec3) mgl64.Vec3 {
	best := ClosestOnSegment(p, a, b)
	bestD := geom.LenSqr(p.Sub(best))
	for _, q := range [2]mgl64.Vec3{ClosestOnSegment(p, b, c), ClosestOnSegment(p, c, a)} {
		if d := geom.LenSqr(p.Sub(q)); d < bestD {
			best, bestD = q, d
		}
	}
	return best
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
