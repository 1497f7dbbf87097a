package distance

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/racharron/abd/internal/geom"
)

// PointPoint returns |p-q|².
func PointPoint[V geom.Vector[V]](p, q V) float64 {
	return geom.LenSqr(p.Sub(q))
}

// PointSegment returns the squared distance from p to segment ab. A segment of
// zero length is treated as the point a.
func PointSegment[V geom.Vector[V]](p, a, b V) float64 {
	return geom.LenSqr(p.Sub(ClosestOnSegment(p, a, b)))
}

// PointTriangle returns the squared distance from p to triangle abc.
func PointTriangle(p, a, b, c mgl64.Vec3) float64 {
	return geom.LenSqr(p.Sub(ClosestOnTriangle(p, a, b, c)))
}

// SegmentSegment returns the squared distance between segments a0a1 and b0b1.
//
// For skew segments the line-line parameter on a is clamped, the closest point
// on b to the result is clamped, and a is re-projected from there. Parallel
// segments are resolved from their endpoint ordering along a.
func SegmentSegment(a0, a1, b0, b1 mgl64.Vec3) float64 {
	if a0 == a1 {
		return PointSegment(a0, b0, b1)
	}
	if b0 == b1 {
		return PointSegment(b0, a0, a1)
	}
	s, ok := LineLineParameter(a0, a1, b0, b1)
	if !ok {
		return parallelSegments(a0, a1, b0, b1)
	}
	p := Lerp(a0, a1, clamp01(s))
	q := Lerp(b0, b1, clamp01(PointLineParameter(p, b0, b1)))
	p = Lerp(a0, a1, clamp01(PointLineParameter(q, a0, a1)))
	return geom.LenSqr(p.Sub(q))
}

func parallelSegments(a0, a1, b0, b1 mgl64.Vec3) float64 {
	v := a1.Sub(a0)
	lo, hi := b0, b1
	if b1.Sub(b0).Dot(v) < 0 {
		lo, hi = b1, b0
	}
	if d := lo.Sub(a1); d.Dot(v) > 0 {
		return geom.LenSqr(d)
	}
	if d := a0.Sub(hi); d.Dot(v) > 0 {
		return geom.LenSqr(d)
	}
	return geom.LenSqr(BetweenParallelLines(a0, a1, b0))
}

// LineLine returns the squared distance between the infinite lines a0a1 and
// b0b1.
func LineLine(a0, a1, b0, b1 mgl64.Vec3) float64 {
	s, ok := LineLineParameter(a0, a1, b0, b1)
	if !ok {
		return geom.LenSqr(BetweenParallelLines(a0, a1, b0))
	}
	p := Lerp(a0, a1, s)
	return geom.LenSqr(ClosestOnLine(p, b0, b1).Sub(p))
}

// AABBAABB returns the squared distance between two axis aligned boxes: the
// sum of the squared gaps on the axes where they do not overlap.
func AABBAABB[V geom.Vector[V]](amin, amax, bmin, bmax V) float64 {
	var sum float64
	for i := 0; i < len(amin); i++ {
		gap := math.Max(amin[i], bmin[i]) - math.Min(amax[i], bmax[i])
		if gap > 0 {
			sum += gap * gap
		}
	}
	return sum
}
