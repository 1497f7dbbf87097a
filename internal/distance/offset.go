package distance

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/racharron/abd/internal/geom"
)

// OffsetToLine returns the shortest vector from p to the line through a and b.
func OffsetToLine[V geom.Vector[V]](p, a, b V) V {
	return ClosestOnLine(p, a, b).Sub(p)
}

// BetweenParallelLines returns the shortest vector from the line through a0
// and a1 to the parallel line through b0. Only the direction of line a is used.
// Coincident lines give the zero vector.
func BetweenParallelLines(a0, a1, b0 mgl64.Vec3) mgl64.Vec3 {
	v := a1.Sub(a0)
	ab := b0.Sub(a0)
	n := ab.Cross(v).Cross(v)
	nn := n.Dot(n)
	if nn == 0 {
		return mgl64.Vec3{}
	}
	return n.Mul(ab.Dot(n) / nn)
}
