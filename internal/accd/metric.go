package accd

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/racharron/abd/internal/distance"
	"github.com/racharron/abd/internal/geom"
)

// 3-D primitives used by the typed queries.
type (
	Vertex3   = geom.Vertex[mgl64.Vec3]
	Segment3  = geom.Segment[mgl64.Vec3]
	Triangle3 = geom.Triangle[mgl64.Vec3]
)

// =============================================================================
// SQUARED DISTANCE METRICS
// =============================================================================

func PointPointDistance(a, b *Vertex3) float64 {
	return distance.PointPoint(a.Position, b.Position)
}

func PointSegmentDistance(a *Vertex3, b *Segment3) float64 {
	return distance.PointSegment(a.Position, b.A.Position, b.B.Position)
}

func SegmentPointDistance(a *Segment3, b *Vertex3) float64 {
	return PointSegmentDistance(b, a)
}

func SegmentSegmentDistance(a, b *Segment3) float64 {
	return distance.SegmentSegment(a.A.Position, a.B.Position, b.A.Position, b.B.Position)
}

func PointTriangleDistance(a *Vertex3, b *Triangle3) float64 {
	return distance.PointTriangle(a.Position, b.A.Position, b.B.Position, b.C.Position)
}

func TrianglePointDistance(a *Triangle3, b *Vertex3) float64 {
	return PointTriangleDistance(b, a)
}

// =============================================================================
// TYPED QUERIES
// =============================================================================

// PointPoint returns the time of impact of two moving points.
func PointPoint(a, b Vertex3, p Params) (float64, bool) {
	return ACCD[mgl64.Vec3](a, b, PointPointDistance, p)
}

// PointSegment returns the time of impact of a moving point and edge.
func PointSegment(a Vertex3, b Segment3, p Params) (float64, bool) {
	return ACCD[mgl64.Vec3](a, b, PointSegmentDistance, p)
}

// SegmentPoint is PointSegment with the arguments swapped.
func SegmentPoint(a Segment3, b Vertex3, p Params) (float64, bool) {
	return ACCD[mgl64.Vec3](a, b, SegmentPointDistance, p)
}

// SegmentSegment returns the time of impact of two moving edges.
func SegmentSegment(a, b Segment3, p Params) (float64, bool) {
	return ACCD[mgl64.Vec3](a, b, SegmentSegmentDistance, p)
}

// PointTriangle returns the time of impact of a moving point and face.
func PointTriangle(a Vertex3, b Triangle3, p Params) (float64, bool) {
	return ACCD[mgl64.Vec3](a, b, PointTriangleDistance, p)
}

// TrianglePoint is PointTriangle with the arguments swapped.
func TrianglePoint(a Triangle3, b Vertex3, p Params) (float64, bool) {
	return ACCD[mgl64.Vec3](a, b, TrianglePointDistance, p)
}

func assertDeltaScale(deltaScale float64) {
	if debugChecks && !(deltaScale > 0 && deltaScale < 1) {
		panic(fmt.Sprintf("accd: delta scale %v outside (0, 1)", deltaScale))
	}
}
