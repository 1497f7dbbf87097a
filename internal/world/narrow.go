package world

import (
	"github.com/racharron/abd/internal/accd"
)

// Query kinds, shared with the HTTP TOI endpoint and metrics labels.
const (
	QueryPointTriangle  = "point-triangle"
	QuerySegmentSegment = "segment-segment"
	QueryPointPoint     = "point-point"
	QueryPointSegment   = "point-segment"
)

// queryKind names the narrow-phase query used for a pair, or "" if the pair
// is not tested.
func queryKind(a, b FeatureKind) string {
	switch {
	case a == FeaturePoint && b == FeatureFace, a == FeatureFace && b == FeaturePoint:
		return QueryPointTriangle
	case a == FeatureEdge && b == FeatureEdge:
		return QuerySegmentSegment
	case a == FeaturePoint && b == FeaturePoint:
		return QueryPointPoint
	case a == FeaturePoint && b == FeatureEdge, a == FeatureEdge && b == FeaturePoint:
		return QueryPointSegment
	}
	return ""
}

// featureTOI runs ACCD for a feature pair.
func featureTOI(a, b Feature, p accd.Params) (float64, bool) {
	switch {
	case a.Kind == FeaturePoint && b.Kind == FeatureFace:
		return accd.PointTriangle(a.Verts[0], b.triangle(), p)
	case a.Kind == FeatureFace && b.Kind == FeaturePoint:
		return accd.TrianglePoint(a.triangle(), b.Verts[0], p)
	case a.Kind == FeatureEdge && b.Kind == FeatureEdge:
		return accd.SegmentSegment(a.segment(), b.segment(), p)
	case a.Kind == FeaturePoint && b.Kind == FeaturePoint:
		return accd.PointPoint(a.Verts[0], b.Verts[0], p)
	case a.Kind == FeaturePoint && b.Kind == FeatureEdge:
		return accd.PointSegment(a.Verts[0], b.segment(), p)
	case a.Kind == FeatureEdge && b.Kind == FeaturePoint:
		return accd.SegmentPoint(a.segment(), b.Verts[0], p)
	}
	return 0, false
}

// featureDistanceSqr is the squared distance of a and b after both moved for t.
func featureDistanceSqr(a, b Feature, t float64) float64 {
	for i := 0; i < a.Kind.vertexCount(); i++ {
		a.Verts[i].Advance(t)
	}
	for i := 0; i < b.Kind.vertexCount(); i++ {
		b.Verts[i].Advance(t)
	}

	switch {
	case a.Kind == FeaturePoint && b.Kind == FeatureFace:
		tri := b.triangle()
		return accd.PointTriangleDistance(&a.Verts[0], &tri)
	case a.Kind == FeatureFace && b.Kind == FeaturePoint:
		tri := a.triangle()
		return accd.PointTriangleDistance(&b.Verts[0], &tri)
	case a.Kind == FeatureEdge && b.Kind == FeatureEdge:
		sa, sb := a.segment(), b.segment()
		return accd.SegmentSegmentDistance(&sa, &sb)
	case a.Kind == FeaturePoint && b.Kind == FeaturePoint:
		return accd.PointPointDistance(&a.Verts[0], &b.Verts[0])
	case a.Kind == FeaturePoint && b.Kind == FeatureEdge:
		s := b.segment()
		return accd.PointSegmentDistance(&a.Verts[0], &s)
	case a.Kind == FeatureEdge && b.Kind == FeaturePoint:
		s := a.segment()
		return accd.PointSegmentDistance(&b.Verts[0], &s)
	}
	return 0
}

// approaching reports whether a and b get closer right after time 0.
func approaching(a, b Feature, step float64) bool {
	return featureDistanceSqr(a, b, 1e-3*step) < featureDistanceSqr(a, b, 0)
}
