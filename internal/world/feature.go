package world

import (
	"iter"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/racharron/abd/internal/geom"
	"github.com/racharron/abd/internal/spatial"
)

// FeatureKind is the primitive a feature is made of.
type FeatureKind uint8

const (
	FeaturePoint FeatureKind = iota + 1
	FeatureEdge
	FeatureFace
)

func (k FeatureKind) String() string {
	switch k {
	case FeaturePoint:
		return "point"
	case FeatureEdge:
		return "edge"
	case FeatureFace:
		return "face"
	default:
		return "unknown"
	}
}

func (k FeatureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k FeatureKind) vertexCount() int {
	return int(k)
}

type vertex = geom.Vertex[mgl64.Vec3]

// Feature is a point, edge or face of a body, submitted to the broad phase on
// its own. Only the first Kind.vertexCount() vertices are used.
type Feature struct {
	Kind          FeatureKind
	Particle      bool // Belongs to a particle body
	Verts         [3]vertex
	HalfThickness float64
}

// Tagged is a feature tagged with the id of its body.
type Tagged = spatial.SubCollider[mgl64.Vec3, geom.UniformContext, Feature, int]

// handle refers to a feature by its position in the world's feature slice.
type handle = spatial.Index[mgl64.Vec3, geom.UniformContext, Tagged]

type handleContext = spatial.IndexedContext[geom.UniformContext, Tagged]

func (f Feature) AABBMin(ctx geom.UniformContext) mgl64.Vec3 {
	lo := f.Verts[0].AABBMin(ctx)
	for i := 1; i < f.Kind.vertexCount(); i++ {
		lo = geom.Min(lo, f.Verts[i].AABBMin(ctx))
	}
	return lo
}

func (f Feature) AABBMax(ctx geom.UniformContext) mgl64.Vec3 {
	hi := f.Verts[0].AABBMax(ctx)
	for i := 1; i < f.Kind.vertexCount(); i++ {
		hi = geom.Max(hi, f.Verts[i].AABBMax(ctx))
	}
	return hi
}

func (f Feature) AABBMinAxis(ctx geom.UniformContext, axis int) float64 {
	lo := f.Verts[0].AABBMinAxis(ctx, axis)
	for i := 1; i < f.Kind.vertexCount(); i++ {
		lo = math.Min(lo, f.Verts[i].AABBMinAxis(ctx, axis))
	}
	return lo
}

func (f Feature) AABBMaxAxis(ctx geom.UniformContext, axis int) float64 {
	hi := f.Verts[0].AABBMaxAxis(ctx, axis)
	for i := 1; i < f.Kind.vertexCount(); i++ {
		hi = math.Max(hi, f.Verts[i].AABBMaxAxis(ctx, axis))
	}
	return hi
}

// InteractsWith accepts the pairs the narrow phase can test: point-face and
// edge-edge between any bodies, plus point-point and point-edge when the
// point is a particle.
func (f Feature) InteractsWith(other Feature, _ geom.UniformContext) bool {
	switch {
	case f.Kind == FeaturePoint && other.Kind == FeatureFace,
		f.Kind == FeatureFace && other.Kind == FeaturePoint,
		f.Kind == FeatureEdge && other.Kind == FeatureEdge:
		return true
	case f.Kind == FeaturePoint && other.Kind == FeaturePoint:
		return f.Particle || other.Particle
	case f.Kind == FeaturePoint && other.Kind == FeatureEdge:
		return f.Particle
	case f.Kind == FeatureEdge && other.Kind == FeaturePoint:
		return other.Particle
	}
	return false
}

// OccupiedCells follows the motion of a point precisely and covers the swept
// box of edges and faces.
func (f Feature) OccupiedCells(ctx geom.UniformContext, scale float64) iter.Seq[spatial.Cell] {
	if f.Kind == FeaturePoint {
		return spatial.SweptVertexCells(f.Verts[0], ctx, scale)
	}
	return spatial.CuboidCells(f.AABBMin(ctx), f.AABBMax(ctx), scale)
}

func (f Feature) segment() geom.Segment[mgl64.Vec3] {
	return geom.Segment[mgl64.Vec3]{A: f.Verts[0], B: f.Verts[1]}
}

func (f Feature) triangle() geom.Triangle[mgl64.Vec3] {
	return geom.Triangle[mgl64.Vec3]{A: f.Verts[0], B: f.Verts[1], C: f.Verts[2]}
}

// appendFeatures decomposes body b into tagged features.
func appendFeatures(dst []Tagged, b *Body) []Tagged {
	v := func(i int) vertex {
		return vertex{Position: b.Vertex(i), Velocity: b.Velocity}
	}
	tag := func(f Feature) Tagged {
		f.Particle = b.Kind == BodyParticle
		f.HalfThickness = b.HalfThickness
		return Tagged{Object: f, Collider: b.ID}
	}

	if b.Kind == BodyParticle || b.Mesh == nil {
		return append(dst, tag(Feature{Kind: FeaturePoint, Verts: [3]vertex{v(0)}}))
	}
	for i := range b.Mesh.Vertices {
		dst = append(dst, tag(Feature{Kind: FeaturePoint, Verts: [3]vertex{v(i)}}))
	}
	for _, e := range b.Mesh.Edges {
		dst = append(dst, tag(Feature{Kind: FeatureEdge, Verts: [3]vertex{v(e[0]), v(e[1])}}))
	}
	for _, f := range b.Mesh.Faces {
		dst = append(dst, tag(Feature{Kind: FeatureFace, Verts: [3]vertex{v(f[0]), v(f[1]), v(f[2])}}))
	}
	return dst
}
