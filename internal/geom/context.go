package geom

import "math"

// UniformContext sweeps every primitive over the same step and inflates its
// bounds by the same offset (typically a half thickness).
type UniformContext struct {
	StepSize float64
	Offset   float64
}

// Bounds of a primitive under a UniformContext cover the full motion over the
// step plus the offset on every side. Bare primitives always interact.

func (v Vertex[V]) AABBMin(ctx UniformContext) V {
	return AddScalar(Min(v.Position, v.At(ctx.StepSize)), -ctx.Offset)
}

func (v Vertex[V]) AABBMax(ctx UniformContext) V {
	return AddScalar(Max(v.Position, v.At(ctx.StepSize)), ctx.Offset)
}

func (v Vertex[V]) AABBMinAxis(ctx UniformContext, axis int) float64 {
	return math.Min(v.Position[axis], v.Position[axis]+v.Velocity[axis]*ctx.StepSize) - ctx.Offset
}

func (v Vertex[V]) AABBMaxAxis(ctx UniformContext, axis int) float64 {
	return math.Max(v.Position[axis], v.Position[axis]+v.Velocity[axis]*ctx.StepSize) + ctx.Offset
}

func (v Vertex[V]) InteractsWith(Vertex[V], UniformContext) bool {
	return true
}

func (s Segment[V]) AABBMin(ctx UniformContext) V {
	return Min(s.A.AABBMin(ctx), s.B.AABBMin(ctx))
}

func (s Segment[V]) AABBMax(ctx UniformContext) V {
	return Max(s.A.AABBMax(ctx), s.B.AABBMax(ctx))
}

func (s Segment[V]) AABBMinAxis(ctx UniformContext, axis int) float64 {
	return math.Min(s.A.AABBMinAxis(ctx, axis), s.B.AABBMinAxis(ctx, axis))
}

func (s Segment[V]) AABBMaxAxis(ctx UniformContext, axis int) float64 {
	return math.Max(s.A.AABBMaxAxis(ctx, axis), s.B.AABBMaxAxis(ctx, axis))
}

func (s Segment[V]) InteractsWith(Segment[V], UniformContext) bool {
	return true
}

func (t Triangle[V]) AABBMin(ctx UniformContext) V {
	return Min(t.A.AABBMin(ctx), Min(t.B.AABBMin(ctx), t.C.AABBMin(ctx)))
}

func (t Triangle[V]) AABBMax(ctx UniformContext) V {
	return Max(t.A.AABBMax(ctx), Max(t.B.AABBMax(ctx), t.C.AABBMax(ctx)))
}

func (t Triangle[V]) AABBMinAxis(ctx UniformContext, axis int) float64 {
	return math.Min(t.A.AABBMinAxis(ctx, axis), math.Min(t.B.AABBMinAxis(ctx, axis), t.C.AABBMinAxis(ctx, axis)))
}

func (t Triangle[V]) AABBMaxAxis(ctx UniformContext, axis int) float64 {
	return math.Max(t.A.AABBMaxAxis(ctx, axis), math.Max(t.B.AABBMaxAxis(ctx, axis), t.C.AABBMaxAxis(ctx, axis)))
}

func (t Triangle[V]) InteractsWith(Triangle[V], UniformContext) bool {
	return true
}
