package geom

import "math"

// ColliderPart is a distinct piece of a collider that is tested for collision:
// for two triangle meshes these are the vertices, edges and faces.
//
// All methods are pure data transforms. Centering only changes the frame of
// reference and has no physical effect.
type ColliderPart[V Vector[V]] interface {
	// Advance moves every vertex linearly by its velocity times dt.
	Advance(dt float64)
	// MaxSpeed is the largest vertex speed.
	MaxSpeed() float64
	// CenterPosition subtracts p from every vertex position.
	CenterPosition(p V)
	// CenterVelocity subtracts v from every vertex velocity.
	CenterVelocity(v V)
	// CurrentAABB is the (min, max) box of the current positions.
	CurrentAABB() (V, V)
	// VelocityAABB is the (min, max) box of the velocities.
	VelocityAABB() (V, V)
}

// Part constrains a type parameter to be a pointer to T that implements
// ColliderPart. It lets generic code take primitives by value and mutate its
// private copies.
type Part[V Vector[V], T any] interface {
	*T
	ColliderPart[V]
}

// =============================================================================
// VERTEX
// =============================================================================

// Vertex is a point moving linearly: x(t) = Position + Velocity*t.
type Vertex[V Vector[V]] struct {
	Position V
	Velocity V
}

// At returns the position after t units of time.
func (v Vertex[V]) At(t float64) V {
	return v.Position.Add(v.Velocity.Mul(t))
}

func (v *Vertex[V]) Advance(dt float64) {
	v.Position = v.At(dt)
}

func (v *Vertex[V]) MaxSpeed() float64 {
	return v.Velocity.Len()
}

func (v *Vertex[V]) CenterPosition(p V) {
	v.Position = v.Position.Sub(p)
}

func (v *Vertex[V]) CenterVelocity(c V) {
	v.Velocity = v.Velocity.Sub(c)
}

func (v *Vertex[V]) CurrentAABB() (V, V) {
	return v.Position, v.Position
}

func (v *Vertex[V]) VelocityAABB() (V, V) {
	return v.Velocity, v.Velocity
}

// =============================================================================
// SEGMENT
// =============================================================================

// Segment is an edge between two moving vertices.
type Segment[V Vector[V]] struct {
	A, B Vertex[V]
}

func (s *Segment[V]) Advance(dt float64) {
	s.A.Advance(dt)
	s.B.Advance(dt)
}

func (s *Segment[V]) MaxSpeed() float64 {
	return math.Max(s.A.MaxSpeed(), s.B.MaxSpeed())
}

func (s *Segment[V]) CenterPosition(p V) {
	s.A.CenterPosition(p)
	s.B.CenterPosition(p)
}

func (s *Segment[V]) CenterVelocity(c V) {
	s.A.CenterVelocity(c)
	s.B.CenterVelocity(c)
}

func (s *Segment[V]) CurrentAABB() (V, V) {
	return Min(s.A.Position, s.B.Position), Max(s.A.Position, s.B.Position)
}

func (s *Segment[V]) VelocityAABB() (V, V) {
	return Min(s.A.Velocity, s.B.Velocity), Max(s.A.Velocity, s.B.Velocity)
}

// =============================================================================
// TRIANGLE
// =============================================================================

// Triangle is a face spanned by three moving vertices.
type Triangle[V Vector[V]] struct {
	A, B, C Vertex[V]
}

func (t *Triangle[V]) Advance(dt float64) {
	t.A.Advance(dt)
	t.B.Advance(dt)
	t.C.Advance(dt)
}

func (t *Triangle[V]) MaxSpeed() float64 {
	return math.Max(t.A.MaxSpeed(), math.Max(t.B.MaxSpeed(), t.C.MaxSpeed()))
}

func (t *Triangle[V]) CenterPosition(p V) {
	t.A.CenterPosition(p)
	t.B.CenterPosition(p)
	t.C.CenterPosition(p)
}

func (t *Triangle[V]) CenterVelocity(c V) {
	t.A.CenterVelocity(c)
	t.B.CenterVelocity(c)
	t.C.CenterVelocity(c)
}

func (t *Triangle[V]) CurrentAABB() (V, V) {
	return Min(t.A.Position, Min(t.B.Position, t.C.Position)),
		Max(t.A.Position, Max(t.B.Position, t.C.Position))
}

func (t *Triangle[V]) VelocityAABB() (V, V) {
	return Min(t.A.Velocity, Min(t.B.Velocity, t.C.Velocity)),
		Max(t.A.Velocity, Max(t.B.Velocity, t.C.Velocity))
}
