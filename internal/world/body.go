package world

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/racharron/abd/internal/meshload"
)

// BodyKind distinguishes triangle meshes from free particles.
type BodyKind uint8

const (
	BodyMesh BodyKind = iota
	BodyParticle
)

func (k BodyKind) String() string {
	switch k {
	case BodyMesh:
		return "mesh"
	case BodyParticle:
		return "particle"
	default:
		return "unknown"
	}
}

func (k BodyKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Body moves rigidly with a uniform linear velocity. A mesh body's vertices
// are its mesh's vertices offset by Position; a particle is a single point at
// Position.
type Body struct {
	ID            int
	Kind          BodyKind
	Mesh          *meshload.Mesh // Shared and read-only; nil for particles
	Position      mgl64.Vec3
	Velocity      mgl64.Vec3
	HalfThickness float64
}

// VertexCount returns the number of points the body is made of.
func (b *Body) VertexCount() int {
	if b.Kind == BodyParticle || b.Mesh == nil {
		return 1
	}
	return len(b.Mesh.Vertices)
}

// Vertex returns the world position of vertex i.
func (b *Body) Vertex(i int) mgl64.Vec3 {
	if b.Kind == BodyParticle || b.Mesh == nil {
		return b.Position
	}
	return b.Position.Add(b.Mesh.Vertices[i])
}

// Bounds returns the world (min, max) box of the body's vertices.
func (b *Body) Bounds() (mgl64.Vec3, mgl64.Vec3) {
	if b.Kind == BodyParticle || b.Mesh == nil {
		return b.Position, b.Position
	}
	lo, hi := b.Mesh.Bounds()
	return b.Position.Add(lo), b.Position.Add(hi)
}

// Advance moves the body by its velocity over dt.
func (b *Body) Advance(dt float64) {
	b.Position = b.Position.Add(b.Velocity.Mul(dt))
}

// reflect turns the body around on every axis along which it has left the
// arena [-extent, extent] and is still moving outwards. It reports whether
// any component changed.
func (b *Body) reflect(extent float64) bool {
	lo, hi := b.Bounds()
	bounced := false
	for axis := 0; axis < 3; axis++ {
		if (lo[axis] < -extent && b.Velocity[axis] < 0) || (hi[axis] > extent && b.Velocity[axis] > 0) {
			b.Velocity[axis] = -b.Velocity[axis]
			bounced = true
		}
	}
	return bounced
}
