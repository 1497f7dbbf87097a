package world

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/racharron/abd/internal/config"
	"github.com/racharron/abd/internal/meshload"
)

// maxPlacementAttempts bounds rejection sampling per particle.
const maxPlacementAttempts = 100

// SceneFromConfig loads the configured mesh, if any, and builds the scene.
func SceneFromConfig(cfg config.SceneConfig, halfThickness float64) ([]*Body, error) {
	var mesh *meshload.Mesh
	if cfg.MeshPath != "" {
		m, err := meshload.Load(cfg.MeshPath)
		if err != nil {
			return nil, fmt.Errorf("scene mesh: %w", err)
		}
		mesh = m
	}
	return NewScene(cfg, halfThickness, mesh), nil
}

// NewScene places two copies of mesh head-on along X and scatters free
// particles around them. A nil mesh is replaced by a box.
//
// Bodies are numbered in order: the two meshes first, then the particles.
func NewScene(cfg config.SceneConfig, halfThickness float64, mesh *meshload.Mesh) []*Body {
	size := cfg.Extent / 4
	if mesh == nil {
		mesh = meshload.Box(mgl64.Vec3{size, size, size})
	} else {
		mesh = fitMesh(mesh, size)
	}

	bodies := []*Body{
		{
			Kind:     BodyMesh,
			Mesh:     mesh,
			Position: mgl64.Vec3{-cfg.Extent / 2, 0, 0},
			Velocity: mgl64.Vec3{cfg.Speed, 0, 0},
		},
		{
			Kind:     BodyMesh,
			Mesh:     mesh,
			Position: mgl64.Vec3{cfg.Extent / 2, size / 3, 0},
			Velocity: mgl64.Vec3{-cfg.Speed, 0, 0},
		},
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	minGap := 8 * halfThickness
	margin := 0.1 * cfg.Extent
	spread := cfg.Extent - margin

	for n := 0; n < cfg.Particles; n++ {
		var pos mgl64.Vec3
		placed := false
		for attempt := 0; attempt < maxPlacementAttempts && !placed; attempt++ {
			pos = mgl64.Vec3{
				(2*rng.Float64() - 1) * spread,
				(2*rng.Float64() - 1) * spread,
				(2*rng.Float64() - 1) * spread,
			}
			placed = clearOf(bodies, pos, margin, minGap)
		}
		if !placed {
			break
		}
		bodies = append(bodies, &Body{
			Kind:     BodyParticle,
			Position: pos,
			Velocity: mgl64.Vec3{
				(2*rng.Float64() - 1) * cfg.Speed,
				(2*rng.Float64() - 1) * cfg.Speed,
				(2*rng.Float64() - 1) * cfg.Speed,
			},
		})
	}

	for i, b := range bodies {
		b.ID = i
		b.HalfThickness = halfThickness
	}
	return bodies
}

// clearOf reports whether pos is outside every mesh body's bounds grown by
// margin and at least minGap from every particle.
func clearOf(bodies []*Body, pos mgl64.Vec3, margin, minGap float64) bool {
	for _, b := range bodies {
		if b.Kind == BodyParticle {
			if pos.Sub(b.Position).Len() < minGap {
				return false
			}
			continue
		}
		lo, hi := b.Bounds()
		inside := true
		for axis := 0; axis < 3; axis++ {
			if pos[axis] < lo[axis]-margin || pos[axis] > hi[axis]+margin {
				inside = false
				break
			}
		}
		if inside {
			return false
		}
	}
	return true
}

// fitMesh centers m on the origin and scales it so its largest half extent
// is size. Topology is shared with m.
func fitMesh(m *meshload.Mesh, size float64) *meshload.Mesh {
	lo, hi := m.Bounds()
	center := lo.Add(hi).Mul(0.5)
	half := hi.Sub(lo).Mul(0.5)
	largest := math.Max(half[0], math.Max(half[1], half[2]))
	scale := 1.0
	if largest > 0 {
		scale = size / largest
	}

	out := &meshload.Mesh{
		Vertices: make([]mgl64.Vec3, len(m.Vertices)),
		Edges:    m.Edges,
		Faces:    m.Faces,
	}
	for i, v := range m.Vertices {
		out.Vertices[i] = v.Sub(center).Mul(scale)
	}
	return out
}
