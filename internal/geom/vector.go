// Package geom holds the moving primitives tested for collision and the small
// amount of dimension-generic vector arithmetic the rest of the module needs on
// top of mgl64.
package geom

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vector is satisfied by the mgl64 vectors used for points and velocities.
// Generic code reaches individual components with v[i] and len(v).
type Vector[V any] interface {
	mgl64.Vec2 | mgl64.Vec3
	Add(V) V
	Sub(V) V
	Mul(float64) V
	Dot(V) float64
	Len() float64
}

// Dims returns the number of components of V.
func Dims[V Vector[V]]() int {
	var v V
	return len(v)
}

// Splat returns a vector with every component set to s.
func Splat[V Vector[V]](s float64) V {
	var v V
	for i := 0; i < len(v); i++ {
		v[i] = s
	}
	return v
}

// AddScalar adds s to every component of v.
func AddScalar[V Vector[V]](v V, s float64) V {
	for i := 0; i < len(v); i++ {
		v[i] += s
	}
	return v
}

// Min returns the componentwise minimum of a and b.
func Min[V Vector[V]](a, b V) V {
	for i := 0; i < len(a); i++ {
		a[i] = math.Min(a[i], b[i])
	}
	return a
}

// Max returns the componentwise maximum of a and b.
func Max[V Vector[V]](a, b V) V {
	for i := 0; i < len(a); i++ {
		a[i] = math.Max(a[i], b[i])
	}
	return a
}

// LenSqr returns |v|².
func LenSqr[V Vector[V]](v V) float64 {
	return v.Dot(v)
}

// Midpoint returns (a+b)/2.
func Midpoint[V Vector[V]](a, b V) V {
	return a.Add(b).Mul(0.5)
}

// LessEq reports whether every component of a is <= the matching one of b.
func LessEq[V Vector[V]](a, b V) bool {
	for i := 0; i < len(a); i++ {
		if a[i] > b[i] {
			return false
		}
	}
	return true
}
