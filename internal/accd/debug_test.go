//go:build abddebug

package accd

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func TestDeltaScaleAssert(t *testing.T) {
	for _, s := range []float64{0, 1, -0.5, 2} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Expected panic for delta scale %v", s)
				}
			}()
			p := testParams()
			p.DeltaScale = s
			PointPoint(Vertex3{Velocity: mgl64.Vec3{1, 0, 0}}, Vertex3{Position: mgl64.Vec3{1, 0, 0}}, p)
		}()
	}
}
