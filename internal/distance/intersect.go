package distance

import (
	"math"

	"github.com/racharron/abd/internal/geom"
)

// AABBSegment reports whether segment ab touches the box [lo, hi].
//
// Slab test over the segment parameter range [0, 1]. An axis along which the
// segment does not move only constrains the test when a lies outside the slab.
func AABBSegment[V geom.Vector[V]](lo, hi, a, b V) bool {
	enter, exit := 0.0, 1.0
	d := b.Sub(a)
	for i := 0; i < len(d); i++ {
		if d[i] == 0 {
			if a[i] < lo[i] || a[i] > hi[i] {
				return false
			}
			continue
		}
		t0 := (lo[i] - a[i]) / d[i]
		t1 := (hi[i] - a[i]) / d[i]
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		enter = math.Max(enter, t0)
		exit = math.Min(exit, t1)
		if enter > exit {
			return false
		}
	}
	return true
}
