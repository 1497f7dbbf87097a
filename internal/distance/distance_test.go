package distance

import (
	"math"
	"math/rand"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const eps = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) <= eps*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

func randVec3(rng *rand.Rand, lo, hi float64) mgl64.Vec3 {
	return mgl64.Vec3{
		lo + rng.Float64()*(hi-lo),
		lo + rng.Float64()*(hi-lo),
		lo + rng.Float64()*(hi-lo),
	}
}

func TestLineLineParameter(t *testing.T) {
	tests := []struct {
		name           string
		a0, a1, b0, b1 mgl64.Vec3
		want           float64
		ok             bool
	}{
		{
			name: "crossing midpoint",
			a0:   mgl64.Vec3{-1, 1, 0}, a1: mgl64.Vec3{1, 1, 0},
			b0: mgl64.Vec3{0, -1, -1}, b1: mgl64.Vec3{0, -1, 1},
			want: 0.5, ok: true,
		},
		{
			name: "crossing at start",
			a0:   mgl64.Vec3{0, 1, 0}, a1: mgl64.Vec3{1, 1, 0},
			b0: mgl64.Vec3{0, -1, 0}, b1: mgl64.Vec3{0, -1, 1},
			want: 0, ok: true,
		},
		{
			name: "parallel",
			a0:   mgl64.Vec3{0, 1, -1}, a1: mgl64.Vec3{0, 1, 1},
			b0: mgl64.Vec3{0, -1, -1}, b1: mgl64.Vec3{0, -1, 1},
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LineLineParameter(tt.a0, tt.a1, tt.b0, tt.b1)
			if ok != tt.ok {
				t.Fatalf("Expected ok=%v, got %v", tt.ok, ok)
			}
			if ok && !near(got, tt.want) {
				t.Errorf("Expected parameter %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAABBAABB(t *testing.T) {
	tests := []struct {
		name                   string
		amin, amax, bmin, bmax mgl64.Vec3
		want                   float64
	}{
		{"overlapping", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{2, 2, 2}, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{3, 3, 3}, 0},
		{"nested", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{4, 4, 4}, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{2, 2, 2}, 0},
		{"touching", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 1, 1}, 0},
		{"gap on one axis", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{3, 0, 0}, mgl64.Vec3{4, 1, 1}, 4},
		{"gap on all axes", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{2, 3, 4}, mgl64.Vec3{5, 5, 5}, 1 + 4 + 9},
		{"gap below", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}, mgl64.Vec3{-3, 0, 0}, mgl64.Vec3{-1, 1, 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AABBAABB(tt.amin, tt.amax, tt.bmin, tt.bmax); !near(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if got := AABBAABB(tt.bmin, tt.bmax, tt.amin, tt.amax); !near(got, tt.want) {
				t.Errorf("Expected symmetric %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAABBAABB2D(t *testing.T) {
	got := AABBAABB(mgl64.Vec2{0, 0}, mgl64.Vec2{1, 1}, mgl64.Vec2{2, 3}, mgl64.Vec2{4, 4})
	if !near(got, 5) {
		t.Errorf("Expected 5, got %v", got)
	}
}

func TestPointSegment(t *testing.T) {
	a, b := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{2, 0, 0}
	tests := []struct {
		name string
		p    mgl64.Vec3
		want float64
	}{
		{"above middle", mgl64.Vec3{1, 1, 0}, 1},
		{"past end", mgl64.Vec3{4, 0, 0}, 4},
		{"before start", mgl64.Vec3{-1, 1, 0}, 2},
		{"on segment", mgl64.Vec3{0.5, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PointSegment(tt.p, a, b); !near(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}

	if got := PointSegment(mgl64.Vec3{1, 1, 1}, a, a); !near(got, 3) {
		t.Errorf("Expected zero length segment to act as a point (3), got %v", got)
	}
}

func TestClosestOnTriangleRegions(t *testing.T) {
	a, b, c := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}
	tests := []struct {
		name string
		p    mgl64.Vec3
		want mgl64.Vec3
	}{
		{"corner a", mgl64.Vec3{-1, -1, 0}, a},
		{"corner b", mgl64.Vec3{2, -1, 0}, b},
		{"corner c", mgl64.Vec3{-1, 2, 0}, c},
		{"edge ab", mgl64.Vec3{0.5, -1, 0.5}, mgl64.Vec3{0.5, 0, 0}},
		{"edge bc", mgl64.Vec3{1, 1, 0}, mgl64.Vec3{0.5, 0.5, 0}},
		{"edge ca", mgl64.Vec3{-1, 0.5, -2}, mgl64.Vec3{0, 0.5, 0}},
		{"face above", mgl64.Vec3{0.25, 0.25, 3}, mgl64.Vec3{0.25, 0.25, 0}},
		{"face below", mgl64.Vec3{0.1, 0.2, -1}, mgl64.Vec3{0.1, 0.2, 0}},
		{"on face", mgl64.Vec3{0.2, 0.2, 0}, mgl64.Vec3{0.2, 0.2, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClosestOnTriangle(tt.p, a, b, c)
			if !got.ApproxEqualThreshold(tt.want, 1e-12) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestClosestOnDegenerateTriangle(t *testing.T) {
	a, b, c := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 0, 0}
	got := PointTriangle(mgl64.Vec3{1.5, 1, 0}, a, b, c)
	if !near(got, 1) {
		t.Errorf("Expected 1, got %v", got)
	}
}

// TestPointTriangleAgainstSampling checks the closed form against a dense
// barycentric sampling of random triangles.
func TestPointTriangleAgainstSampling(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	const n = 60

	for trial := 0; trial < 50; trial++ {
		a, b, c := randVec3(rng, -1, 1), randVec3(rng, -1, 1), randVec3(rng, -1, 1)
		p := randVec3(rng, -2, 2)

		got := math.Sqrt(PointTriangle(p, a, b, c))
		sampled := math.Inf(1)
		for i := 0; i <= n; i++ {
			for j := 0; i+j <= n; j++ {
				u, v := float64(i)/n, float64(j)/n
				q := a.Add(b.Sub(a).Mul(u)).Add(c.Sub(a).Mul(v))
				sampled = math.Min(sampled, p.Sub(q).Len())
			}
		}

		if got > sampled+1e-9 {
			t.Errorf("Trial %d: closed form %v farther than sample %v", trial, got, sampled)
		}
		if sampled-got > 0.1 {
			t.Errorf("Trial %d: closed form %v much closer than sample %v", trial, got, sampled)
		}
	}
}

func TestSegmentSegment(t *testing.T) {
	tests := []struct {
		name           string
		a0, a1, b0, b1 mgl64.Vec3
		want           float64
	}{
		{"skew crossing", mgl64.Vec3{-1, 1, 0}, mgl64.Vec3{1, 1, 0}, mgl64.Vec3{0, -1, -1}, mgl64.Vec3{0, -1, 1}, 4},
		{"skew clamped", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 1, -1}, mgl64.Vec3{2, 1, 1}, 2},
		{"intersecting", mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, -1, 0}, mgl64.Vec3{0, 1, 0}, 0},
		{"parallel after", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{2, 1, 0}, mgl64.Vec3{3, 1, 0}, 2},
		{"parallel after reversed", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{3, 1, 0}, mgl64.Vec3{2, 1, 0}, 2},
		{"parallel before", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{-3, 1, 0}, mgl64.Vec3{-2, 1, 0}, 5},
		{"parallel overlapping", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0.5, 1, 0}, mgl64.Vec3{3, 1, 0}, 1},
		{"collinear overlapping", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0.5, 0, 0}, mgl64.Vec3{2, 0, 0}, 0},
		{"collinear apart", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{3, 0, 0}, mgl64.Vec3{2, 0, 0}, 1},
		{"degenerate a", mgl64.Vec3{0, 1, 0}, mgl64.Vec3{0, 1, 0}, mgl64.Vec3{-1, 0, 0}, mgl64.Vec3{1, 0, 0}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SegmentSegment(tt.a0, tt.a1, tt.b0, tt.b1); !near(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if got := SegmentSegment(tt.b0, tt.b1, tt.a0, tt.a1); !near(got, tt.want) {
				t.Errorf("Expected swapped %v, got %v", tt.want, got)
			}
		})
	}
}

func TestSegmentSegmentAgainstSampling(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	const n = 100

	for trial := 0; trial < 50; trial++ {
		a0, a1 := randVec3(rng, -1, 1), randVec3(rng, -1, 1)
		b0, b1 := randVec3(rng, -1, 1), randVec3(rng, -1, 1)

		got := math.Sqrt(SegmentSegment(a0, a1, b0, b1))
		sampled := math.Inf(1)
		for i := 0; i <= n; i++ {
			p := Lerp(a0, a1, float64(i)/n)
			for j := 0; j <= n; j++ {
				q := Lerp(b0, b1, float64(j)/n)
				sampled = math.Min(sampled, p.Sub(q).Len())
			}
		}

		if got > sampled+1e-9 {
			t.Errorf("Trial %d: closed form %v farther than sample %v", trial, got, sampled)
		}
		if sampled-got > 0.05 {
			t.Errorf("Trial %d: closed form %v much closer than sample %v", trial, got, sampled)
		}
	}
}

func TestOffsets(t *testing.T) {
	off := OffsetToLine(mgl64.Vec3{1, 2, 0}, mgl64.Vec3{0, 0, 0}, mgl64.Vec3{5, 0, 0})
	if !off.ApproxEqual(mgl64.Vec3{0, -2, 0}) {
		t.Errorf("Expected offset (0,-2,0), got %v", off)
	}

	between := BetweenParallelLines(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{7, 3, 4})
	if !between.ApproxEqual(mgl64.Vec3{0, 3, 4}) {
		t.Errorf("Expected offset (0,3,4), got %v", between)
	}

	collinear := BetweenParallelLines(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{7, 0, 0})
	if collinear != (mgl64.Vec3{}) {
		t.Errorf("Expected zero offset for coincident lines, got %v", collinear)
	}
}

func TestLineLine(t *testing.T) {
	got := LineLine(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{5, 2, -1}, mgl64.Vec3{5, 2, 1})
	if !near(got, 4) {
		t.Errorf("Expected 4, got %v", got)
	}
	got = LineLine(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{9, 0, 3}, mgl64.Vec3{10, 0, 3})
	if !near(got, 9) {
		t.Errorf("Expected 9 for parallel lines, got %v", got)
	}
}

func TestAABBSegment(t *testing.T) {
	lo, hi := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 1, 1}
	tests := []struct {
		name string
		a, b mgl64.Vec3
		want bool
	}{
		{"inside", mgl64.Vec3{0.2, 0.2, 0.2}, mgl64.Vec3{0.8, 0.8, 0.8}, true},
		{"crossing", mgl64.Vec3{-1, 0.5, 0.5}, mgl64.Vec3{2, 0.5, 0.5}, true},
		{"starting inside", mgl64.Vec3{0.5, 0.5, 0.5}, mgl64.Vec3{4, 4, -4}, true},
		{"stopping short", mgl64.Vec3{-3, 0.5, 0.5}, mgl64.Vec3{-1, 0.5, 0.5}, false},
		{"passing beside", mgl64.Vec3{-1, 2, 0.5}, mgl64.Vec3{2, 2, 0.5}, false},
		{"diagonal miss", mgl64.Vec3{-1, 0.5, 0}, mgl64.Vec3{0.5, 2, 0}, false},
		{"zero length inside", mgl64.Vec3{0.5, 0.5, 0.5}, mgl64.Vec3{0.5, 0.5, 0.5}, true},
		{"zero length outside", mgl64.Vec3{1.5, 0.5, 0.5}, mgl64.Vec3{1.5, 0.5, 0.5}, false},
		{"grazing face", mgl64.Vec3{-1, 1, 0.5}, mgl64.Vec3{2, 1, 0.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AABBSegment(lo, hi, tt.a, tt.b); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

// TestAABBSegmentFromInside mirrors a randomized property: a segment with one
// endpoint in the box always touches it.
func TestAABBSegmentFromInside(t *testing.T) {
	rng := rand.New(rand.NewSource(100))
	for i := 0; i < 100; i++ {
		lo := randVec3(rng, -4, 2)
		hi := lo.Add(randVec3(rng, 0, 2))
		for j := 0; j < 100; j++ {
			a := mgl64.Vec3{
				lo[0] + rng.Float64()*(hi[0]-lo[0]),
				lo[1] + rng.Float64()*(hi[1]-lo[1]),
				lo[2] + rng.Float64()*(hi[2]-lo[2]),
			}
			b := randVec3(rng, -4, 4)
			if !AABBSegment(lo, hi, a, b) {
				t.Fatalf("Expected segment from %v to %v to touch box [%v, %v]", a, b, lo, hi)
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Benchmarks
// -----------------------------------------------------------------------------

func BenchmarkSegmentSegment(b *testing.B) {
	a0, a1 := mgl64.Vec3{-1, 1, 0.3}, mgl64.Vec3{1, 1, -0.2}
	b0, b1 := mgl64.Vec3{0, -1, -1}, mgl64.Vec3{0.1, -1, 1}
	for i := 0; i < b.N; i++ {
		SegmentSegment(a0, a1, b0, b1)
	}
}

func BenchmarkPointTriangle(b *testing.B) {
	p := mgl64.Vec3{0.3, 0.2, 1}
	a, c, d := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, mgl64.Vec3{0, 1, 0}
	for i := 0; i < b.N; i++ {
		PointTriangle(p, a, c, d)
	}
}
