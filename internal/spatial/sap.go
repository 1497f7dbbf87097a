package spatial

import (
	"iter"
	"sort"

	"github.com/racharron/abd/internal/distance"
	"github.com/racharron/abd/internal/geom"
)

// SweepPrune keeps, for every axis, the Min and Max endpoints of each item's
// bounding interval in sorted order and counts the overlapping intervals.
//
// With temporal coherence (items move little between steps), the insertion
// sort in Update approaches O(n) and the counters are maintained by the swaps
// alone.
//
// Origin: Baraff & Witkin (SIGGRAPH 1992); Bullet Physics (2003)
type SweepPrune[T Object[T, V, Ctx], V geom.Vector[V], Ctx any] struct {
	items []T
	axes  []sapAxis
}

type markerKind uint8

const (
	markerMin markerKind = iota
	markerMax
)

// sapMarker is one end of an item's interval on an axis.
type sapMarker struct {
	item int
	kind markerKind
}

type sapAxis struct {
	markers    []sapMarker
	lo, hi     []float64 // Bounds per item, refreshed by Update
	collisions int
}

// SAPStats reports the state of each axis.
type SAPStats struct {
	Items    int
	Overlaps []int
	BestAxis int
}

// NewSweepPrune builds a sweep-and-prune over items under ctx. The slice is
// taken over as the item arena.
func NewSweepPrune[T Object[T, V, Ctx], V geom.Vector[V], Ctx any](ctx Ctx, items []T) *SweepPrune[T, V, Ctx] {
	s := &SweepPrune[T, V, Ctx]{
		items: items,
		axes:  make([]sapAxis, geom.Dims[V]()),
	}
	for axis := range s.axes {
		a := &s.axes[axis]
		a.lo = make([]float64, len(items))
		a.hi = make([]float64, len(items))
		a.markers = make([]sapMarker, 0, 2*len(items))
		for i := range items {
			a.markers = append(a.markers, sapMarker{i, markerMin}, sapMarker{i, markerMax})
		}
	}
	s.readBounds(ctx)

	for axis := range s.axes {
		a := &s.axes[axis]
		sort.SliceStable(a.markers, func(i, j int) bool {
			return a.before(a.markers[i], a.markers[j])
		})
		a.collisions = a.countOverlaps()
	}
	return s
}

// Update re-reads every bound under ctx and restores marker order with one
// insertion sort pass per axis, adjusting the overlap counters on each swap.
func (s *SweepPrune[T, V, Ctx]) Update(ctx Ctx) {
	s.readBounds(ctx)
	for axis := range s.axes {
		s.axes[axis].insertionSort()
	}
}

func (s *SweepPrune[T, V, Ctx]) readBounds(ctx Ctx) {
	for axis := range s.axes {
		a := &s.axes[axis]
		for i, item := range s.items {
			a.lo[i] = item.AABBMinAxis(ctx, axis)
			a.hi[i] = item.AABBMaxAxis(ctx, axis)
		}
	}
}

func (a *sapAxis) value(m sapMarker) float64 {
	if m.kind == markerMin {
		return a.lo[m.item]
	}
	return a.hi[m.item]
}

// before orders markers by bound value. At equal values a Min comes first so
// touching intervals count as overlapping.
func (a *sapAxis) before(m, n sapMarker) bool {
	vm, vn := a.value(m), a.value(n)
	if vm != vn {
		return vm < vn
	}
	return m.kind == markerMin && n.kind == markerMax
}

// countOverlaps scans a sorted axis: each Min overlaps every interval that
// is still open when it is reached.
func (a *sapAxis) countOverlaps() int {
	var open, count int
	for _, m := range a.markers {
		if m.kind == markerMin {
			count += open
			open++
		} else {
			open--
		}
	}
	return count
}

// insertionSort sorts markers in-place. A Min moving left past a Max starts an
// overlap; a Max moving left past a Min ends one.
func (a *sapAxis) insertionSort() {
	ms := a.markers
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0 && a.before(ms[j], ms[j-1]); j-- {
			moving, passed := ms[j], ms[j-1]
			switch {
			case moving.kind == markerMin && passed.kind == markerMax:
				a.collisions++
			case moving.kind == markerMax && passed.kind == markerMin:
				a.collisions--
			}
			ms[j], ms[j-1] = passed, moving
		}
	}
}

// bestAxis is the axis with the most overlapping intervals, the first on ties.
func (s *SweepPrune[T, V, Ctx]) bestAxis() int {
	best := 0
	for axis := 1; axis < len(s.axes); axis++ {
		if s.axes[axis].collisions > s.axes[best].collisions {
			best = axis
		}
	}
	return best
}

// SelfCloseIndices yields arena index pairs whose full bounding boxes overlap
// and that interact. ctx must be the context of the last Update.
func (s *SweepPrune[T, V, Ctx]) SelfCloseIndices(ctx Ctx) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		if len(s.axes) == 0 {
			return
		}
		ms := s.axes[s.bestAxis()].markers
		for i, m := range ms {
			if m.kind != markerMin {
				continue
			}
			a := s.items[m.item]
			aMin, aMax := a.AABBMin(ctx), a.AABBMax(ctx)
			for _, n := range ms[i+1:] {
				if n.item == m.item {
					break
				}
				if n.kind != markerMax {
					continue
				}
				b := s.items[n.item]
				if distance.AABBAABB(aMin, aMax, b.AABBMin(ctx), b.AABBMax(ctx)) != 0 {
					continue
				}
				if !a.InteractsWith(b, ctx) {
					continue
				}
				if !yield(m.item, n.item) {
					return
				}
			}
		}
	}
}

// SelfClosePairs yields the items of SelfCloseIndices.
func (s *SweepPrune[T, V, Ctx]) SelfClosePairs(ctx Ctx) iter.Seq2[T, T] {
	return func(yield func(T, T) bool) {
		for i, j := range s.SelfCloseIndices(ctx) {
			if !yield(s.items[i], s.items[j]) {
				return
			}
		}
	}
}

// AllItems yields the items in arena order.
func (s *SweepPrune[T, V, Ctx]) AllItems() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, item := range s.items {
			if !yield(item) {
				return
			}
		}
	}
}

func (s *SweepPrune[T, V, Ctx]) Len() int {
	return len(s.items)
}

// Items returns the arena. Elements may be changed in place before the next
// Update; the slice must not be resized.
func (s *SweepPrune[T, V, Ctx]) Items() []T {
	return s.items
}

// OverlapCounts returns the maintained overlap counter of every axis.
func (s *SweepPrune[T, V, Ctx]) OverlapCounts() []int {
	out := make([]int, len(s.axes))
	for axis := range s.axes {
		out[axis] = s.axes[axis].collisions
	}
	return out
}

// Stats returns sweep statistics for debugging/profiling.
func (s *SweepPrune[T, V, Ctx]) Stats() SAPStats {
	return SAPStats{
		Items:    len(s.items),
		Overlaps: s.OverlapCounts(),
		BestAxis: s.bestAxis(),
	}
}
