package spatial

import (
	"iter"
	"math"

	"github.com/racharron/abd/internal/distance"
	"github.com/racharron/abd/internal/geom"
)

// Cell is an integer grid coordinate. Unused trailing axes stay zero.
type Cell [3]int

// TransientHashGrid buckets items by the cells their motion over a step
// touches. It is built once per query batch and thrown away (or Cleared).
//
// Items are stored in an arena; cells hold arena indices, so each item
// appears at most once per cell no matter how its cells were enumerated.
type TransientHashGrid[T Object[T, V, Ctx], V geom.Vector[V], Ctx any] struct {
	scale float64
	items []gridEntry[T]
	cells map[Cell][]int
}

type gridEntry[T any] struct {
	item  T
	cells []Cell
}

// GridStats contains grid statistics for debugging.
type GridStats struct {
	Items          int
	NonEmptyCells  int
	TotalEntries   int
	MaxInCell      int
	AvgPerNonEmpty float64
}

// NewTransientHashGrid creates an empty grid with cells of edge length scale.
func NewTransientHashGrid[T Object[T, V, Ctx], V geom.Vector[V], Ctx any](scale float64) *TransientHashGrid[T, V, Ctx] {
	return &TransientHashGrid[T, V, Ctx]{
		scale: scale,
		cells: make(map[Cell][]int),
	}
}

// Add inserts item and returns its arena index.
func (g *TransientHashGrid[T, V, Ctx]) Add(ctx Ctx, item T) int {
	idx := len(g.items)
	var occupied []Cell
	for c := range cellsOf[V](item, ctx, g.scale) {
		list := g.cells[c]
		// Only idx is appended while it is being added.
		if n := len(list); n > 0 && list[n-1] == idx {
			continue
		}
		g.cells[c] = append(list, idx)
		occupied = append(occupied, c)
	}
	g.items = append(g.items, gridEntry[T]{item: item, cells: occupied})
	return idx
}

// AddAll inserts every item in order.
func (g *TransientHashGrid[T, V, Ctx]) AddAll(ctx Ctx, items []T) {
	for _, item := range items {
		g.Add(ctx, item)
	}
}

// Clear resets the grid without releasing the arena.
func (g *TransientHashGrid[T, V, Ctx]) Clear() {
	clear(g.cells)
	g.items = g.items[:0]
}

// SelfCloseIndices yields each pair of interacting items sharing a cell once,
// lower arena index first.
func (g *TransientHashGrid[T, V, Ctx]) SelfCloseIndices(ctx Ctx) iter.Seq2[int, int] {
	return func(yield func(int, int) bool) {
		// returned[j] == i once (i, j) has been considered.
		returned := make([]int, len(g.items))
		for j := range returned {
			returned[j] = -1
		}
		for i, e := range g.items {
			for _, c := range e.cells {
				for _, j := range g.cells[c] {
					if j <= i || returned[j] == i {
						continue
					}
					returned[j] = i
					if !e.item.InteractsWith(g.items[j].item, ctx) {
						continue
					}
					if !yield(i, j) {
						return
					}
				}
			}
		}
	}
}

func (g *TransientHashGrid[T, V, Ctx]) SelfClosePairs(ctx Ctx) iter.Seq2[T, T] {
	return func(yield func(T, T) bool) {
		for i, j := range g.SelfCloseIndices(ctx) {
			if !yield(g.items[i].item, g.items[j].item) {
				return
			}
		}
	}
}

// AllItems yields the items in insertion order.
func (g *TransientHashGrid[T, V, Ctx]) AllItems() iter.Seq[T] {
	return func(yield func(T) bool) {
		for _, e := range g.items {
			if !yield(e.item) {
				return
			}
		}
	}
}

func (g *TransientHashGrid[T, V, Ctx]) Len() int {
	return len(g.items)
}

// CellsOf returns the cells recorded for the item at arena index i.
func (g *TransientHashGrid[T, V, Ctx]) CellsOf(i int) []Cell {
	return g.items[i].cells
}

// Stats returns grid statistics for debugging/profiling.
func (g *TransientHashGrid[T, V, Ctx]) Stats() GridStats {
	var total, maxInCell int
	for _, list := range g.cells {
		total += len(list)
		maxInCell = max(maxInCell, len(list))
	}

	avgPerCell := 0.0
	if len(g.cells) > 0 {
		avgPerCell = float64(total) / float64(len(g.cells))
	}

	return GridStats{
		Items:          len(g.items),
		NonEmptyCells:  len(g.cells),
		TotalEntries:   total,
		MaxInCell:      maxInCell,
		AvgPerNonEmpty: avgPerCell,
	}
}

// =============================================================================
// CELL ENUMERATION
// =============================================================================

// cellsOf picks the most precise cell enumeration available for item.
func cellsOf[V geom.Vector[V], Ctx any, T Object[T, V, Ctx]](item T, ctx Ctx, scale float64) iter.Seq[Cell] {
	if o, ok := any(item).(CellOccupier[Ctx]); ok {
		return o.OccupiedCells(ctx, scale)
	}
	if v, ok := any(item).(geom.Vertex[V]); ok {
		if u, ok := any(ctx).(geom.UniformContext); ok {
			return SweptVertexCells(v, u, scale)
		}
	}
	return CuboidCells(item.AABBMin(ctx), item.AABBMax(ctx), scale)
}

// CuboidCells yields every cell between the cells containing lo and hi.
func CuboidCells[V geom.Vector[V]](lo, hi V, scale float64) iter.Seq[Cell] {
	var from, to Cell
	for i := 0; i < len(lo); i++ {
		from[i] = int(math.Floor(lo[i] / scale))
		to[i] = int(math.Floor(hi[i] / scale))
	}
	return func(yield func(Cell) bool) {
		c := from
		for {
			if !yield(c) {
				return
			}
			axis := 0
			for ; axis < len(c); axis++ {
				if c[axis] < to[axis] {
					c[axis]++
					break
				}
				c[axis] = from[axis]
			}
			if axis == len(c) {
				return
			}
		}
	}
}

// SweptVertexCells yields the cells a vertex passes within ctx.Offset of
// during the step: the cells of its swept box whose offset-inflated box
// intersects the motion segment.
func SweptVertexCells[V geom.Vector[V]](v geom.Vertex[V], ctx geom.UniformContext, scale float64) iter.Seq[Cell] {
	inv := 1 / scale
	a := v.Position.Mul(inv)
	b := v.At(ctx.StepSize).Mul(inv)
	r := ctx.Offset * inv
	return func(yield func(Cell) bool) {
		for c := range CuboidCells(v.AABBMin(ctx), v.AABBMax(ctx), scale) {
			var lo, hi V
			for i := 0; i < len(lo); i++ {
				lo[i] = float64(c[i]) - r
				hi[i] = float64(c[i]) + 1 + r
			}
			if !distance.AABBSegment(lo, hi, a, b) {
				continue
			}
			if !yield(c) {
				return
			}
		}
	}
}
