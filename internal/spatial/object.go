// Package spatial provides broad-phase structures that turn a population of
// moving objects into candidate pairs for the narrow phase.
//
// Items are stored in arena slices and identified by their arena index, never
// by address or value: two items with identical geometry are still two items.
package spatial

import (
	"iter"

	"github.com/racharron/abd/internal/geom"
)

// Object is anything a broad phase can bound. Bounds cover the whole motion
// over the step described by the context plus any thickness offset.
//
// T is the concrete type implementing Object, so InteractsWith is statically
// typed against its own kind.
type Object[T any, V geom.Vector[V], Ctx any] interface {
	AABBMin(ctx Ctx) V
	AABBMax(ctx Ctx) V
	AABBMinAxis(ctx Ctx, axis int) float64
	AABBMaxAxis(ctx Ctx, axis int) float64
	// InteractsWith is false between parts of the same physical collider.
	InteractsWith(other T, ctx Ctx) bool
}

// SpatialDB is a broad-phase index over a set of objects.
//
// Sequences borrow the underlying storage; the structure must not be mutated
// while one is being ranged over.
type SpatialDB[T any, Ctx any] interface {
	// SelfClosePairs yields every candidate pair once, in no particular order.
	SelfClosePairs(ctx Ctx) iter.Seq2[T, T]
	// AllItems yields the items in the order SelfCloseIndices refers to.
	AllItems() iter.Seq[T]
	// SelfCloseIndices yields the same pairs as SelfClosePairs as positions
	// in AllItems.
	SelfCloseIndices(ctx Ctx) iter.Seq2[int, int]
	Len() int
}

// CellOccupier is implemented by objects that know the hash grid cells they
// touch more precisely than their bounding box.
type CellOccupier[Ctx any] interface {
	OccupiedCells(ctx Ctx, scale float64) iter.Seq[Cell]
}

// =============================================================================
// INDEXED PROXIES
// =============================================================================

// IndexedContext pairs a context with the external collection Index handles
// point into.
type IndexedContext[Ctx any, T any] struct {
	Context    Ctx
	Collection []T
}

// Index is a handle to Collection[i] of an IndexedContext. It lets a broad
// phase hold small integers while geometry stays in caller storage.
type Index[V geom.Vector[V], Ctx any, T Object[T, V, Ctx]] int

func (i Index[V, Ctx, T]) AABBMin(ctx IndexedContext[Ctx, T]) V {
	return ctx.Collection[i].AABBMin(ctx.Context)
}

func (i Index[V, Ctx, T]) AABBMax(ctx IndexedContext[Ctx, T]) V {
	return ctx.Collection[i].AABBMax(ctx.Context)
}

func (i Index[V, Ctx, T]) AABBMinAxis(ctx IndexedContext[Ctx, T], axis int) float64 {
	return ctx.Collection[i].AABBMinAxis(ctx.Context, axis)
}

func (i Index[V, Ctx, T]) AABBMaxAxis(ctx IndexedContext[Ctx, T], axis int) float64 {
	return ctx.Collection[i].AABBMaxAxis(ctx.Context, axis)
}

// InteractsWith is false for the same key and otherwise defers to the
// referenced objects.
func (i Index[V, Ctx, T]) InteractsWith(other Index[V, Ctx, T], ctx IndexedContext[Ctx, T]) bool {
	return i != other && ctx.Collection[i].InteractsWith(ctx.Collection[other], ctx.Context)
}

func (i Index[V, Ctx, T]) OccupiedCells(ctx IndexedContext[Ctx, T], scale float64) iter.Seq[Cell] {
	return cellsOf[V](ctx.Collection[i], ctx.Context, scale)
}

// IndexAll returns one handle per element of a collection of length n.
func IndexAll[V geom.Vector[V], Ctx any, T Object[T, V, Ctx]](n int) []Index[V, Ctx, T] {
	out := make([]Index[V, Ctx, T], n)
	for i := range out {
		out[i] = Index[V, Ctx, T](i)
	}
	return out
}

// =============================================================================
// SUB-COLLIDERS
// =============================================================================

// SubCollider tags an object with the id of the collider it belongs to.
// Parts of the same collider never interact.
type SubCollider[V geom.Vector[V], Ctx any, T Object[T, V, Ctx], G comparable] struct {
	Object   T
	Collider G
}

func (s SubCollider[V, Ctx, T, G]) AABBMin(ctx Ctx) V {
	return s.Object.AABBMin(ctx)
}

func (s SubCollider[V, Ctx, T, G]) AABBMax(ctx Ctx) V {
	return s.Object.AABBMax(ctx)
}

func (s SubCollider[V, Ctx, T, G]) AABBMinAxis(ctx Ctx, axis int) float64 {
	return s.Object.AABBMinAxis(ctx, axis)
}

func (s SubCollider[V, Ctx, T, G]) AABBMaxAxis(ctx Ctx, axis int) float64 {
	return s.Object.AABBMaxAxis(ctx, axis)
}

func (s SubCollider[V, Ctx, T, G]) InteractsWith(other SubCollider[V, Ctx, T, G], ctx Ctx) bool {
	return s.Collider != other.Collider && s.Object.InteractsWith(other.Object, ctx)
}

func (s SubCollider[V, Ctx, T, G]) OccupiedCells(ctx Ctx, scale float64) iter.Seq[Cell] {
	return cellsOf[V](s.Object, ctx, scale)
}
