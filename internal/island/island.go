// Package island partitions a broad-phase population into islands: maximal
// groups of items connected through candidate pairs. No candidate pair spans
// two islands, so islands can be processed independently and in parallel.
package island

import (
	"cmp"
	"context"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/racharron/abd/internal/spatial"
)

// Pair is a candidate pair of positions in the broad phase's AllItems order,
// A < B.
type Pair struct {
	A, B int
}

// Island is a set of item positions together with the candidate pairs between
// them. Members and Pairs are sorted ascending.
type Island struct {
	Members []int
	Pairs   []Pair
}

// Build unions every close pair of db and returns the islands ordered by
// their smallest member. Items without any pair form singleton islands.
func Build[T, Ctx any](db spatial.SpatialDB[T, Ctx], ctx Ctx) []Island {
	n := db.Len()
	ds := newDisjointSet(n)
	var pairs []Pair
	for i, j := range db.SelfCloseIndices(ctx) {
		ds.union(i, j)
		pairs = append(pairs, Pair{A: min(i, j), B: max(i, j)})
	}

	slot := make([]int, n)
	for i := range slot {
		slot[i] = -1
	}
	var islands []Island
	for i := 0; i < n; i++ {
		root := ds.find(i)
		if slot[root] < 0 {
			slot[root] = len(islands)
			islands = append(islands, Island{})
		}
		k := slot[root]
		islands[k].Members = append(islands[k].Members, i)
	}

	slices.SortFunc(pairs, func(p, q Pair) int {
		return cmp.Or(cmp.Compare(p.A, q.A), cmp.Compare(p.B, q.B))
	})
	for _, p := range pairs {
		k := slot[ds.find(p.A)]
		islands[k].Pairs = append(islands[k].Pairs, p)
	}
	return islands
}

// Interacting returns the islands that contain at least one pair.
func Interacting(islands []Island) []Island {
	var out []Island
	for _, is := range islands {
		if len(is.Pairs) > 0 {
			out = append(out, is)
		}
	}
	return out
}

// Sizes returns the member count of every island.
func Sizes(islands []Island) []int {
	out := make([]int, len(islands))
	for i, is := range islands {
		out[i] = len(is.Members)
	}
	return out
}

// Dispatch calls fn once per island with at most workers calls in flight.
// If workers is 0, it defaults to NumCPU. The first error cancels the context
// passed to the remaining calls and is returned.
func Dispatch(ctx context.Context, islands []Island, workers int, fn func(ctx context.Context, i int, is Island) error) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, is := range islands {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return fn(gctx, i, is)
		})
	}
	return g.Wait()
}
