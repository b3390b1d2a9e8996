package search

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/Podium/internal/oracle"
	"github.com/MikeSquared-Agency/Podium/internal/scoring"
)

// candidate remembers which combination produced a child so that ties in
// cost keep enumeration order no matter which worker found them.
type candidate struct {
	node  *Node
	index int
}

func byCostThenIndex(a, b candidate) int {
	if c := cmp.Compare(a.node.Cost, b.node.Cost); c != 0 {
		return c
	}
	return cmp.Compare(a.index, b.index)
}

// Generator expands a node into one child per possible race.
type Generator struct {
	races   []oracle.Race
	oracle  oracle.Oracle
	scorer  *scoring.Scorer
	cap     int
	workers int
}

// NewGenerator precomputes every k-subset of n competitors. The oracle must
// be safe for concurrent use when workers > 1.
func NewGenerator(n, k int, o oracle.Oracle, scorer *scoring.Scorer, successorCap, workers int) *Generator {
	if workers < 1 {
		workers = 1
	}
	return &Generator{
		races:   oracle.Combinations(n, k),
		oracle:  o,
		scorer:  scorer,
		cap:     successorCap,
		workers: workers,
	}
}

// Candidates is the number of races considered per expansion, C(n, k).
func (g *Generator) Candidates() int { return len(g.races) }

// Successors races every combination from parent and returns the cheapest
// children, at most the configured cap, sorted ascending by cost. The result
// is the same for any worker count.
func (g *Generator) Successors(ctx context.Context, parent *Node) ([]*Node, error) {
	chunk := (len(g.races) + g.workers - 1) / g.workers
	results := make([][]candidate, g.workers)

	eg, ctx := errgroup.WithContext(ctx)
	for w := 0; w < g.workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(g.races))
		if lo >= hi {
			continue
		}
		eg.Go(func() error {
			best, err := g.expandRange(ctx, parent, lo, hi)
			if err != nil {
				return err
			}
			results[w] = best
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var merged []candidate
	for _, r := range results {
		merged = append(merged, r...)
	}
	merged = keepBest(merged, g.cap)

	out := make([]*Node, len(merged))
	for i, c := range merged {
		out[i] = c.node
	}
	return out, nil
}

func (g *Generator) expandRange(ctx context.Context, parent *Node, lo, hi int) ([]candidate, error) {
	best := make([]candidate, 0, min(hi-lo, 2*g.cap))
	for i := lo; i < hi; i++ {
		if (i-lo)%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		race := g.races[i]
		ranking, err := g.oracle.Run(race)
		if err != nil {
			return nil, fmt.Errorf("race %v: %w", race, err)
		}
		best = append(best, candidate{node: parent.child(race, ranking, g.scorer), index: i})
		if len(best) >= 2*g.cap {
			best = keepBest(best, g.cap)
		}
	}
	return keepBest(best, g.cap), nil
}

func keepBest(cs []candidate, limit int) []candidate {
	slices.SortFunc(cs, byCostThenIndex)
	if len(cs) > limit {
		clear(cs[limit:])
		cs = cs[:limit]
	}
	return cs
}
