package scoring

import (
	"github.com/bits-and-blooms/bitset"

	"github.com/MikeSquared-Agency/Podium/internal/knowledge"
)

// Breakdown captures every term of a node's cost.
type Breakdown struct {
	Depth       int     `json:"depth"`
	Unraced     int     `json:"unraced"`
	InfoMissing int     `json:"info_missing"`
	Resolved    bool    `json:"resolved"`
	Heuristic   float64 `json:"heuristic"`
	Total       float64 `json:"total"`
}

// Scorer computes f(n) = g(n) + h(n) for search nodes, where g is the number
// of races run and h estimates what is still unknown.
type Scorer struct {
	weights WeightSet
	podium  int
}

// NewScorer creates a Scorer targeting the top podium positions.
func NewScorer(weights WeightSet, podium int) *Scorer {
	return &Scorer{weights: weights, podium: podium}
}

// Podium is the number of positions the scorer treats as the goal.
func (s *Scorer) Podium() int { return s.podium }

// Cost returns the total cost of a node.
func (s *Scorer) Cost(depth int, state *knowledge.State, raced *bitset.BitSet) float64 {
	return s.Explain(depth, state, raced).Total
}

// Explain returns the full cost breakdown of a node.
//
// The heuristic is zero once the podium is resolved. Otherwise it heavily
// penalises competitors that never raced, then adds the count of pairwise
// facts still missing.
func (s *Scorer) Explain(depth int, state *knowledge.State, raced *bitset.BitSet) Breakdown {
	b := Breakdown{
		Depth:       depth,
		Unraced:     state.Len() - int(raced.Count()),
		InfoMissing: state.InfoMissing(),
		Resolved:    state.IsResolvedForTop(s.podium),
	}
	if !b.Resolved {
		b.Heuristic = s.weights.Unraced*float64(b.Unraced) + s.weights.InfoMissing*float64(b.InfoMissing)
	}
	b.Total = s.weights.Depth*float64(depth) + b.Heuristic
	return b
}
