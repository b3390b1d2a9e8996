package search

import (
	"slices"

	"github.com/bits-and-blooms/bitset"

	"github.com/MikeSquared-Agency/Podium/internal/knowledge"
	"github.com/MikeSquared-Agency/Podium/internal/oracle"
	"github.com/MikeSquared-Agency/Podium/internal/scoring"
)

// Node is a knowledge state together with the races that produced it.
// Nodes are never mutated once constructed.
type Node struct {
	State *knowledge.State
	Races []oracle.Race
	Raced *bitset.BitSet
	Cost  float64

	breakdown scoring.Breakdown
	hash      uint64
}

// Root is the node before any race: identity state, empty path.
func Root(n int, scorer *scoring.Scorer) *Node {
	return newNode(knowledge.New(n), nil, bitset.New(uint(n)), scorer)
}

func newNode(state *knowledge.State, races []oracle.Race, raced *bitset.BitSet, scorer *scoring.Scorer) *Node {
	breakdown := scorer.Explain(len(races), state, raced)
	return &Node{
		State:     state,
		Races:     races,
		Raced:     raced,
		Cost:      breakdown.Total,
		breakdown: breakdown,
		hash:      state.Hash(),
	}
}

// child builds the node reached by running race from n.
func (n *Node) child(race oracle.Race, ranking oracle.Ranking, scorer *scoring.Scorer) *Node {
	state := n.State.Clone()
	state.ApplyRace(ranking)

	races := make([]oracle.Race, len(n.Races), len(n.Races)+1)
	copy(races, n.Races)
	races = append(races, race)

	raced := n.Raced.Clone()
	for _, c := range race {
		raced.Set(uint(c))
	}
	return newNode(state, races, raced, scorer)
}

// Depth is the number of races run on the path from the root.
func (n *Node) Depth() int { return len(n.Races) }

// Resolved reports whether the node's state pins down the podium.
func (n *Node) Resolved() bool { return n.breakdown.Resolved }

// Breakdown returns the cost terms computed at construction.
func (n *Node) Breakdown() scoring.Breakdown { return n.breakdown }

// SameState reports whether both nodes hold an identical relation.
func (n *Node) SameState(other *Node) bool {
	return n.hash == other.hash && n.State.Equal(other.State)
}

// HasPrefix reports whether n's path starts with path. An empty path is
// never a prefix, so the root supersedes nothing.
func (n *Node) HasPrefix(path []oracle.Race) bool {
	if len(path) == 0 || len(path) > len(n.Races) {
		return false
	}
	return slices.EqualFunc(n.Races[:len(path)], path, oracle.Race.Equal)
}
