package scoring

import (
	"testing"

	"github.com/bits-and-blooms/bitset"

	"github.com/MikeSquared-Agency/Podium/internal/knowledge"
	"github.com/MikeSquared-Agency/Podium/internal/oracle"
)

func racedSet(n int, ids ...int) *bitset.BitSet {
	b := bitset.New(uint(n))
	for _, id := range ids {
		b.Set(uint(id))
	}
	return b
}

func TestDefaultWeightsValid(t *testing.T) {
	w := DefaultWeights()
	if err := w.Validate(); err != nil {
		t.Errorf("default weights invalid: %v", err)
	}
	if w.Unraced != 50 {
		t.Errorf("expected unraced weight 50, got %f", w.Unraced)
	}
}

func TestNegativeWeightRejected(t *testing.T) {
	w := DefaultWeights()
	w.InfoMissing = -1
	if err := w.Validate(); err == nil {
		t.Error("expected error for negative weight")
	}
}

func TestRootCost(t *testing.T) {
	s := NewScorer(DefaultWeights(), 1)
	state := knowledge.New(6)

	b := s.Explain(0, state, racedSet(6))
	if b.Unraced != 6 {
		t.Errorf("expected 6 unraced, got %d", b.Unraced)
	}
	if b.InfoMissing != 15 {
		t.Errorf("expected 15 missing facts, got %d", b.InfoMissing)
	}
	if b.Total != 6*50+15 {
		t.Errorf("expected total 315, got %f", b.Total)
	}
}

func TestCostAfterRace(t *testing.T) {
	s := NewScorer(DefaultWeights(), 1)
	state := knowledge.New(6)
	state.ApplyRace(oracle.Ranking{2, 1, 0})

	got := s.Cost(1, state, racedSet(6, 0, 1, 2))
	// 1 race + 3 unraced*50 + (21 - 9) missing
	if got != 1+150+12 {
		t.Errorf("expected 163, got %f", got)
	}
}

func TestResolvedStateHasZeroHeuristic(t *testing.T) {
	s := NewScorer(DefaultWeights(), 2)
	state := knowledge.New(4)
	state.ApplyRace(oracle.Ranking{3, 0, 1})
	state.ApplyRace(oracle.Ranking{3, 2})
	state.ApplyRace(oracle.Ranking{0, 2})

	b := s.Explain(3, state, racedSet(4, 0, 1, 2, 3))
	if !b.Resolved {
		t.Fatal("expected resolved state")
	}
	if b.Heuristic != 0 {
		t.Errorf("expected zero heuristic, got %f", b.Heuristic)
	}
	if b.Total != 3 {
		t.Errorf("expected cost equal to depth 3, got %f", b.Total)
	}
}

func TestWeightsScaleTerms(t *testing.T) {
	s := NewScorer(WeightSet{Depth: 2, Unraced: 10, InfoMissing: 0}, 1)
	state := knowledge.New(5)
	got := s.Cost(3, state, racedSet(5, 0))
	if got != 2*3+10*4 {
		t.Errorf("expected 46, got %f", got)
	}
}
