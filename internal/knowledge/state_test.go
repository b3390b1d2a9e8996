package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Podium/internal/oracle"
)

func TestNewIsIdentity(t *testing.T) {
	s := New(4)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if s.Outranks(i, j) != (i == j) {
				t.Errorf("entry (%d,%d): expected %v", i, j, i == j)
			}
		}
	}
	assert.Equal(t, 4, s.Known())
	assert.Equal(t, 6, s.InfoMissing())
}

func TestApplyRaceAssertsAllPairs(t *testing.T) {
	s := New(5)
	s.ApplyRace(oracle.Ranking{3, 0, 4})

	assert.True(t, s.Outranks(3, 0))
	assert.True(t, s.Outranks(3, 4))
	assert.True(t, s.Outranks(0, 4))
	assert.False(t, s.Outranks(0, 3))
	assert.False(t, s.Outranks(1, 2))
	assert.Equal(t, 5+3, s.Known())
}

func TestLearnPropagatesBothDirections(t *testing.T) {
	s := New(4)
	s.ApplyRace(oracle.Ranking{1, 2})
	s.ApplyRace(oracle.Ranking{2, 3})
	assert.True(t, s.Outranks(1, 3), "superiors of the winner must inherit the loser's inferiors")

	s.ApplyRace(oracle.Ranking{0, 1})
	assert.True(t, s.Outranks(0, 2))
	assert.True(t, s.Outranks(0, 3))
	assert.True(t, s.IsTransitive())
}

func TestClosureHoldsAfterEveryRace(t *testing.T) {
	p := oracle.RandomPermutation(10, 3, 7)
	s := New(10)
	prev := s.InfoMissing()
	for i, race := range oracle.Combinations(10, 3) {
		if i%7 != 0 {
			continue
		}
		ranking, err := p.Run(race)
		require.NoError(t, err)
		s.ApplyRace(ranking)

		if !s.IsTransitive() {
			t.Fatalf("closure broken after race %v", race)
		}
		missing := s.InfoMissing()
		if missing > prev {
			t.Fatalf("information lost after race %v: %d > %d", race, missing, prev)
		}
		if missing < 0 {
			t.Fatalf("negative missing information %d", missing)
		}
		prev = missing
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := New(3)
	c := s.Clone()
	c.ApplyRace(oracle.Ranking{0, 1})

	assert.False(t, s.Outranks(0, 1))
	assert.True(t, c.Outranks(0, 1))
	assert.False(t, s.Equal(c))
}

func TestEqualAndHash(t *testing.T) {
	a := New(6)
	b := New(6)
	a.ApplyRace(oracle.Ranking{0, 1, 2})
	a.ApplyRace(oracle.Ranking{2, 3})
	// Same facts, learned in a different order.
	b.ApplyRace(oracle.Ranking{2, 3})
	b.ApplyRace(oracle.Ranking{0, 1, 2})

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Hash(), b.Hash())

	b.ApplyRace(oracle.Ranking{4, 5})
	assert.False(t, a.Equal(b))
	assert.NotEqual(t, a.Hash(), b.Hash())
}

func TestIsResolvedForTop_FullOrder(t *testing.T) {
	s := New(5)
	s.ApplyRace(oracle.Ranking{0, 1, 2, 3, 4})

	assert.True(t, s.IsResolvedForTop(3))
	assert.True(t, s.IsResolvedForTop(5))
	assert.Equal(t, 0, s.InfoMissing())

	podium, ok := s.Podium(3)
	require.True(t, ok)
	assert.Equal(t, []int{0, 1, 2}, podium)
}

func TestIsResolvedForTop_AmbiguousSecond(t *testing.T) {
	s := New(5)
	s.ApplyRace(oracle.Ranking{0, 1, 2})
	s.ApplyRace(oracle.Ranking{0, 3, 4})

	// 0 is clearly first, but both 1 and 3 have exactly one known superior.
	assert.True(t, s.IsResolvedForTop(1))
	assert.False(t, s.IsResolvedForTop(2))

	_, ok := s.Podium(2)
	assert.False(t, ok)
}

func TestIsResolvedForTop_NothingKnown(t *testing.T) {
	s := New(5)
	assert.False(t, s.IsResolvedForTop(1))
	assert.Equal(t, 0, s.Superiors(2))
}

func TestSuperiors(t *testing.T) {
	s := New(4)
	s.ApplyRace(oracle.Ranking{3, 2, 1})
	assert.Equal(t, 0, s.Superiors(3))
	assert.Equal(t, 1, s.Superiors(2))
	assert.Equal(t, 2, s.Superiors(1))
	assert.Equal(t, 0, s.Superiors(0))
}
