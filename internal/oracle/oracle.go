// Package oracle models races over a hidden finishing order and enumerates
// the candidate races a search can run.
package oracle

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
)

// ErrMalformedRace is returned when a race does not contain exactly K distinct,
// in-range competitors.
var ErrMalformedRace = errors.New("malformed race")

// Race is a set of competitor ids, kept sorted ascending.
type Race []int

// NewRace returns a sorted copy of ids.
func NewRace(ids ...int) Race {
	r := slices.Clone(Race(ids))
	slices.Sort(r)
	return r
}

// Equal reports whether both races hold the same competitors.
func (r Race) Equal(other Race) bool {
	return slices.Equal(r, other)
}

// Key is a canonical string form, usable as a map key.
func (r Race) Key() string {
	var b strings.Builder
	for i, id := range r {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}

// Ranking lists the participants of a race in finishing order, winner first.
type Ranking []int

// Position returns the 1-based finishing position of c, or 0 if c did not race.
func (r Ranking) Position(c int) int {
	for i, id := range r {
		if id == c {
			return i + 1
		}
	}
	return 0
}

// Oracle runs a race against the hidden order.
type Oracle interface {
	Run(race Race) (Ranking, error)
}

// OracleFunc adapts a plain function to the Oracle interface.
type OracleFunc func(race Race) (Ranking, error)

func (f OracleFunc) Run(race Race) (Ranking, error) { return f(race) }

// Permutation is a hidden total order. order[c] is the overall rank of
// competitor c, 1 being the best.
type Permutation struct {
	order    []int
	raceSize int
}

// NewPermutation validates that order is a permutation of 1..len(order).
func NewPermutation(order []int, raceSize int) (*Permutation, error) {
	n := len(order)
	seen := make([]bool, n+1)
	for c, rank := range order {
		if rank < 1 || rank > n {
			return nil, fmt.Errorf("competitor %d: rank %d out of range [1,%d]", c, rank, n)
		}
		if seen[rank] {
			return nil, fmt.Errorf("competitor %d: rank %d assigned twice", c, rank)
		}
		seen[rank] = true
	}
	return &Permutation{order: slices.Clone(order), raceSize: raceSize}, nil
}

// RandomPermutation shuffles 1..n with a seeded source, so the same seed
// always yields the same hidden order.
func RandomPermutation(n, raceSize int, seed uint64) *Permutation {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	order := make([]int, n)
	for i := range order {
		order[i] = i + 1
	}
	rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	return &Permutation{order: order, raceSize: raceSize}
}

// Order returns a copy of the hidden order.
func (p *Permutation) Order() []int {
	return slices.Clone(p.order)
}

// Len is the number of competitors.
func (p *Permutation) Len() int { return len(p.order) }

// Run returns the participants sorted by their hidden rank.
func (p *Permutation) Run(race Race) (Ranking, error) {
	if err := ValidateRace(race, len(p.order), p.raceSize); err != nil {
		return nil, err
	}
	ranking := Ranking(slices.Clone(race))
	slices.SortFunc(ranking, func(a, b int) int {
		return p.order[a] - p.order[b]
	})
	return ranking, nil
}

// Top returns the competitors holding overall positions 1..top.
func (p *Permutation) Top(top int) []int {
	out := make([]int, top)
	for c, rank := range p.order {
		if rank <= top {
			out[rank-1] = c
		}
	}
	return out
}

// ValidateRace checks that race has exactly k distinct ids in [0, n).
func ValidateRace(race Race, n, k int) error {
	if len(race) != k {
		return fmt.Errorf("%w: got %d competitors, want %d", ErrMalformedRace, len(race), k)
	}
	seen := make(map[int]bool, len(race))
	for _, c := range race {
		if c < 0 || c >= n {
			return fmt.Errorf("%w: competitor %d out of range [0,%d)", ErrMalformedRace, c, n)
		}
		if seen[c] {
			return fmt.Errorf("%w: competitor %d appears twice", ErrMalformedRace, c)
		}
		seen[c] = true
	}
	return nil
}
