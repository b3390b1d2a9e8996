// Package knowledge holds the "known to outrank" relation inferred from races.
//
// The relation is kept transitively closed after every update. Facts only come
// from observations of a real total order, so it never contains a cycle.
package knowledge

import (
	"encoding/binary"

	"github.com/bits-and-blooms/bitset"
	"github.com/cespare/xxhash/v2"

	"github.com/MikeSquared-Agency/Podium/internal/oracle"
)

// State is an N×N boolean relation. rows[i] has bit j set when i is known to
// outrank j. The diagonal is always set.
type State struct {
	n    int
	rows []*bitset.BitSet
}

// New returns the reflexive identity over n competitors.
func New(n int) *State {
	s := &State{n: n, rows: make([]*bitset.BitSet, n)}
	for i := range s.rows {
		s.rows[i] = bitset.New(uint(n))
		s.rows[i].Set(uint(i))
	}
	return s
}

// Len is the number of competitors.
func (s *State) Len() int { return s.n }

// Clone returns an independent deep copy.
func (s *State) Clone() *State {
	c := &State{n: s.n, rows: make([]*bitset.BitSet, s.n)}
	for i, row := range s.rows {
		c.rows[i] = row.Clone()
	}
	return c
}

// Outranks reports whether a is known to outrank b. Every competitor
// trivially "outranks" itself.
func (s *State) Outranks(a, b int) bool {
	return s.rows[a].Test(uint(b))
}

// Learn records a > b. Everyone already known to outrank a (a included)
// inherits everything b is known to outrank (b included).
func (s *State) Learn(a, b int) {
	if a == b || s.Outranks(a, b) {
		return
	}
	below := s.rows[b]
	for x := 0; x < s.n; x++ {
		if x == b || !s.rows[x].Test(uint(a)) {
			continue
		}
		s.rows[x].InPlaceUnion(below)
	}
}

// ApplyRace records every pairwise fact revealed by a race: each participant
// outranks all participants that finished behind it.
func (s *State) ApplyRace(ranking oracle.Ranking) {
	for i := 0; i < len(ranking); i++ {
		for j := i + 1; j < len(ranking); j++ {
			s.Learn(ranking[i], ranking[j])
		}
	}
}

// Known is the number of true entries, diagonal included.
func (s *State) Known() int {
	total := 0
	for _, row := range s.rows {
		total += int(row.Count())
	}
	return total
}

// InfoMissing is the number of pairwise facts still unknown relative to a
// fully ordered universe, N(N+1)/2 entries.
func (s *State) InfoMissing() int {
	return s.n*(s.n+1)/2 - s.Known()
}

// Superiors returns how many competitors are known to outrank c.
func (s *State) Superiors(c int) int {
	count := 0
	for x, row := range s.rows {
		if x != c && row.Test(uint(c)) {
			count++
		}
	}
	return count
}

// superiorCounts returns, for every competitor, the number of known superiors.
func (s *State) superiorCounts() []int {
	counts := make([]int, s.n)
	for x, row := range s.rows {
		for c, ok := row.NextSet(0); ok; c, ok = row.NextSet(c + 1) {
			if int(c) != x {
				counts[c]++
			}
		}
	}
	return counts
}

// IsResolvedForTop reports whether positions 1..top are pinned down: for
// every r in [0, top), at most one competitor has exactly r known superiors.
//
// Because facts come from a real order, the competitor truly at position r+1
// has at most r superiors, so "at most one" is equivalent to "exactly one".
func (s *State) IsResolvedForTop(top int) bool {
	tally := make(map[int]int, top)
	for _, c := range s.superiorCounts() {
		if c < top {
			tally[c]++
			if tally[c] > 1 {
				return false
			}
		}
	}
	return true
}

// Podium returns the competitor at each position 1..top. ok is false when
// the state is not resolved for top.
func (s *State) Podium(top int) (podium []int, ok bool) {
	if top > s.n || !s.IsResolvedForTop(top) {
		return nil, false
	}
	podium = make([]int, top)
	filled := 0
	for c, r := range s.superiorCounts() {
		if r < top {
			podium[r] = c
			filled++
		}
	}
	if filled != top {
		return nil, false
	}
	return podium, true
}

// Equal compares two states entry by entry.
func (s *State) Equal(other *State) bool {
	if s.n != other.n {
		return false
	}
	for i := range s.rows {
		if !s.rows[i].Equal(other.rows[i]) {
			return false
		}
	}
	return true
}

// Hash is a content hash of the relation. Equal states hash equally.
func (s *State) Hash() uint64 {
	buf := make([]byte, 0, s.n*8*((s.n+63)/64))
	for _, row := range s.rows {
		for _, w := range row.Words() {
			buf = binary.LittleEndian.AppendUint64(buf, w)
		}
	}
	return xxhash.Sum64(buf)
}

// IsTransitive checks the closure invariant: a>b and b>c imply a>c.
func (s *State) IsTransitive() bool {
	for a := 0; a < s.n; a++ {
		for b, ok := s.rows[a].NextSet(0); ok; b, ok = s.rows[a].NextSet(b + 1) {
			if !s.rows[a].IsSuperSet(s.rows[b]) {
				return false
			}
		}
	}
	return true
}
