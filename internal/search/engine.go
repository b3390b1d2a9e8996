// Package search runs the bounded best-first search over knowledge states.
//
// The frontier and the successor lists are capped and dominated branches are
// pruned aggressively, so a solution is short but not certified minimal.
package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/MikeSquared-Agency/Podium/internal/knowledge"
	"github.com/MikeSquared-Agency/Podium/internal/oracle"
	"github.com/MikeSquared-Agency/Podium/internal/scoring"
)

// ErrInvalidConfig is returned before any node is built when the search
// parameters cannot describe a meaningful puzzle.
var ErrInvalidConfig = errors.New("invalid search configuration")

const (
	DefaultFrontierCap  = 100
	DefaultSuccessorCap = 1000

	// DefaultMaxCandidates bounds C(n, k), the races enumerated and run on
	// every expansion.
	DefaultMaxCandidates = 250000
)

// Options configures a search.
type Options struct {
	Competitors   int
	RaceSize      int
	Podium        int
	FrontierCap   int
	SuccessorCap  int
	Workers       int
	MaxExpansions int // 0 means unbounded
	MaxCandidates int // 0 means DefaultMaxCandidates
	Weights       scoring.WeightSet
}

// DefaultOptions returns the classic 25 competitors, races of 5, top 3.
func DefaultOptions() Options {
	return Options{
		Competitors:   25,
		RaceSize:      5,
		Podium:        3,
		FrontierCap:   DefaultFrontierCap,
		SuccessorCap:  DefaultSuccessorCap,
		Workers:       1,
		MaxCandidates: DefaultMaxCandidates,
		Weights:       scoring.DefaultWeights(),
	}
}

// Validate rejects configurations the search cannot run.
func (o Options) Validate() error {
	switch {
	case o.Competitors < 1:
		return fmt.Errorf("%w: need at least one competitor, got %d", ErrInvalidConfig, o.Competitors)
	case o.RaceSize < 2:
		return fmt.Errorf("%w: race size %d carries no ranking information", ErrInvalidConfig, o.RaceSize)
	case o.RaceSize > o.Competitors:
		return fmt.Errorf("%w: race size %d exceeds %d competitors", ErrInvalidConfig, o.RaceSize, o.Competitors)
	case o.Podium < 1 || o.Podium > o.Competitors:
		return fmt.Errorf("%w: podium %d outside [1,%d]", ErrInvalidConfig, o.Podium, o.Competitors)
	case o.FrontierCap < 1 || o.SuccessorCap < 1:
		return fmt.Errorf("%w: frontier and successor caps must be positive", ErrInvalidConfig)
	case o.MaxExpansions < 0:
		return fmt.Errorf("%w: negative max expansions", ErrInvalidConfig)
	case o.MaxCandidates < 0:
		return fmt.Errorf("%w: negative max candidates", ErrInvalidConfig)
	}
	if c, limit := oracle.Binomial(o.Competitors, o.RaceSize), o.candidateLimit(); c > limit {
		return fmt.Errorf("%w: %d choose %d races per expansion exceeds limit %d", ErrInvalidConfig, o.Competitors, o.RaceSize, limit)
	}
	if err := o.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

func (o Options) candidateLimit() int {
	if o.MaxCandidates == 0 {
		return DefaultMaxCandidates
	}
	return o.MaxCandidates
}

// Status is the terminal outcome of a search.
type Status string

const (
	StatusSolved    Status = "solved"
	StatusExhausted Status = "exhausted"
)

// Outcome is the result of Solve. When Status is StatusExhausted, Node is nil.
type Outcome struct {
	Status     Status        `json:"status"`
	Races      []oracle.Race `json:"races,omitempty"`
	Podium     []int         `json:"podium,omitempty"`
	Cost       float64       `json:"cost"`
	Expansions int           `json:"expansions"`
	Truncated  bool          `json:"truncated,omitempty"`
	Duration   time.Duration `json:"duration"`
	Node       *Node         `json:"-"`
}

// Solved reports whether a resolved node was found.
func (o *Outcome) Solved() bool { return o.Status == StatusSolved }

// Engine owns the frontier and visited collections of one search.
type Engine struct {
	opts      Options
	scorer    *scoring.Scorer
	generator *Generator
	observer  Observer
	logger    *slog.Logger
}

// New validates opts and prepares an engine. observer may be nil.
func New(opts Options, o oracle.Oracle, observer Observer, logger *slog.Logger) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if o == nil {
		return nil, fmt.Errorf("%w: no race oracle", ErrInvalidConfig)
	}
	if observer == nil {
		observer = Observers{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	scorer := scoring.NewScorer(opts.Weights, opts.Podium)
	return &Engine{
		opts:      opts,
		scorer:    scorer,
		generator: NewGenerator(opts.Competitors, opts.RaceSize, o, scorer, opts.SuccessorCap, opts.Workers),
		observer:  observer,
		logger:    logger,
	}, nil
}

// Solve repeatedly expands the cheapest frontier node until one resolves the
// podium or the frontier runs dry. Exhaustion is an Outcome, not an error;
// errors are reserved for oracle failures and cancellation.
func (e *Engine) Solve(ctx context.Context) (*Outcome, error) {
	start := time.Now()
	frontier := []*Node{Root(e.opts.Competitors, e.scorer)}
	var visited []*Node
	expansions := 0

	e.logger.Info("search started",
		"competitors", e.opts.Competitors,
		"race_size", e.opts.RaceSize,
		"podium", e.opts.Podium,
		"candidates_per_expansion", e.generator.Candidates(),
	)

	for len(frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := frontier[0]
		frontier = frontier[1:]

		if node.Resolved() {
			podium, _ := node.State.Podium(e.opts.Podium)
			out := &Outcome{
				Status:     StatusSolved,
				Races:      node.Races,
				Podium:     podium,
				Cost:       node.Cost,
				Expansions: expansions,
				Duration:   time.Since(start),
				Node:       node,
			}
			e.logger.Info("search solved", "races", len(out.Races), "expansions", expansions, "duration_ms", out.Duration.Milliseconds())
			return out, nil
		}

		if e.opts.MaxExpansions > 0 && expansions >= e.opts.MaxExpansions {
			e.logger.Warn("search stopped at expansion limit", "limit", e.opts.MaxExpansions)
			return e.exhausted(expansions, start, true), nil
		}

		visited = append(visited, node)
		successors, err := e.generator.Successors(ctx, node)
		if err != nil {
			return nil, fmt.Errorf("expand node at depth %d: %w", node.Depth(), err)
		}
		expansions++
		generated := len(successors)

		successors = dropKnown(successors, frontier, visited)
		before := len(frontier) + len(visited)
		frontier, visited = pruneSuperseded(frontier, visited, successors)
		ancestorsPruned := before - len(frontier) - len(visited)

		frontier = mergeFrontier(frontier, successors, e.opts.FrontierCap)

		e.observer.Expanded(ExpansionStats{
			Expansion:       expansions,
			Depth:           node.Depth(),
			Cost:            node.Cost,
			Generated:       generated,
			Pruned:          generated - len(successors),
			AncestorsPruned: ancestorsPruned,
			Frontier:        len(frontier),
			Visited:         len(visited),
		})
	}

	e.logger.Info("search exhausted", "expansions", expansions)
	return e.exhausted(expansions, start, false), nil
}

func (e *Engine) exhausted(expansions int, start time.Time, truncated bool) *Outcome {
	return &Outcome{
		Status:     StatusExhausted,
		Expansions: expansions,
		Truncated:  truncated,
		Duration:   time.Since(start),
	}
}

// mergeFrontier appends successors, stable-sorts by cost and keeps the
// cheapest limit nodes. Equal costs keep their existing order.
func mergeFrontier(frontier, successors []*Node, limit int) []*Node {
	frontier = append(frontier, successors...)
	slices.SortStableFunc(frontier, func(a, b *Node) int { return cmp.Compare(a.Cost, b.Cost) })
	if len(frontier) > limit {
		clear(frontier[limit:])
		frontier = frontier[:limit]
	}
	return frontier
}

// stateIndex buckets nodes by state hash for cheap duplicate lookups.
type stateIndex map[uint64][]*Node

func indexNodes(groups ...[]*Node) stateIndex {
	idx := make(stateIndex)
	for _, nodes := range groups {
		for _, n := range nodes {
			idx[n.hash] = append(idx[n.hash], n)
		}
	}
	return idx
}

// dropKnown removes successors whose state is already held by a frontier or
// visited node at equal or lower cost.
func dropKnown(successors, frontier, visited []*Node) []*Node {
	idx := indexNodes(frontier, visited)
	out := successors[:0]
	for _, s := range successors {
		known := false
		for _, m := range idx[s.hash] {
			if m.Cost <= s.Cost && m.SameState(s) {
				known = true
				break
			}
		}
		if !known {
			out = append(out, s)
		}
	}
	return out
}

// pruneSuperseded finds every frontier or visited node that no surviving
// successor reproduces at a strictly lower cost, then drops from both
// collections all nodes descending from (or equal to) such a node.
//
// This throws away branches that merely share early history with a
// superseded node. It keeps memory bounded at the price of completeness.
func pruneSuperseded(frontier, visited, successors []*Node) ([]*Node, []*Node) {
	idx := indexNodes(successors)
	var superseded []*Node
	for _, group := range [][]*Node{visited, frontier} {
		for _, m := range group {
			if len(m.Races) == 0 || improvedBy(m, idx[m.hash]) {
				continue
			}
			superseded = append(superseded, m)
		}
	}
	if len(superseded) == 0 {
		return frontier, visited
	}
	keep := func(nodes []*Node) []*Node {
		out := nodes[:0:0]
		for _, n := range nodes {
			if !descendsFrom(n, superseded) {
				out = append(out, n)
			}
		}
		return out
	}
	return keep(frontier), keep(visited)
}

func improvedBy(m *Node, candidates []*Node) bool {
	for _, s := range candidates {
		if s.Cost < m.Cost && s.SameState(m) {
			return true
		}
	}
	return false
}

func descendsFrom(n *Node, ancestors []*Node) bool {
	for _, a := range ancestors {
		if n.HasPrefix(a.Races) {
			return true
		}
	}
	return false
}

// Replay runs races in order from an empty state and returns the knowledge
// they establish.
func Replay(n int, races []oracle.Race, o oracle.Oracle) (*knowledge.State, error) {
	state := knowledge.New(n)
	for i, race := range races {
		ranking, err := o.Run(race)
		if err != nil {
			return nil, fmt.Errorf("replay race %d: %w", i, err)
		}
		state.ApplyRace(ranking)
	}
	return state, nil
}

// ReplayPath rebuilds the node a race sequence leads to, with its cost terms,
// as the search would have scored it.
func ReplayPath(n int, races []oracle.Race, o oracle.Oracle, scorer *scoring.Scorer) (*Node, error) {
	node := Root(n, scorer)
	for i, race := range races {
		ranking, err := o.Run(race)
		if err != nil {
			return nil, fmt.Errorf("replay race %d: %w", i, err)
		}
		node = node.child(race, ranking, scorer)
	}
	return node, nil
}
