// Package metrics exposes search and runner instrumentation to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MikeSquared-Agency/Podium/internal/search"
)

var (
	expansionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "podium",
		Subsystem: "search",
		Name:      "expansions_total",
		Help:      "Nodes expanded by the frontier loop",
	})

	successorsGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "podium",
		Subsystem: "search",
		Name:      "successors_generated_total",
		Help:      "Successors kept by the generator after capping",
	})

	successorsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "podium",
		Subsystem: "search",
		Name:      "successors_pruned_total",
		Help:      "Successors dropped because their state was already known at equal or lower cost",
	})

	ancestorsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "podium",
		Subsystem: "search",
		Name:      "ancestors_pruned_total",
		Help:      "Frontier and visited nodes removed as descendants of superseded nodes",
	})

	frontierSize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "podium",
		Subsystem: "search",
		Name:      "frontier_size",
		Help:      "Frontier size after the most recent expansion",
	})

	nodeDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "podium",
		Subsystem: "search",
		Name:      "expanded_depth",
		Help:      "Depth of expanded nodes",
		Buckets:   prometheus.LinearBuckets(0, 1, 12),
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "podium",
		Subsystem: "runner",
		Name:      "runs_total",
		Help:      "Finished runs by outcome",
	}, []string{"outcome"})

	runRaces = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "podium",
		Subsystem: "runner",
		Name:      "solution_races",
		Help:      "Number of races in solved runs",
		Buckets:   prometheus.LinearBuckets(1, 1, 12),
	})

	solveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "podium",
		Subsystem: "runner",
		Name:      "solve_duration_seconds",
		Help:      "Wall time of Solve calls",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	})
)

// Outcome labels outside this set are recorded as "unknown".
var knownOutcomes = map[string]bool{
	string(search.StatusSolved):    true,
	string(search.StatusExhausted): true,
	"failed":                       true,
	"cancelled":                    true,
}

func sanitizeOutcome(outcome string) string {
	if knownOutcomes[outcome] {
		return outcome
	}
	return "unknown"
}

// Observer feeds expansion reports into the search metrics.
type Observer struct{}

func NewObserver() *Observer { return &Observer{} }

func (*Observer) Expanded(stats search.ExpansionStats) {
	expansionsTotal.Inc()
	successorsGenerated.Add(float64(stats.Generated))
	successorsPruned.Add(float64(stats.Pruned))
	ancestorsPruned.Add(float64(stats.AncestorsPruned))
	frontierSize.Set(float64(stats.Frontier))
	nodeDepth.Observe(float64(stats.Depth))
}

// RecordOutcome records a finished search.
func RecordOutcome(outcome *search.Outcome) {
	runsTotal.WithLabelValues(sanitizeOutcome(string(outcome.Status))).Inc()
	solveDuration.Observe(outcome.Duration.Seconds())
	if outcome.Solved() {
		runRaces.Observe(float64(len(outcome.Races)))
	}
}

// RecordFailure records a run that ended in an error rather than an outcome.
func RecordFailure(outcome string, elapsed time.Duration) {
	runsTotal.WithLabelValues(sanitizeOutcome(outcome)).Inc()
	solveDuration.Observe(elapsed.Seconds())
}
