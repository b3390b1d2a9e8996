package search

import (
	"log/slog"
)

// ExpansionStats describes one iteration of the search loop.
type ExpansionStats struct {
	Expansion       int     `json:"expansion"`
	Depth           int     `json:"depth"`
	Cost            float64 `json:"cost"`
	Generated       int     `json:"generated"`
	Pruned          int     `json:"pruned"`
	AncestorsPruned int     `json:"ancestors_pruned"`
	Frontier        int     `json:"frontier"`
	Visited         int     `json:"visited"`
}

// Observer receives progress reports from the search loop. It is called
// synchronously from the loop and must not block for long.
type Observer interface {
	Expanded(stats ExpansionStats)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(stats ExpansionStats)

func (f ObserverFunc) Expanded(stats ExpansionStats) { f(stats) }

// Observers fans a report out to several observers in order.
type Observers []Observer

func (os Observers) Expanded(stats ExpansionStats) {
	for _, o := range os {
		o.Expanded(stats)
	}
}

// LogObserver logs every expansion at debug level.
type LogObserver struct {
	logger *slog.Logger
}

func NewLogObserver(logger *slog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (l *LogObserver) Expanded(stats ExpansionStats) {
	l.logger.Debug("node expanded",
		"expansion", stats.Expansion,
		"depth", stats.Depth,
		"cost", stats.Cost,
		"generated", stats.Generated,
		"pruned", stats.Pruned,
		"ancestors_pruned", stats.AncestorsPruned,
		"frontier", stats.Frontier,
		"visited", stats.Visited,
	)
}
