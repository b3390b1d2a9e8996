package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps runs in process memory. It backs standalone mode when no
// database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	runs   map[uuid.UUID]*Run
	events []*RunEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{runs: make(map[uuid.UUID]*Run)}
}

func (m *MemoryStore) CreateRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = uuid.New()
	if run.Status == "" {
		run.Status = StatusPending
	}
	run.CreatedAt = time.Now()
	run.UpdatedAt = run.CreatedAt
	m.runs[run.ID] = copyRun(run)
	return nil
}

func (m *MemoryStore) GetRun(_ context.Context, id uuid.UUID) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return copyRun(r), nil
}

func (m *MemoryStore) ListRuns(_ context.Context, filter RunFilter) ([]*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*Run
	for _, r := range m.runs {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.Source != "" && r.Source != filter.Source {
			continue
		}
		out = append(out, copyRun(r))
	}
	slices.SortFunc(out, func(a, b *Run) int { return b.CreatedAt.Compare(a.CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateRun(_ context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run.UpdatedAt = time.Now()
	m.runs[run.ID] = copyRun(run)
	return nil
}

func (m *MemoryStore) byStatus(status RunStatus) []*Run {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Run
	for _, r := range m.runs {
		if r.Status == status {
			out = append(out, copyRun(r))
		}
	}
	slices.SortFunc(out, func(a, b *Run) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out
}

func (m *MemoryStore) GetPendingRuns(_ context.Context) ([]*Run, error) {
	return m.byStatus(StatusPending), nil
}

func (m *MemoryStore) GetRunningRuns(_ context.Context) ([]*Run, error) {
	return m.byStatus(StatusRunning), nil
}

func (m *MemoryStore) CreateRunEvent(_ context.Context, event *RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	event.ID = uuid.New()
	event.CreatedAt = time.Now()
	e := *event
	m.events = append(m.events, &e)
	return nil
}

func (m *MemoryStore) GetRunEvents(_ context.Context, runID uuid.UUID) ([]*RunEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*RunEvent
	for _, e := range m.events {
		if e.RunID == runID {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *MemoryStore) GetStats(_ context.Context) (*RunStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &RunStats{}
	var races, durations float64
	var timed int
	for _, r := range m.runs {
		switch r.Status {
		case StatusPending:
			stats.TotalPending++
		case StatusRunning:
			stats.TotalRunning++
		case StatusSolved:
			stats.TotalSolved++
			races += float64(len(r.Races))
			if r.StartedAt != nil && r.CompletedAt != nil {
				durations += float64(r.CompletedAt.Sub(*r.StartedAt).Milliseconds())
				timed++
			}
		case StatusExhausted:
			stats.TotalExhausted++
		case StatusFailed:
			stats.TotalFailed++
		}
	}
	if stats.TotalSolved > 0 {
		stats.AvgRaces = races / float64(stats.TotalSolved)
	}
	if timed > 0 {
		stats.AvgDurationMs = durations / float64(timed)
	}
	return stats, nil
}

func (m *MemoryStore) Close() error { return nil }

func copyRun(r *Run) *Run {
	c := *r
	c.HiddenOrder = slices.Clone(r.HiddenOrder)
	c.Result = slices.Clone(r.Result)
	if r.Races != nil {
		c.Races = make([][]int, len(r.Races))
		for i, race := range r.Races {
			c.Races[i] = slices.Clone(race)
		}
	}
	return &c
}
