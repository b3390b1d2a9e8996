package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	StatusPending   RunStatus = "pending"
	StatusRunning   RunStatus = "running"
	StatusSolved    RunStatus = "solved"
	StatusExhausted RunStatus = "exhausted"
	StatusFailed    RunStatus = "failed"
)

// Terminal reports whether the run has finished, successfully or not.
func (s RunStatus) Terminal() bool {
	return s == StatusSolved || s == StatusExhausted || s == StatusFailed
}

// Run is one queued or completed search for a podium.
type Run struct {
	ID          uuid.UUID `json:"run_id"`
	Competitors int       `json:"competitors"`
	RaceSize    int       `json:"race_size"`
	Podium      int       `json:"podium"`
	Seed        uint64    `json:"seed"`
	HiddenOrder []int     `json:"hidden_order"`
	Source      string    `json:"source,omitempty"`

	// State
	Status   RunStatus `json:"status"`
	Attempts int       `json:"attempts"`

	// Result
	Races      [][]int `json:"races,omitempty"`
	Result     []int   `json:"result,omitempty"`
	Cost       float64 `json:"cost"`
	Expansions int     `json:"expansions"`
	Truncated  bool    `json:"truncated"`
	Error      string  `json:"error,omitempty"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type RunFilter struct {
	Status *RunStatus
	Source string
	Limit  int
	Offset int
}

type RunEvent struct {
	ID        uuid.UUID              `json:"id"`
	RunID     uuid.UUID              `json:"run_id"`
	Event     string                 `json:"event"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type RunStats struct {
	TotalPending   int     `json:"total_pending"`
	TotalRunning   int     `json:"total_running"`
	TotalSolved    int     `json:"total_solved"`
	TotalExhausted int     `json:"total_exhausted"`
	TotalFailed    int     `json:"total_failed"`
	AvgRaces       float64 `json:"avg_races"`
	AvgDurationMs  float64 `json:"avg_duration_ms"`
}

type Store interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error)
	UpdateRun(ctx context.Context, run *Run) error
	GetPendingRuns(ctx context.Context) ([]*Run, error)
	GetRunningRuns(ctx context.Context) ([]*Run, error)

	CreateRunEvent(ctx context.Context, event *RunEvent) error
	GetRunEvents(ctx context.Context, runID uuid.UUID) ([]*RunEvent, error)

	GetStats(ctx context.Context) (*RunStats, error)
	Close() error
}
