package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS podium_runs (
	run_id       UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	competitors  INTEGER NOT NULL,
	race_size    INTEGER NOT NULL,
	podium       INTEGER NOT NULL,
	seed         BIGINT NOT NULL DEFAULT 0,
	hidden_order JSONB NOT NULL,
	source       TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	attempts     INTEGER NOT NULL DEFAULT 0,
	races        JSONB,
	result       JSONB,
	cost         DOUBLE PRECISION NOT NULL DEFAULT 0,
	expansions   INTEGER NOT NULL DEFAULT 0,
	truncated    BOOLEAN NOT NULL DEFAULT FALSE,
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at   TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS podium_runs_status_idx ON podium_runs (status, created_at);

CREATE TABLE IF NOT EXISTS podium_run_events (
	id         UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	run_id     UUID NOT NULL REFERENCES podium_runs(run_id) ON DELETE CASCADE,
	event      TEXT NOT NULL,
	payload    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the run tables if they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const runColumns = `run_id, competitors, race_size, podium, seed, hidden_order, source,
	status, attempts,
	races, result, cost, expansions, truncated, error,
	created_at, started_at, completed_at, updated_at`

func (s *PostgresStore) CreateRun(ctx context.Context, run *Run) error {
	orderJSON, _ := json.Marshal(run.HiddenOrder)
	if run.Status == "" {
		run.Status = StatusPending
	}

	return s.pool.QueryRow(ctx, `
		INSERT INTO podium_runs (competitors, race_size, podium, seed, hidden_order, source, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING run_id, created_at, updated_at`,
		run.Competitors, run.RaceSize, run.Podium, int64(run.Seed), orderJSON, run.Source, run.Status,
	).Scan(&run.ID, &run.CreatedAt, &run.UpdatedAt)
}

func (s *PostgresStore) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM podium_runs WHERE run_id = $1`, id)
	r, err := scanRun(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM podium_runs WHERE 1=1`
	args := []interface{}{}
	n := 0

	if filter.Status != nil {
		n++
		query += fmt.Sprintf(" AND status = $%d", n)
		args = append(args, string(*filter.Status))
	}
	if filter.Source != "" {
		n++
		query += fmt.Sprintf(" AND source = $%d", n)
		args = append(args, filter.Source)
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	n++
	query += fmt.Sprintf(" LIMIT $%d", n)
	args = append(args, limit)

	if filter.Offset > 0 {
		n++
		query += fmt.Sprintf(" OFFSET $%d", n)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRuns(rows)
}

func (s *PostgresStore) GetPendingRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM podium_runs WHERE status = 'pending'
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

func (s *PostgresStore) GetRunningRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+runColumns+`
		FROM podium_runs WHERE status = 'running'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRuns(rows)
}

func (s *PostgresStore) UpdateRun(ctx context.Context, run *Run) error {
	orderJSON, _ := json.Marshal(run.HiddenOrder)
	racesJSON, _ := json.Marshal(run.Races)
	resultJSON, _ := json.Marshal(run.Result)

	return s.pool.QueryRow(ctx, `
		UPDATE podium_runs SET
			competitors = $2, race_size = $3, podium = $4, seed = $5, hidden_order = $6, source = $7,
			status = $8, attempts = $9,
			races = $10, result = $11, cost = $12, expansions = $13, truncated = $14, error = $15,
			started_at = $16, completed_at = $17, updated_at = now()
		WHERE run_id = $1
		RETURNING updated_at`,
		run.ID, run.Competitors, run.RaceSize, run.Podium, int64(run.Seed), orderJSON, run.Source,
		run.Status, run.Attempts,
		racesJSON, resultJSON, run.Cost, run.Expansions, run.Truncated, run.Error,
		run.StartedAt, run.CompletedAt,
	).Scan(&run.UpdatedAt)
}

func (s *PostgresStore) CreateRunEvent(ctx context.Context, event *RunEvent) error {
	payloadJSON, _ := json.Marshal(event.Payload)
	return s.pool.QueryRow(ctx, `
		INSERT INTO podium_run_events (run_id, event, payload)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		event.RunID, event.Event, payloadJSON,
	).Scan(&event.ID, &event.CreatedAt)
}

func (s *PostgresStore) GetRunEvents(ctx context.Context, runID uuid.UUID) ([]*RunEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, run_id, event, payload, created_at
		FROM podium_run_events WHERE run_id = $1
		ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*RunEvent
	for rows.Next() {
		e := &RunEvent{}
		var payloadJSON []byte
		if err := rows.Scan(&e.ID, &e.RunID, &e.Event, &payloadJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		if payloadJSON != nil {
			_ = json.Unmarshal(payloadJSON, &e.Payload)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *PostgresStore) GetStats(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}
	err := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'running' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'solved' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'exhausted' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(jsonb_array_length(races)) FILTER (WHERE status = 'solved'), 0),
			COALESCE(AVG(EXTRACT(EPOCH FROM (completed_at - started_at)) * 1000) FILTER (WHERE status = 'solved' AND completed_at IS NOT NULL AND started_at IS NOT NULL), 0)
		FROM podium_runs`,
	).Scan(&stats.TotalPending, &stats.TotalRunning, &stats.TotalSolved, &stats.TotalExhausted, &stats.TotalFailed, &stats.AvgRaces, &stats.AvgDurationMs)
	return stats, err
}

func scanRun(row pgx.Row) (*Run, error) {
	r := &Run{}
	var seed int64
	var orderJSON, racesJSON, resultJSON []byte
	var runError sql.NullString
	if err := row.Scan(
		&r.ID, &r.Competitors, &r.RaceSize, &r.Podium, &seed, &orderJSON, &r.Source,
		&r.Status, &r.Attempts,
		&racesJSON, &resultJSON, &r.Cost, &r.Expansions, &r.Truncated, &runError,
		&r.CreatedAt, &r.StartedAt, &r.CompletedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	r.Seed = uint64(seed)
	if runError.Valid {
		r.Error = runError.String
	}
	if orderJSON != nil {
		_ = json.Unmarshal(orderJSON, &r.HiddenOrder)
	}
	if racesJSON != nil {
		_ = json.Unmarshal(racesJSON, &r.Races)
	}
	if resultJSON != nil {
		_ = json.Unmarshal(resultJSON, &r.Result)
	}
	return r, nil
}

func scanRuns(rows pgx.Rows) ([]*Run, error) {
	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
