// Package runner drains queued runs from the store and solves them in the
// background.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Podium/internal/config"
	"github.com/MikeSquared-Agency/Podium/internal/hermes"
	"github.com/MikeSquared-Agency/Podium/internal/metrics"
	"github.com/MikeSquared-Agency/Podium/internal/oracle"
	"github.com/MikeSquared-Agency/Podium/internal/search"
	"github.com/MikeSquared-Agency/Podium/internal/store"
)

type Runner struct {
	store  store.Store
	hermes hermes.Client
	cfg    *config.Config
	logger *slog.Logger

	// inFlight holds runs this process is solving right now.
	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}

	cancel   context.CancelFunc
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a runner. h may be nil when no event bus is configured.
func New(s store.Store, h hermes.Client, cfg *config.Config, logger *slog.Logger) *Runner {
	return &Runner{
		store:    s,
		hermes:   h,
		cfg:      cfg,
		logger:   logger,
		inFlight: make(map[uuid.UUID]struct{}),
		stopCh:   make(chan struct{}),
	}
}

func (r *Runner) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.wg.Add(2)
	go r.runLoop(ctx)
	go r.staleLoop(ctx)
}

// Stop cancels any solve in flight and waits for both loops to exit.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
		if r.cancel != nil {
			r.cancel()
		}
	})
	r.wg.Wait()
}

func (r *Runner) runLoop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.TickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.processPendingRuns(ctx)
		}
	}
}

func (r *Runner) processPendingRuns(ctx context.Context) {
	runs, err := r.store.GetPendingRuns(ctx)
	if err != nil {
		r.logger.Error("failed to get pending runs", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	r.logger.Info("processing pending runs", "count", len(runs))
	for _, run := range runs {
		if ctx.Err() != nil {
			return
		}
		if err := r.executeRun(ctx, run); err != nil {
			r.logger.Warn("run failed", "run_id", run.ID, "error", err)
		}
	}
}

// buildOracle returns the hidden order for a run, drawing one from the seed
// when none was stored.
func buildOracle(run *store.Run) (*oracle.Permutation, error) {
	if len(run.HiddenOrder) == 0 {
		return oracle.RandomPermutation(run.Competitors, run.RaceSize, run.Seed), nil
	}
	if len(run.HiddenOrder) != run.Competitors {
		return nil, fmt.Errorf("hidden order has %d entries, want %d", len(run.HiddenOrder), run.Competitors)
	}
	return oracle.NewPermutation(run.HiddenOrder, run.RaceSize)
}

func (r *Runner) optionsFor(run *store.Run) search.Options {
	opts := r.cfg.SearchOptions()
	opts.Competitors = run.Competitors
	opts.RaceSize = run.RaceSize
	opts.Podium = run.Podium
	return opts
}

func (r *Runner) executeRun(ctx context.Context, run *store.Run) error {
	id := run.ID.String()
	logger := r.logger.With("run_id", id)

	p, err := buildOracle(run)
	if err != nil {
		return r.fail(ctx, run, err)
	}
	run.HiddenOrder = p.Order()

	r.track(run.ID)
	defer r.untrack(run.ID)

	now := time.Now()
	run.Status = store.StatusRunning
	run.Attempts++
	run.StartedAt = &now
	run.CompletedAt = nil
	run.Error = ""
	if err := r.store.UpdateRun(ctx, run); err != nil {
		return err
	}
	_ = r.store.CreateRunEvent(ctx, &store.RunEvent{
		RunID:   run.ID,
		Event:   "started",
		Payload: map[string]interface{}{"attempt": run.Attempts},
	})
	r.publish(hermes.SubjectRunStarted(id), hermes.RunStartedEvent{RunID: id, Attempt: run.Attempts})

	observers := search.Observers{
		search.NewLogObserver(logger),
		metrics.NewObserver(),
	}
	if r.hermes != nil {
		observers = append(observers, &expansionPublisher{client: r.hermes, runID: id})
	}

	engine, err := search.New(r.optionsFor(run), p, observers, logger)
	if err != nil {
		return r.fail(ctx, run, err)
	}

	outcome, err := engine.Solve(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return r.requeue(run, err)
		}
		return r.fail(ctx, run, err)
	}

	r.complete(ctx, run, outcome)
	return nil
}

func (r *Runner) track(id uuid.UUID) {
	r.mu.Lock()
	r.inFlight[id] = struct{}{}
	r.mu.Unlock()
}

func (r *Runner) untrack(id uuid.UUID) {
	r.mu.Lock()
	delete(r.inFlight, id)
	r.mu.Unlock()
}

func (r *Runner) solving(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inFlight[id]
	return ok
}

// requeue puts a run interrupted by shutdown back in the queue. The caller's
// context is already done, so the update runs on a short detached one.
func (r *Runner) requeue(run *store.Run, cause error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var elapsed time.Duration
	if run.StartedAt != nil {
		elapsed = time.Since(*run.StartedAt)
	}
	run.Status = store.StatusPending
	run.StartedAt = nil
	if err := r.store.UpdateRun(ctx, run); err != nil {
		r.logger.Error("failed to requeue interrupted run", "run_id", run.ID, "error", err)
	}
	metrics.RecordFailure("cancelled", elapsed)
	return cause
}

func (r *Runner) fail(ctx context.Context, run *store.Run, cause error) error {
	id := run.ID.String()
	now := time.Now()
	run.Status = store.StatusFailed
	run.Error = cause.Error()
	run.CompletedAt = &now
	if err := r.store.UpdateRun(ctx, run); err != nil {
		r.logger.Error("failed to mark run failed", "run_id", run.ID, "error", err)
	}
	_ = r.store.CreateRunEvent(ctx, &store.RunEvent{
		RunID:   run.ID,
		Event:   "failed",
		Payload: map[string]interface{}{"error": run.Error},
	})
	r.publish(hermes.SubjectRunFailed(id), hermes.RunFailedEvent{
		RunID:    id,
		Error:    run.Error,
		Attempts: run.Attempts,
	})
	var elapsed time.Duration
	if run.StartedAt != nil {
		elapsed = now.Sub(*run.StartedAt)
	}
	metrics.RecordFailure("failed", elapsed)
	return cause
}

func (r *Runner) complete(ctx context.Context, run *store.Run, outcome *search.Outcome) {
	id := run.ID.String()
	now := time.Now()
	run.CompletedAt = &now
	run.Expansions = outcome.Expansions
	run.Truncated = outcome.Truncated
	metrics.RecordOutcome(outcome)

	if outcome.Solved() {
		run.Status = store.StatusSolved
		run.Races = racesToInts(outcome.Races)
		run.Result = outcome.Podium
		run.Cost = outcome.Cost
	} else {
		run.Status = store.StatusExhausted
		run.Races = nil
		run.Result = nil
	}

	if err := r.store.UpdateRun(ctx, run); err != nil {
		r.logger.Error("failed to record run outcome", "run_id", run.ID, "error", err)
		return
	}
	_ = r.store.CreateRunEvent(ctx, &store.RunEvent{
		RunID: run.ID,
		Event: string(run.Status),
		Payload: map[string]interface{}{
			"expansions": outcome.Expansions,
			"races":      len(run.Races),
		},
	})

	if outcome.Solved() {
		r.publish(hermes.SubjectRunSolved(id), hermes.RunSolvedEvent{
			RunID:      id,
			Races:      run.Races,
			Podium:     run.Result,
			Cost:       outcome.Cost,
			Expansions: outcome.Expansions,
			DurationMs: outcome.Duration.Milliseconds(),
		})
		r.logger.Info("run solved", "run_id", id, "races", len(run.Races), "podium", run.Result)
		return
	}
	r.publish(hermes.SubjectRunExhausted(id), hermes.RunExhaustedEvent{
		RunID:      id,
		Expansions: outcome.Expansions,
		Truncated:  outcome.Truncated,
	})
	r.logger.Warn("run exhausted", "run_id", id, "expansions", outcome.Expansions, "truncated", outcome.Truncated)
}

func (r *Runner) publish(subject string, data interface{}) {
	if r.hermes == nil {
		return
	}
	if err := r.hermes.Publish(subject, data); err != nil {
		r.logger.Warn("publish failed", "subject", subject, "error", err)
	}
}

func racesToInts(races []oracle.Race) [][]int {
	out := make([][]int, len(races))
	for i, race := range races {
		out[i] = []int(race)
	}
	return out
}

// expansionPublisher forwards search progress to the event bus.
type expansionPublisher struct {
	client hermes.Client
	runID  string
}

func (p *expansionPublisher) Expanded(stats search.ExpansionStats) {
	_ = p.client.Publish(hermes.SubjectRunExpanded(p.runID), hermes.RunExpandedEvent{
		RunID:           p.runID,
		Expansion:       stats.Expansion,
		Depth:           stats.Depth,
		Cost:            stats.Cost,
		Generated:       stats.Generated,
		Pruned:          stats.Pruned,
		AncestorsPruned: stats.AncestorsPruned,
		Frontier:        stats.Frontier,
		Visited:         stats.Visited,
	})
}
