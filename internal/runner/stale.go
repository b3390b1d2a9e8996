package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/Podium/internal/hermes"
	"github.com/MikeSquared-Agency/Podium/internal/store"
)

func (r *Runner) staleLoop(ctx context.Context) {
	defer r.wg.Done()
	interval := r.cfg.StaleTimeout() / 4
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkStaleRuns(ctx)
		}
	}
}

// checkStaleRuns recovers runs left in running by a process that died mid
// solve. They go back to pending until max_attempts is spent, then fail.
// Runs this runner is still solving are never stale, however long they take.
func (r *Runner) checkStaleRuns(ctx context.Context) {
	runs, err := r.store.GetRunningRuns(ctx)
	if err != nil {
		r.logger.Error("failed to get running runs for stale check", "error", err)
		return
	}

	timeout := r.cfg.StaleTimeout()
	now := time.Now()
	for _, run := range runs {
		if run.StartedAt == nil || now.Sub(*run.StartedAt) <= timeout {
			continue
		}
		if r.solving(run.ID) {
			continue
		}
		id := run.ID.String()
		r.logger.Warn("run went stale", "run_id", id, "attempts", run.Attempts, "started_at", run.StartedAt)

		if run.Attempts < r.cfg.Runner.MaxAttempts {
			run.Status = store.StatusPending
			run.StartedAt = nil
			if err := r.store.UpdateRun(ctx, run); err != nil {
				r.logger.Error("failed to reset stale run", "run_id", id, "error", err)
				continue
			}
			_ = r.store.CreateRunEvent(ctx, &store.RunEvent{
				RunID: run.ID,
				Event: "stale_retry",
			})
			r.publish(hermes.SubjectRunRetry(id), map[string]interface{}{
				"run_id":       id,
				"attempts":     run.Attempts,
				"max_attempts": r.cfg.Runner.MaxAttempts,
			})
			continue
		}

		_ = r.fail(ctx, run, fmt.Errorf("run stale after %d attempts", run.Attempts))
	}
}
