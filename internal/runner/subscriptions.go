package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/Podium/internal/hermes"
	"github.com/MikeSquared-Agency/Podium/internal/oracle"
	"github.com/MikeSquared-Agency/Podium/internal/store"
)

// SetupSubscriptions lets other services queue runs over NATS.
func (r *Runner) SetupSubscriptions() {
	if r.hermes == nil {
		return
	}

	err := r.hermes.Subscribe(hermes.SubjectRunRequest, func(_ string, data []byte) {
		var req hermes.RunRequestEvent
		if err := json.Unmarshal(data, &req); err != nil {
			r.logger.Warn("invalid run request event", "error", err)
			return
		}
		run, err := r.runFromRequest(req)
		if err != nil {
			r.logger.Warn("rejected run request", "error", err)
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.CreateRun(ctx, run); err != nil {
			r.logger.Error("failed to create run from NATS request", "error", err)
			return
		}
		_ = r.store.CreateRunEvent(ctx, &store.RunEvent{RunID: run.ID, Event: "created"})
		r.publish(hermes.SubjectRunCreated(run.ID.String()), hermes.RunCreatedEvent{
			RunID:       run.ID.String(),
			Competitors: run.Competitors,
			RaceSize:    run.RaceSize,
			Podium:      run.Podium,
			Source:      run.Source,
		})
		r.logger.Info("run created from NATS request", "run_id", run.ID, "source", run.Source)
	})
	if err != nil {
		r.logger.Warn("failed to subscribe to run requests", "error", err)
	}
}

// runFromRequest fills defaults from config and validates the request the
// same way the engine will.
func (r *Runner) runFromRequest(req hermes.RunRequestEvent) (*store.Run, error) {
	opts := r.cfg.SearchOptions()
	if req.Competitors != 0 {
		opts.Competitors = req.Competitors
	}
	if req.RaceSize != 0 {
		opts.RaceSize = req.RaceSize
	}
	if req.Podium != 0 {
		opts.Podium = req.Podium
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	run := &store.Run{
		Competitors: opts.Competitors,
		RaceSize:    opts.RaceSize,
		Podium:      opts.Podium,
		Source:      req.Source,
		Status:      store.StatusPending,
	}
	if run.Source == "" {
		run.Source = "nats"
	}
	if len(req.HiddenOrder) > 0 {
		if len(req.HiddenOrder) != opts.Competitors {
			return nil, fmt.Errorf("hidden order has %d entries, want %d", len(req.HiddenOrder), opts.Competitors)
		}
		p, err := oracle.NewPermutation(req.HiddenOrder, opts.RaceSize)
		if err != nil {
			return nil, err
		}
		run.HiddenOrder = p.Order()
		return run, nil
	}
	run.Seed = uint64(time.Now().UnixNano())
	if req.Seed != nil {
		run.Seed = *req.Seed
	}
	return run, nil
}
