package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Podium/internal/hermes"
	"github.com/MikeSquared-Agency/Podium/internal/oracle"
	"github.com/MikeSquared-Agency/Podium/internal/search"
	"github.com/MikeSquared-Agency/Podium/internal/store"
)

type RunsHandler struct {
	store    store.Store
	hermes   hermes.Client
	defaults search.Options
}

func NewRunsHandler(s store.Store, h hermes.Client, defaults search.Options) *RunsHandler {
	return &RunsHandler{store: s, hermes: h, defaults: defaults}
}

// CreateRunRequest queues a puzzle. Zero sizes fall back to the server
// defaults. Without a hidden order one is drawn from the seed, and without a
// seed from the clock.
type CreateRunRequest struct {
	Competitors int     `json:"competitors,omitempty"`
	RaceSize    int     `json:"race_size,omitempty"`
	Podium      int     `json:"podium,omitempty"`
	Seed        *uint64 `json:"seed,omitempty"`
	HiddenOrder []int   `json:"hidden_order,omitempty"`
	Source      string  `json:"source,omitempty"`
}

func (h *RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	opts := h.defaults
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
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	run := &store.Run{
		Competitors: opts.Competitors,
		RaceSize:    opts.RaceSize,
		Podium:      opts.Podium,
		Source:      req.Source,
		Status:      store.StatusPending,
	}
	if run.Source == "" {
		run.Source = r.Header.Get(ClientIDHeader)
	}
	if run.Source == "" {
		run.Source = "api"
	}

	switch {
	case len(req.HiddenOrder) > 0:
		if len(req.HiddenOrder) != opts.Competitors {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "hidden_order must rank every competitor"})
			return
		}
		p, err := oracle.NewPermutation(req.HiddenOrder, opts.RaceSize)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		run.HiddenOrder = p.Order()
	default:
		seed := uint64(time.Now().UnixNano())
		if req.Seed != nil {
			seed = *req.Seed
		}
		run.Seed = seed
		run.HiddenOrder = oracle.RandomPermutation(opts.Competitors, opts.RaceSize, seed).Order()
	}

	if err := h.store.CreateRun(r.Context(), run); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	_ = h.store.CreateRunEvent(r.Context(), &store.RunEvent{
		RunID: run.ID,
		Event: "created",
	})
	if h.hermes != nil {
		_ = h.hermes.Publish(hermes.SubjectRunCreated(run.ID.String()), hermes.RunCreatedEvent{
			RunID:       run.ID.String(),
			Competitors: run.Competitors,
			RaceSize:    run.RaceSize,
			Podium:      run.Podium,
			Source:      run.Source,
		})
	}

	writeJSON(w, http.StatusCreated, run)
}

func (h *RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{Source: q.Get("source")}
	if s := q.Get("status"); s != "" {
		status := store.RunStatus(s)
		filter.Status = &status
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid offset"})
		return
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (h *RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, ok := loadRun(w, r, h.store)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (h *RunsHandler) Events(w http.ResponseWriter, r *http.Request) {
	run, ok := loadRun(w, r, h.store)
	if !ok {
		return
	}
	events, err := h.store.GetRunEvents(r.Context(), run.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if events == nil {
		events = []*store.RunEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// loadRun resolves the {id} URL parameter, writing the error response itself
// when the run cannot be returned.
func loadRun(w http.ResponseWriter, r *http.Request, s store.Store) (*store.Run, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid run id"})
		return nil, false
	}
	run, err := s.GetRun(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return nil, false
	}
	if run == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "run not found"})
		return nil, false
	}
	return run, true
}

var errNegative = errors.New("must not be negative")

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errNegative
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
