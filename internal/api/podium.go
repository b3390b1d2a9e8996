package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Podium/internal/oracle"
	"github.com/MikeSquared-Agency/Podium/internal/scoring"
	"github.com/MikeSquared-Agency/Podium/internal/search"
	"github.com/MikeSquared-Agency/Podium/internal/store"
)

type PodiumHandler struct {
	store    store.Store
	defaults search.Options
}

func NewPodiumHandler(s store.Store, defaults search.Options) *PodiumHandler {
	return &PodiumHandler{store: s, defaults: defaults}
}

type PodiumResponse struct {
	RunID     string            `json:"run_id"`
	Races     [][]int           `json:"races"`
	Podium    []int             `json:"podium"`
	Certified bool              `json:"certified"`
	Expected  []int             `json:"expected"`
	Cost      scoring.Breakdown `json:"cost"`
}

// Podium replays a solved run's races against its hidden order and returns
// the podium the resulting knowledge certifies, with the cost breakdown of the
// final node.
// GET /api/v1/runs/{id}/podium
func (h *PodiumHandler) Podium(w http.ResponseWriter, r *http.Request) {
	run, ok := loadRun(w, r, h.store)
	if !ok {
		return
	}
	if run.Status != store.StatusSolved {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "run is " + string(run.Status) + ", not solved"})
		return
	}

	p, err := oracle.NewPermutation(run.HiddenOrder, run.RaceSize)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	races := make([]oracle.Race, len(run.Races))
	for i, race := range run.Races {
		races[i] = oracle.NewRace(race...)
	}

	scorer := scoring.NewScorer(h.defaults.Weights, run.Podium)
	node, err := search.ReplayPath(run.Competitors, races, p, scorer)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	podium, certified := node.State.Podium(run.Podium)

	writeJSON(w, http.StatusOK, PodiumResponse{
		RunID:     run.ID.String(),
		Races:     run.Races,
		Podium:    podium,
		Certified: certified,
		Expected:  p.Top(run.Podium),
		Cost:      node.Breakdown(),
	})
}
