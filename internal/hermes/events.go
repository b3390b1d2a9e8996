package hermes

// RunRequestEvent asks the runner to queue a run. Zero sizes take the
// configured defaults.
type RunRequestEvent struct {
	Competitors int     `json:"competitors,omitempty"`
	RaceSize    int     `json:"race_size,omitempty"`
	Podium      int     `json:"podium,omitempty"`
	Seed        *uint64 `json:"seed,omitempty"`
	HiddenOrder []int   `json:"hidden_order,omitempty"`
	Source      string  `json:"source,omitempty"`
}

type RunCreatedEvent struct {
	RunID       string `json:"run_id"`
	Competitors int    `json:"competitors"`
	RaceSize    int    `json:"race_size"`
	Podium      int    `json:"podium"`
	Source      string `json:"source,omitempty"`
}

type RunStartedEvent struct {
	RunID   string `json:"run_id"`
	Attempt int    `json:"attempt"`
}

// RunExpandedEvent mirrors one expansion of the frontier loop.
type RunExpandedEvent struct {
	RunID           string  `json:"run_id"`
	Expansion       int     `json:"expansion"`
	Depth           int     `json:"depth"`
	Cost            float64 `json:"cost"`
	Generated       int     `json:"generated"`
	Pruned          int     `json:"pruned"`
	AncestorsPruned int     `json:"ancestors_pruned"`
	Frontier        int     `json:"frontier"`
	Visited         int     `json:"visited"`
}

type RunSolvedEvent struct {
	RunID      string  `json:"run_id"`
	Races      [][]int `json:"races"`
	Podium     []int   `json:"podium"`
	Cost       float64 `json:"cost"`
	Expansions int     `json:"expansions"`
	DurationMs int64   `json:"duration_ms"`
}

type RunExhaustedEvent struct {
	RunID      string `json:"run_id"`
	Expansions int    `json:"expansions"`
	Truncated  bool   `json:"truncated"`
}

type RunFailedEvent struct {
	RunID    string `json:"run_id"`
	Error    string `json:"error"`
	Attempts int    `json:"attempts"`
}
