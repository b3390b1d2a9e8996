package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Podium/internal/search"
	"github.com/MikeSquared-Agency/Podium/internal/store"
)

type mockHermes struct {
	mu       sync.Mutex
	subjects []string
}

func (m *mockHermes) Publish(subject string, _ interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subjects = append(m.subjects, subject)
	return nil
}
func (m *mockHermes) Subscribe(_ string, _ func(string, []byte)) error { return nil }
func (m *mockHermes) Close()                                         {}

func testDefaults() search.Options {
	opts := search.DefaultOptions()
	opts.Competitors, opts.RaceSize, opts.Podium = 6, 3, 1
	return opts
}

func setupTestRouter() (http.Handler, *store.MemoryStore, *mockHermes) {
	ms := store.NewMemoryStore()
	mh := &mockHermes{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(ms, mh, testDefaults(), "test-token", logger)
	return router, ms, mh
}

func TestCreateRun(t *testing.T) {
	router, ms, mh := setupTestRouter()

	body := `{"competitors":6,"race_size":3,"podium":2,"hidden_order":[5,3,1,4,2,6]}`
	req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewBufferString(body))
	req.Header.Set(ClientIDHeader, "test-client")
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var run store.Run
	json.NewDecoder(w.Body).Decode(&run)
	if run.Podium != 2 {
		t.Errorf("expected podium 2, got %d", run.Podium)
	}
	if run.Status != store.StatusPending {
		t.Errorf("expected pending, got %s", run.Status)
	}
	if run.Source != "test-client" {
		t.Errorf("expected source from client header, got '%s'", run.Source)
	}

	stored, _ := ms.GetRun(context.Background(), run.ID)
	if stored == nil || len(stored.HiddenOrder) != 6 {
		t.Fatalf("run not stored with hidden order: %+v", stored)
	}
	if len(mh.subjects) != 1 || mh.subjects[0] != "podium.run."+run.ID.String()+".created" {
		t.Errorf("unexpected published subjects %v", mh.subjects)
	}
}

func TestCreateRunDefaultsAndSeed(t *testing.T) {
	router, _, _ := setupTestRouter()

	create := func() store.Run {
		req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewBufferString(`{"seed":42}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
		}
		var run store.Run
		json.NewDecoder(w.Body).Decode(&run)
		return run
	}

	a, b := create(), create()
	if a.Competitors != 6 || a.RaceSize != 3 || a.Podium != 1 {
		t.Errorf("defaults not applied: %d/%d/%d", a.Competitors, a.RaceSize, a.Podium)
	}
	if a.Seed != 42 {
		t.Errorf("expected seed 42, got %d", a.Seed)
	}
	if a.Source != "api" {
		t.Errorf("expected source 'api', got '%s'", a.Source)
	}
	for i := range a.HiddenOrder {
		if a.HiddenOrder[i] != b.HiddenOrder[i] {
			t.Fatalf("same seed drew different orders: %v vs %v", a.HiddenOrder, b.HiddenOrder)
		}
	}
}

func TestCreateRunRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"competitors":`},
		{"race larger than field", `{"competitors":4,"race_size":5}`},
		{"podium larger than field", `{"competitors":4,"race_size":2,"podium":5}`},
		{"race of one", `{"race_size":1}`},
		{"short hidden order", `{"hidden_order":[1,2,3]}`},
		{"duplicate rank", `{"hidden_order":[1,1,2,3,4,5]}`},
		{"too many races per expansion", `{"competitors":100,"race_size":50}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _, _ := setupTestRouter()
			req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestListRuns(t *testing.T) {
	router, ms, _ := setupTestRouter()
	ctx := context.Background()
	for _, src := range []string{"a", "b", "a"} {
		ms.CreateRun(ctx, &store.Run{Competitors: 6, RaceSize: 3, Podium: 1, Source: src})
	}

	req := httptest.NewRequest("GET", "/api/v1/runs?source=a", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var runs []store.Run
	json.NewDecoder(w.Body).Decode(&runs)
	if len(runs) != 2 {
		t.Errorf("expected 2 runs for source a, got %d", len(runs))
	}

	req = httptest.NewRequest("GET", "/api/v1/runs?limit=-1", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for negative limit, got %d", w.Code)
	}
}

func TestListRunsEmptyIsArray(t *testing.T) {
	router, _, _ := setupTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/runs?status=solved", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if got := bytes.TrimSpace(w.Body.Bytes()); string(got) != "[]" {
		t.Errorf("expected empty array, got %s", got)
	}
}

func TestGetRun(t *testing.T) {
	router, ms, _ := setupTestRouter()
	run := &store.Run{Competitors: 6, RaceSize: 3, Podium: 1}
	ms.CreateRun(context.Background(), run)

	tests := []struct {
		path string
		code int
	}{
		{"/api/v1/runs/" + run.ID.String(), http.StatusOK},
		{"/api/v1/runs/" + uuid.New().String(), http.StatusNotFound},
		{"/api/v1/runs/not-a-uuid", http.StatusBadRequest},
		{"/api/v1/runs/" + run.ID.String() + "/events", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", tt.path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		if w.Code != tt.code {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.code, w.Code)
		}
	}
}

func TestPodiumReplaysSolvedRun(t *testing.T) {
	router, ms, _ := setupTestRouter()
	ctx := context.Background()

	// Hidden order (5,3,1,4,2,6): competitor 2 wins, then 4, then 1.
	run := &store.Run{Competitors: 6, RaceSize: 3, Podium: 1, HiddenOrder: []int{5, 3, 1, 4, 2, 6}}
	ms.CreateRun(ctx, run)
	now := time.Now()
	run.Status = store.StatusSolved
	run.CompletedAt = &now
	run.Races = [][]int{{0, 1, 2}, {3, 4, 5}, {1, 2, 4}}
	run.Result = []int{2}
	ms.UpdateRun(ctx, run)

	req := httptest.NewRequest("GET", "/api/v1/runs/"+run.ID.String()+"/podium", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp PodiumResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Certified {
		t.Fatal("expected races to certify the podium")
	}
	if len(resp.Podium) != 1 || resp.Podium[0] != 2 {
		t.Errorf("expected podium [2], got %v", resp.Podium)
	}
	if len(resp.Expected) != 1 || resp.Expected[0] != 2 {
		t.Errorf("expected hidden top [2], got %v", resp.Expected)
	}
	if !resp.Cost.Resolved || resp.Cost.Heuristic != 0 || resp.Cost.Total != 3 {
		t.Errorf("unexpected cost breakdown %+v", resp.Cost)
	}
}

func TestPodiumRequiresSolvedRun(t *testing.T) {
	router, ms, _ := setupTestRouter()
	run := &store.Run{Competitors: 6, RaceSize: 3, Podium: 1}
	ms.CreateRun(context.Background(), run)

	req := httptest.NewRequest("GET", "/api/v1/runs/"+run.ID.String()+"/podium", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := NewMetricsRouter()
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	router := NewMetricsRouter()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}
