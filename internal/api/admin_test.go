package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/MikeSquared-Agency/Podium/internal/store"
)

// MockStore implements store.Store for failure-path tests.
type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateRun(ctx context.Context, run *store.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockStore) GetRun(ctx context.Context, id uuid.UUID) (*store.Run, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.Run), args.Error(1)
}

func (m *MockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*store.Run), args.Error(1)
}

func (m *MockStore) GetStats(ctx context.Context) (*store.RunStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*store.RunStats), args.Error(1)
}

func (m *MockStore) UpdateRun(ctx context.Context, run *store.Run) error { return nil }
func (m *MockStore) GetPendingRuns(ctx context.Context) ([]*store.Run, error) { return nil, nil }
func (m *MockStore) GetRunningRuns(ctx context.Context) ([]*store.Run, error) { return nil, nil }
func (m *MockStore) CreateRunEvent(ctx context.Context, event *store.RunEvent) error { return nil }
func (m *MockStore) GetRunEvents(ctx context.Context, runID uuid.UUID) ([]*store.RunEvent, error) {
	return nil, nil
}
func (m *MockStore) Close() error { return nil }

func mockRouter(ms *MockStore) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(ms, nil, testDefaults(), "test-token", logger)
}

func TestStatsRequiresAdminToken(t *testing.T) {
	router, _, _ := setupTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestStatsEndpoint_ReturnsStats(t *testing.T) {
	ms := new(MockStore)
	ms.On("GetStats", mock.Anything).Return(&store.RunStats{TotalPending: 1, TotalSolved: 4, AvgRaces: 7}, nil)

	req := httptest.NewRequest("GET", "/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer test-token")
	w := httptest.NewRecorder()
	mockRouter(ms).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var stats store.RunStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	assert.Equal(t, 1, stats.TotalPending)
	assert.Equal(t, 4, stats.TotalSolved)
	assert.Equal(t, 7.0, stats.AvgRaces)
	ms.AssertExpectations(t)
}

func TestStoreFailuresBecome500(t *testing.T) {
	boom := errors.New("connection reset")
	ms := new(MockStore)
	ms.On("GetStats", mock.Anything).Return(nil, boom)
	ms.On("ListRuns", mock.Anything, mock.Anything).Return(nil, boom)
	ms.On("GetRun", mock.Anything, mock.Anything).Return(nil, boom)
	ms.On("CreateRun", mock.Anything, mock.Anything).Return(boom)
	router := mockRouter(ms)

	tests := []struct {
		method, path, body string
	}{
		{"GET", "/api/v1/stats", ""},
		{"GET", "/api/v1/runs", ""},
		{"GET", "/api/v1/runs/" + uuid.New().String(), ""},
		{"POST", "/api/v1/runs", `{"seed":1}`},
	}
	for _, tt := range tests {
		var body io.Reader
		if tt.body != "" {
			body = strings.NewReader(tt.body)
		}
		req := httptest.NewRequest(tt.method, tt.path, body)
		req.Header.Set("Authorization", "Bearer test-token")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code, "%s %s", tt.method, tt.path)
		assert.Contains(t, w.Body.String(), "connection reset")
	}
}

func TestListRunsPassesFilter(t *testing.T) {
	ms := new(MockStore)
	solved := store.StatusSolved
	ms.On("ListRuns", mock.Anything, store.RunFilter{Status: &solved, Source: "seed", Limit: 5, Offset: 10}).
		Return([]*store.Run{}, nil)

	req := httptest.NewRequest("GET", "/api/v1/runs?status=solved&source=seed&limit=5&offset=10", nil)
	w := httptest.NewRecorder()
	mockRouter(ms).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	ms.AssertExpectations(t)
}
