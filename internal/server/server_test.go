package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/ideaminer/internal/pipeline"
	"github.com/ibeckermayer/ideaminer/internal/scheduler"
	"github.com/ibeckermayer/ideaminer/internal/store"
	"github.com/ibeckermayer/ideaminer/internal/types"
)

type fakeBackend struct {
	mu        sync.Mutex
	ideas     []types.IdeaSummary
	records   map[string]types.IdeaRecord
	last      *pipeline.Result
	listErr   error
	gotLimit  int
	runs      int
	runBlock  chan struct{}
	runResult error
}

func (f *fakeBackend) RecentIdeas(_ context.Context, limit int) ([]types.IdeaSummary, error) {
	f.gotLimit = limit
	return f.ideas, f.listErr
}

func (f *fakeBackend) IdeaByUUID(_ context.Context, id string) (types.IdeaRecord, error) {
	rec, ok := f.records[id]
	if !ok {
		return types.IdeaRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (f *fakeBackend) LastRun() *pipeline.Result { return f.last }

func (f *fakeBackend) RunScheduled(context.Context) error {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	if f.runBlock != nil {
		<-f.runBlock
	}
	return f.runResult
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	h.ServeHTTP(w, req)
	return w
}

func TestServer_Healthz(t *testing.T) {
	s := New(context.Background(), ":0", &fakeBackend{}, nil)
	w := do(t, s.Handler(), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_Metrics(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ideaminer_records_produced_total 3\n"))
	})
	s := New(context.Background(), ":0", &fakeBackend{}, nil, WithMetricsHandler(h))

	w := do(t, s.Handler(), http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "records_produced_total 3")
}

func TestServer_ListIdeas(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		listErr   error
		wantCode  int
		wantLimit int
	}{
		{name: "default limit", query: "", wantCode: http.StatusOK, wantLimit: defaultLimit},
		{name: "explicit limit", query: "?limit=5", wantCode: http.StatusOK, wantLimit: 5},
		{name: "clamped limit", query: "?limit=5000", wantCode: http.StatusOK, wantLimit: maxLimit},
		{name: "bad limit", query: "?limit=abc", wantCode: http.StatusBadRequest},
		{name: "zero limit", query: "?limit=0", wantCode: http.StatusBadRequest},
		{name: "store error", query: "", listErr: errors.New("db gone"), wantCode: http.StatusInternalServerError, wantLimit: defaultLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{
				ideas:   []types.IdeaSummary{{UUID: "a", Title: "Idea A"}},
				listErr: tt.listErr,
			}
			s := New(context.Background(), ":0", b, nil)

			w := do(t, s.Handler(), http.MethodGet, "/api/ideas"+tt.query)
			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantLimit, b.gotLimit)
			if tt.wantCode == http.StatusOK {
				var body struct {
					Ideas []types.IdeaSummary `json:"ideas"`
					Count int                 `json:"count"`
				}
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
				assert.Equal(t, 1, body.Count)
				assert.Equal(t, "a", body.Ideas[0].UUID)
			}
		})
	}
}

func TestServer_GetIdea(t *testing.T) {
	id := "t3abc"
	b := &fakeBackend{records: map[string]types.IdeaRecord{
		"u1": {
			Meta:           types.RecordMeta{UUID: "u1"},
			Reddit:         types.SourceRef{Subreddit: "consulting", ID: &id},
			CursorPlaybook: []string{"one", "two"},
		},
	}}
	s := New(context.Background(), ":0", b, nil)

	w := do(t, s.Handler(), http.MethodGet, "/api/ideas/u1")
	require.Equal(t, http.StatusOK, w.Code)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Contains(t, rec, "meta")
	assert.Contains(t, rec, "cursor_playbook")
	assert.Equal(t, "t3abc", rec["reddit"].(map[string]any)["id"])

	w = do(t, s.Handler(), http.MethodGet, "/api/ideas/missing")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_LatestRun(t *testing.T) {
	b := &fakeBackend{}
	s := New(context.Background(), ":0", b, nil)

	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/api/runs/latest").Code)

	b.last = &pipeline.Result{
		Report:       []types.ReportEntry{{Title: "x", Status: types.StatusAdded}},
		Records:      []types.IdeaRecord{{}},
		SourceErrors: []pipeline.SourceError{{Subreddit: "gone", Error: "404"}},
	}
	w := do(t, s.Handler(), http.MethodGet, "/api/runs/latest")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"records":1`)
	assert.Contains(t, w.Body.String(), `"subreddit":"gone"`)
}

func TestServer_TriggerRun(t *testing.T) {
	b := &fakeBackend{runBlock: make(chan struct{})}
	s := New(context.Background(), ":0", b, nil)

	assert.Equal(t, http.StatusAccepted, do(t, s.Handler(), http.MethodPost, "/api/runs").Code)
	assert.Equal(t, http.StatusConflict, do(t, s.Handler(), http.MethodPost, "/api/runs").Code)

	close(b.runBlock)
	assert.Eventually(t, func() bool { return !s.running.Load() }, time.Second, 10*time.Millisecond)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Equal(t, 1, b.runs)
}

func TestServer_Schedule(t *testing.T) {
	next := time.Date(2025, 1, 1, 6, 0, 0, 0, time.UTC)
	s := New(context.Background(), ":0", &fakeBackend{}, nil, WithJobs(func() []scheduler.JobInfo {
		return []scheduler.JobInfo{{Name: "scrape", NextRun: next}}
	}))

	w := do(t, s.Handler(), http.MethodGet, "/api/schedule")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"name":"scrape"`))
}
