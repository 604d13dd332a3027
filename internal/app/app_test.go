package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/ideaminer/internal/analyzer"
	"github.com/ibeckermayer/ideaminer/internal/auth"
	"github.com/ibeckermayer/ideaminer/internal/config"
	"github.com/ibeckermayer/ideaminer/internal/digest"
	"github.com/ibeckermayer/ideaminer/internal/metrics"
	"github.com/ibeckermayer/ideaminer/internal/scraper"
	"github.com/ibeckermayer/ideaminer/internal/store"
	"github.com/ibeckermayer/ideaminer/internal/types"
)

// stubProvider answers by stage; threads whose body contains NOTVIABLE are
// judged not viable.
type stubProvider struct {
	mu    sync.Mutex
	calls int
}

func (s *stubProvider) ChatJSON(_ context.Context, prompt, _ string, _ int) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	switch {
	case strings.HasPrefix(prompt, "Identify whether"):
		viable := !strings.Contains(prompt, "NOTVIABLE")
		return fmt.Sprintf(`{"is_viable":%t,"is_opportunity":false,"problem_description":"Scheduling is painful","target_market":"clinics","confidence_score":0.7}`, viable), nil
	case strings.HasPrefix(prompt, "You are a senior"):
		return `{"solution_description":"A booking tool","tech_stack":["go"],"mvp_features":["book","remind"],"est_development_time":"3 weeks"}`, nil
	default:
		prompts := []string{"Context. " + analyzer.ReadySentence, "2", "3", "4", "5", "6", "7"}
		data, _ := json.Marshal(map[string]any{"prompts": prompts})
		return string(data), nil
	}
}

func (s *stubProvider) Name() string  { return "stub" }
func (s *stubProvider) Model() string { return "stub-1" }

type stubClient struct {
	threads []scraper.Thread
}

func (c *stubClient) Listing(_ context.Context, _ string, _ scraper.Listing, limit int) ([]scraper.Thread, error) {
	return c.threads, nil
}

func (c *stubClient) Expand(_ context.Context, t scraper.Thread, _ int) (scraper.Thread, error) {
	for _, known := range c.threads {
		if known.ID == t.ID {
			known.Replies = []string{"me too"}
			return known, nil
		}
	}
	return t, scraper.ErrNotFound
}

func testConfig(t *testing.T) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Storage.DSN = filepath.Join(dir, "ideas.db")
	cfg.Storage.ResultsFile = filepath.Join(dir, "results.jsonl")
	cfg.Analysis.APIKey = "test"
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, cfg.Save(path))
	return cfg, path
}

func newTestApp(t *testing.T, client *stubClient, opts ...Option) (*App, *stubProvider) {
	t.Helper()
	cfg, path := testConfig(t)
	provider := &stubProvider{}

	opts = append([]Option{
		WithMetrics(metrics.New()),
		WithAuthManager(auth.NewManager(auth.NewCookieStore(filepath.Join(t.TempDir(), "cookies.json")), nil)),
		WithProviderFactory(func(context.Context, config.AnalysisConfig) (analyzer.Provider, error) { return provider, nil }),
		WithClientFactory(func(context.Context, *config.Config, *auth.Manager) (scraper.Client, error) { return client, nil }),
		WithSleeper(func(context.Context, time.Duration) {}),
	}, opts...)
	a, err := New(context.Background(), cfg, path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, provider
}

func threads() []scraper.Thread {
	return []scraper.Thread{
		{ID: "p1", Subreddit: "consulting", Title: "Booking hell", Body: "clients cannot book", Permalink: "/r/consulting/comments/p1/booking/"},
		{ID: "p2", Subreddit: "consulting", Title: "Vent", Body: "just venting NOTVIABLE", Permalink: "/r/consulting/comments/p2/vent/"},
	}
}

func TestApp_RunPersistsAndDedups(t *testing.T) {
	a, _ := newTestApp(t, &stubClient{threads: threads()})
	ctx := context.Background()

	res, err := a.Run(ctx, RunOptions{Subreddits: []string{"r/consulting"}, ItemsPerSource: 5})
	require.NoError(t, err)

	require.Len(t, res.Report, 2)
	assert.Equal(t, types.StatusAdded, res.Report[0].Status)
	assert.Equal(t, types.StatusNotViable, res.Report[1].Status)
	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, "https://reddit.com/r/consulting/comments/p1/booking/", rec.Reddit.URL)
	require.NotNil(t, rec.Reddit.ID)
	assert.Equal(t, "p1", *rec.Reddit.ID)

	// Stored in SQL and the results file.
	got, err := a.IdeaByUUID(ctx, rec.Meta.UUID)
	require.NoError(t, err)
	assert.Equal(t, rec.CursorPlaybook, got.CursorPlaybook)

	lines, err := store.NewJSONLFile(a.Config().Storage.ResultsFile).ReadAll()
	require.NoError(t, err)
	assert.Len(t, lines, 1)

	recent, err := a.RecentIdeas(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "Scheduling is painful", recent[0].Description)

	require.NotNil(t, a.LastRun())
	assert.Len(t, a.LastRun().Report, 2)

	again, err := a.Run(ctx, RunOptions{ItemsPerSource: 5})
	require.NoError(t, err)
	assert.Empty(t, again.Records)
	assert.Empty(t, again.Report)
}

func TestApp_RunManual(t *testing.T) {
	a, provider := newTestApp(t, &stubClient{})

	res, err := a.RunManual(context.Background(), "A booking tool for clinics NOTVIABLE", "me@example.com")
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Nil(t, res.Records[0].Reddit.ID)
	assert.Equal(t, "me@example.com", res.Records[0].OwnerEmail)
	assert.Equal(t, 3, provider.calls)
}

func TestApp_RunURL(t *testing.T) {
	a, _ := newTestApp(t, &stubClient{threads: threads()})

	res, err := a.RunURL(context.Background(), "https://www.reddit.com/r/consulting/comments/p1/booking/", "")
	require.NoError(t, err)
	assert.Len(t, res.Records, 1)

	// The thread is now seen, so a normal run skips it.
	again, err := a.Run(context.Background(), RunOptions{ItemsPerSource: 5})
	require.NoError(t, err)
	require.Len(t, again.Report, 1)
	assert.Equal(t, "Vent", again.Report[0].Title)
}

func TestApp_ProviderErrorSurfaces(t *testing.T) {
	cfg, path := testConfig(t)
	a, err := New(context.Background(), cfg, path,
		WithAuthManager(auth.NewManager(auth.NewCookieStore(filepath.Join(t.TempDir(), "c.json")), nil)),
		WithProviderFactory(func(context.Context, config.AnalysisConfig) (analyzer.Provider, error) {
			return nil, fmt.Errorf("no key")
		}),
	)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Run(context.Background(), RunOptions{})
	assert.ErrorContains(t, err, "no key")
}

func TestApp_ReloadConfig(t *testing.T) {
	a, _ := newTestApp(t, &stubClient{threads: threads()})

	cfg := *a.Config()
	cfg.Sources.Subreddits = []string{"startups"}
	require.NoError(t, cfg.Save(a.configPath))

	require.NoError(t, a.ReloadConfig(context.Background()))
	assert.Equal(t, []string{"startups"}, a.Config().Sources.Subreddits)

	// Broken file keeps the old config.
	require.NoError(t, os.WriteFile(a.configPath, []byte("this is = = not toml"), 0600))
	assert.Error(t, a.ReloadConfig(context.Background()))
	assert.Equal(t, []string{"startups"}, a.Config().Sources.Subreddits)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Driver = "oracle"
	_, err := New(context.Background(), cfg, "")
	assert.Error(t, err)
}

func TestApp_SendDigestNotConfigured(t *testing.T) {
	a, _ := newTestApp(t, &stubClient{})
	err := a.SendDigest([]types.IdeaRecord{{Meta: types.RecordMeta{UUID: "x"}}})
	assert.ErrorContains(t, err, "digest not sent")
}

func TestApp_SendDigestCachesArtifacts(t *testing.T) {
	cache := store.NewCache(t.TempDir())
	a, _ := newTestApp(t, &stubClient{}, WithCache(cache))

	rec := types.IdeaRecord{Meta: types.RecordMeta{UUID: "x"}, Reddit: types.SourceRef{Title: "Booking tool", Subreddit: "consulting"}}
	err := a.SendDigest([]types.IdeaRecord{rec})
	assert.ErrorContains(t, err, "digest not sent")

	htmlPath, err := cache.LatestStepFile(store.StepDigest, ".html")
	require.NoError(t, err)
	html, err := os.ReadFile(htmlPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Booking tool")

	d, _, err := store.LoadLatestStepOutput[digest.Digest](cache, store.StepDigest)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, d.IdeaIDs)
}

func TestApp_LastRunFromStepCache(t *testing.T) {
	cache := store.NewCache(t.TempDir())

	a, _ := newTestApp(t, &stubClient{}, WithCache(cache))
	assert.Nil(t, a.LastRun())

	report := []types.ReportEntry{{Title: "Booking hell", Status: types.StatusAdded}}
	_, err := store.SaveStepOutput(cache, store.StepReport, report)
	require.NoError(t, err)
	_, err = store.SaveStepOutput(cache, store.StepRecords, []types.IdeaRecord{{Meta: types.RecordMeta{UUID: "u1"}}})
	require.NoError(t, err)

	last := a.LastRun()
	require.NotNil(t, last)
	assert.Equal(t, report, last.Report)
	require.Len(t, last.Records, 1)
	assert.Equal(t, "u1", last.Records[0].Meta.UUID)
	assert.False(t, last.FinishedAt.IsZero())
}
