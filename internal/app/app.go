// Package app wires configuration, storage, the Reddit client and the model
// provider into the pipeline, and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/ideaminer/internal/analyzer"
	"github.com/ibeckermayer/ideaminer/internal/auth"
	"github.com/ibeckermayer/ideaminer/internal/config"
	"github.com/ibeckermayer/ideaminer/internal/digest"
	"github.com/ibeckermayer/ideaminer/internal/logging"
	"github.com/ibeckermayer/ideaminer/internal/metrics"
	"github.com/ibeckermayer/ideaminer/internal/notifier"
	"github.com/ibeckermayer/ideaminer/internal/pipeline"
	"github.com/ibeckermayer/ideaminer/internal/store"
	"github.com/ibeckermayer/ideaminer/internal/types"
)

// App holds the application state.
type App struct {
	// immutable after creation
	configPath  string
	authManager *auth.Manager
	cache       *store.Cache
	metrics     *metrics.Metrics
	logger      *zap.Logger
	newProvider ProviderFactory
	newClient   ClientFactory
	sleeper     func(context.Context, time.Duration)

	// Mutable fields - use getSnapshot() for concurrent access.
	mu      sync.RWMutex
	config  *config.Config
	stores  *stores
	runtime *runtime

	// runMu serialises pipeline runs; the seen-set has a single writer.
	runMu sync.Mutex

	lastMu  sync.RWMutex
	lastRun *pipeline.Result
}

// snapshot holds fields that may be replaced by ReloadConfig.
type snapshot struct {
	config *config.Config
	stores *stores
}

func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{config: a.config, stores: a.stores}
}

type Option func(*App)

func WithLogger(l *zap.Logger) Option {
	return func(a *App) { a.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

func WithCache(c *store.Cache) Option {
	return func(a *App) { a.cache = c }
}

func WithAuthManager(m *auth.Manager) Option {
	return func(a *App) { a.authManager = m }
}

// WithProviderFactory replaces the LLM provider constructor.
func WithProviderFactory(f ProviderFactory) Option {
	return func(a *App) { a.newProvider = f }
}

// WithClientFactory replaces the Reddit client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(a *App) { a.newClient = f }
}

// WithSleeper replaces the inter-item delay, for tests.
func WithSleeper(fn func(context.Context, time.Duration)) Option {
	return func(a *App) { a.sleeper = fn }
}

// New opens storage for cfg. The model provider and Reddit client are
// created on the first run, so read-only commands need no API keys.
func New(ctx context.Context, cfg *config.Config, configPath string, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		configPath:  configPath,
		config:      cfg,
		newProvider: analyzer.NewProvider,
		newClient:   DefaultClient,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logging.OrNop(a.logger)
	if a.authManager == nil {
		path, err := auth.DefaultCookieStorePath()
		if err != nil {
			return nil, err
		}
		a.authManager = auth.NewManager(auth.NewCookieStore(path), a.logger.Named("auth"))
	}

	st, err := openStores(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.stores = st
	return a, nil
}

// Config returns the current configuration.
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// Metrics returns the collectors shared by every run, possibly nil.
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// ensureRuntime builds the pipeline for the current config once.
func (a *App) ensureRuntime(ctx context.Context) (*pipeline.Pipeline, snapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := snapshot{config: a.config, stores: a.stores}
	if a.runtime != nil {
		return a.runtime.pipeline, snap, nil
	}

	rt, err := buildRuntime(ctx, runtimeDeps{
		cfg:         a.config,
		stores:      a.stores,
		cache:       a.cache,
		metrics:     a.metrics,
		logger:      a.logger,
		authManager: a.authManager,
		newProvider: a.newProvider,
		newClient:   a.newClient,
		sleeper:     a.sleeper,
	})
	if err != nil {
		return nil, snap, err
	}
	a.runtime = rt
	return rt.pipeline, snap, nil
}

// RunOptions overrides the configured sources for one run. Zero values fall
// back to the config.
type RunOptions struct {
	Subreddits     []string
	ItemsPerSource int
	RepliesPerItem int
	Exclude        []string
	Owner          string
}

// Run executes the pipeline once and remembers the result.
func (a *App) Run(ctx context.Context, opts RunOptions) (pipeline.Result, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	p, snap, err := a.ensureRuntime(ctx)
	if err != nil {
		return pipeline.Result{}, err
	}

	req := pipeline.RunRequest{
		Subreddits:     config.Subreddits(opts.Subreddits),
		ItemsPerSource: opts.ItemsPerSource,
		RepliesPerItem: opts.RepliesPerItem,
		Exclude:        types.NewIDSet(opts.Exclude...),
		Owner:          opts.Owner,
	}
	if len(req.Subreddits) == 0 {
		req.Subreddits = config.Subreddits(snap.config.Sources.Subreddits)
	}
	if req.ItemsPerSource <= 0 {
		req.ItemsPerSource = snap.config.Sources.ItemsPerSource
	}
	if req.RepliesPerItem <= 0 {
		req.RepliesPerItem = snap.config.Sources.RepliesPerItem
	}
	if len(req.Subreddits) == 0 {
		return pipeline.Result{}, errors.New("no subreddits configured")
	}

	res, err := p.Run(ctx, req)
	if err != nil {
		return res, err
	}
	a.setLastRun(res)
	return res, nil
}

// RunManual runs free text through the stages without the viability gate.
func (a *App) RunManual(ctx context.Context, text, owner string) (pipeline.Result, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	p, _, err := a.ensureRuntime(ctx)
	if err != nil {
		return pipeline.Result{}, err
	}
	return p.RunManual(ctx, text, owner)
}

// RunURL analyses one thread by permalink.
func (a *App) RunURL(ctx context.Context, permalink, owner string) (pipeline.Result, error) {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	p, snap, err := a.ensureRuntime(ctx)
	if err != nil {
		return pipeline.Result{}, err
	}
	return p.RunURL(ctx, permalink, snap.config.Sources.RepliesPerItem, owner)
}

// RunScheduled is the scheduler job: a configured run followed by a digest
// of the new ideas when enabled.
func (a *App) RunScheduled(ctx context.Context) error {
	res, err := a.Run(ctx, RunOptions{})
	if err != nil {
		return err
	}
	if !a.getSnapshot().config.Digest.Enabled || len(res.Records) == 0 {
		return nil
	}
	return a.SendDigest(res.Records)
}

// SendDigest builds a digest of records and emails it.
func (a *App) SendDigest(records []types.IdeaRecord) error {
	cfg := a.getSnapshot().config

	builder, err := digest.New(cfg.Digest.MaxIdeas)
	if err != nil {
		return err
	}
	d, err := builder.Build(records)
	if err != nil {
		return err
	}
	if a.cache != nil {
		if path, err := store.SaveStepOutput(a.cache, store.StepDigest, d); err != nil {
			a.logger.Warn("failed to cache digest", zap.Error(err))
		} else {
			a.logger.Debug("cached digest", zap.String("path", path))
		}
		if _, err := a.cache.SaveTextOutput(store.StepDigest, d.HTMLBody, ".html"); err != nil {
			a.logger.Warn("failed to cache digest html", zap.Error(err))
		}
	}

	n, err := notifier.NewFromConfig(cfg.Email)
	if err != nil {
		return fmt.Errorf("digest not sent: %w", err)
	}
	if err := n.SendDigest(d); err != nil {
		return err
	}
	a.logger.Info("digest sent", zap.Int("ideas", len(d.IdeaIDs)), zap.String("to", cfg.Email.ToAddr))
	return nil
}

func (a *App) setLastRun(res pipeline.Result) {
	a.lastMu.Lock()
	defer a.lastMu.Unlock()
	a.lastRun = &res
}

// LastRun returns the most recent pipeline result. Before any run in this
// process it falls back to the report and records in the step cache, and
// returns nil when there are none.
func (a *App) LastRun() *pipeline.Result {
	a.lastMu.RLock()
	last := a.lastRun
	a.lastMu.RUnlock()
	if last != nil || a.cache == nil {
		return last
	}
	return a.cachedRun()
}

func (a *App) cachedRun() *pipeline.Result {
	report, path, err := store.LoadLatestStepOutput[[]types.ReportEntry](a.cache, store.StepReport)
	if err != nil {
		return nil
	}
	res := &pipeline.Result{Report: report, Records: []types.IdeaRecord{}}
	if records, _, err := store.LoadLatestStepOutput[[]types.IdeaRecord](a.cache, store.StepRecords); err == nil {
		res.Records = records
	}
	if info, err := os.Stat(path); err == nil {
		res.FinishedAt = info.ModTime()
	}
	return res
}

// RecentIdeas lists the newest stored ideas.
func (a *App) RecentIdeas(ctx context.Context, limit int) ([]types.IdeaSummary, error) {
	return a.getSnapshot().stores.sql.RecentIdeas(ctx, limit)
}

// IdeaByUUID loads one stored idea. The results file is consulted when the
// database has no match.
func (a *App) IdeaByUUID(ctx context.Context, id string) (types.IdeaRecord, error) {
	st := a.getSnapshot().stores
	rec, err := st.sql.IdeaByUUID(ctx, id)
	if errors.Is(err, store.ErrNotFound) && st.jsonl != nil {
		return st.jsonl.IdeaByUUID(ctx, id)
	}
	return rec, err
}

// IsAuthenticated checks if a Reddit browser session is stored.
func (a *App) IsAuthenticated() bool {
	return a.authManager.IsAuthenticated()
}

// Login opens a browser for the Reddit login flow.
func (a *App) Login(ctx context.Context) error {
	a.logger.Info("login triggered - opening browser for reddit authentication")
	if err := a.authManager.Login(ctx); err != nil {
		a.logger.Error("login failed", zap.Error(err))
		return err
	}
	a.dropRuntime()
	return nil
}

// Logout clears the stored Reddit session.
func (a *App) Logout() error {
	if err := a.authManager.Logout(); err != nil {
		a.logger.Error("logout failed", zap.Error(err))
		return err
	}
	a.logger.Info("logout successful - cookies cleared")
	a.dropRuntime()
	return nil
}

// dropRuntime forces the next run to rebuild its client.
func (a *App) dropRuntime() {
	a.runMu.Lock()
	defer a.runMu.Unlock()

	a.mu.Lock()
	rt := a.runtime
	a.runtime = nil
	a.mu.Unlock()
	if rt != nil {
		if err := rt.Close(); err != nil {
			a.logger.Warn("close client", zap.Error(err))
		}
	}
}

// ReloadConfig reloads the configuration from disk. Storage is reopened and
// the pipeline rebuilt on the next run. A run in progress is waited for.
func (a *App) ReloadConfig(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	st, err := openStores(ctx, cfg.Storage)
	if err != nil {
		return err
	}

	a.runMu.Lock()
	defer a.runMu.Unlock()

	a.mu.Lock()
	oldStores, oldRuntime := a.stores, a.runtime
	a.config = cfg
	a.stores = st
	a.runtime = nil
	a.mu.Unlock()

	if oldRuntime != nil {
		if err := oldRuntime.Close(); err != nil {
			a.logger.Warn("close client", zap.Error(err))
		}
	}
	if err := oldStores.Close(); err != nil {
		a.logger.Warn("close old storage", zap.Error(err))
	}

	a.logger.Info("configuration reloaded", zap.String("path", a.configPath))
	return nil
}

// Close releases every handle.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	if a.runtime != nil {
		errs = append(errs, a.runtime.Close())
		a.runtime = nil
	}
	if a.stores != nil {
		errs = append(errs, a.stores.Close())
	}
	return errors.Join(errs...)
}
