package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/ideaminer/internal/analyzer"
	"github.com/ibeckermayer/ideaminer/internal/auth"
	"github.com/ibeckermayer/ideaminer/internal/config"
	"github.com/ibeckermayer/ideaminer/internal/metrics"
	"github.com/ibeckermayer/ideaminer/internal/pipeline"
	"github.com/ibeckermayer/ideaminer/internal/scraper"
	"github.com/ibeckermayer/ideaminer/internal/store"
)

// ProviderFactory builds the chat model for a config.
type ProviderFactory func(ctx context.Context, cfg config.AnalysisConfig) (analyzer.Provider, error)

// ClientFactory builds the Reddit client for a config.
type ClientFactory func(ctx context.Context, cfg *config.Config, authManager *auth.Manager) (scraper.Client, error)

// DefaultClient picks the client named in [sources].client.
func DefaultClient(ctx context.Context, cfg *config.Config, authManager *auth.Manager) (scraper.Client, error) {
	switch cfg.Sources.Client {
	case config.ClientAPI, "":
		return scraper.NewAPIClient(ctx, scraper.APIConfig{
			ClientID:          cfg.Reddit.ClientID,
			ClientSecret:      cfg.Reddit.ClientSecret,
			UserAgent:         cfg.Reddit.UserAgent,
			RequestsPerMinute: cfg.Reddit.RequestsPerMinute,
		}), nil
	case config.ClientFeed:
		return scraper.NewFeedClient("", cfg.Reddit.UserAgent, cfg.Reddit.RequestsPerMinute), nil
	case config.ClientBrowser:
		cookies, err := authManager.GetCookies()
		if err != nil {
			return nil, fmt.Errorf("load reddit session: %w", err)
		}
		return scraper.NewBrowserClient(cfg.Sources.Headless, cookies), nil
	default:
		return nil, fmt.Errorf("unknown fetch client: %s", cfg.Sources.Client)
	}
}

// stores groups everything opened from [storage].
type stores struct {
	sql   *store.SQLStore
	jsonl *store.JSONLFile
	seen  pipeline.SeenStore
	sink  store.Sink
	redis *store.RedisSeenSet
}

func openStores(ctx context.Context, cfg config.StorageConfig) (*stores, error) {
	sqlStore, err := store.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &stores{sql: sqlStore, seen: sqlStore}
	// The database is authoritative; the results file mirrors it.
	sinks := store.MultiSink{Primary: sqlStore}
	if cfg.ResultsFile != "" {
		s.jsonl = store.NewJSONLFile(cfg.ResultsFile)
		sinks.Mirrors = append(sinks.Mirrors, s.jsonl)
	}
	s.sink = sinks

	if cfg.SeenBackend == config.SeenRedis {
		r, err := store.NewRedisSeenSet(ctx, cfg.RedisAddr, cfg.RedisKey)
		if err != nil {
			sqlStore.Close()
			return nil, fmt.Errorf("open redis seen-set: %w", err)
		}
		s.redis = r
		s.seen = r
	}
	return s, nil
}

func (s *stores) Close() error {
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
	}
	errs = append(errs, s.sql.Close())
	return errors.Join(errs...)
}

// runtime is the pipeline and the handles it owns for one config.
type runtime struct {
	pipeline *pipeline.Pipeline
	client   scraper.Client
}

func (r *runtime) Close() error {
	if c, ok := r.client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

type runtimeDeps struct {
	cfg         *config.Config
	stores      *stores
	cache       *store.Cache
	metrics     *metrics.Metrics
	logger      *zap.Logger
	authManager *auth.Manager
	newProvider ProviderFactory
	newClient   ClientFactory
	sleeper     func(context.Context, time.Duration)
}

func buildRuntime(ctx context.Context, d runtimeDeps) (*runtime, error) {
	cfg := d.cfg

	provider, err := d.newProvider(ctx, cfg.Analysis)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}
	client, err := d.newClient(ctx, cfg, d.authManager)
	if err != nil {
		return nil, fmt.Errorf("create reddit client: %w", err)
	}

	var gwOpts []analyzer.GatewayOption
	if cfg.Analysis.CacheExchanges && d.cache != nil {
		gwOpts = append(gwOpts, analyzer.WithExchangeRecorder(d.cache))
	}
	gateway := analyzer.NewGateway(provider, d.logger.Named("gateway"), gwOpts...)

	runner := analyzer.NewRunner(gateway, analyzer.RunnerConfig{
		MaxOutputTokens: cfg.Analysis.MaxOutputTokens,
		ContextReplies:  cfg.Sources.ContextReplies,
		StrictPlaybook:  cfg.Analysis.StrictPlaybook,
	}, d.logger.Named("runner"))

	fetcher := scraper.NewFetcher(client, scraper.Listing{
		Mode:   cfg.Sources.Listing,
		Window: cfg.Sources.TopWindow,
	}, d.logger.Named("scraper"))

	opts := []pipeline.Option{
		pipeline.WithSink(d.stores.sink),
		pipeline.WithMetrics(d.metrics),
		pipeline.WithItemDelay(cfg.Analysis.ItemDelay.Duration),
	}
	if cfg.Analysis.CacheSteps && d.cache != nil {
		opts = append(opts, pipeline.WithStepCache(d.cache))
	}
	if d.sleeper != nil {
		opts = append(opts, pipeline.WithSleeper(d.sleeper))
	}

	d.logger.Info("pipeline ready",
		zap.String("provider", provider.Name()),
		zap.String("model", provider.Model()),
		zap.String("client", cfg.Sources.Client),
		zap.String("seen_backend", cfg.Storage.SeenBackend))

	return &runtime{
		pipeline: pipeline.New(fetcher, runner, d.stores.seen, d.logger.Named("pipeline"), opts...),
		client:   client,
	}, nil
}
