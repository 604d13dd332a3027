// Package pipeline runs subreddits through fetch, the three model stages and
// the seen-set, producing idea records and a per-item report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/ibeckermayer/ideaminer/internal/analyzer"
	"github.com/ibeckermayer/ideaminer/internal/logging"
	"github.com/ibeckermayer/ideaminer/internal/metrics"
	"github.com/ibeckermayer/ideaminer/internal/scraper"
	"github.com/ibeckermayer/ideaminer/internal/store"
	"github.com/ibeckermayer/ideaminer/internal/types"
)

const (
	// DefaultItemDelay is the pause after every attempted item.
	DefaultItemDelay = 1200 * time.Millisecond

	// ManualSource is the source name on records built from free text.
	ManualSource = "manual"

	maxTitleRunes = 120

	detailBlankIdea   = "idea text is empty"
	detailSeenFailed  = "seen-set update failed"
	detailSaveFailed  = "record save failed"
	detailFetchFailed = "thread fetch failed"
	detailBadLink     = "not a reddit post link"
)

// ErrBlankIdea is returned by RunManual for empty input.
var ErrBlankIdea = errors.New("idea text is blank")

// SeenStore is the durable set of processed item ids.
type SeenStore interface {
	LoadSeen(ctx context.Context) (types.IDSet, error)
	MarkSeen(ctx context.Context, id string) error
}

// Source fetches discussion items. *scraper.Fetcher satisfies it.
type Source interface {
	Fetch(ctx context.Context, subreddit string, desired, replyLimit int, exclude types.IDSet) ([]types.DiscussionItem, error)
	FetchThread(ctx context.Context, id string, replyLimit int) (types.DiscussionItem, error)
}

// ItemRunner runs the model stages for one item. *analyzer.Runner satisfies it.
type ItemRunner interface {
	Run(ctx context.Context, item types.DiscussionItem) analyzer.Outcome
	RunUngated(ctx context.Context, item types.DiscussionItem) analyzer.Outcome
}

// RunRequest describes one pipeline run.
type RunRequest struct {
	Subreddits     []string
	ItemsPerSource int
	RepliesPerItem int
	// Exclude is unioned with the stored seen-set.
	Exclude types.IDSet
	// Owner is stamped on every record, if set.
	Owner string
}

// SourceError records a subreddit whose fetch failed.
type SourceError struct {
	Subreddit string `json:"subreddit"`
	Error     string `json:"error"`
}

// Result is the output of one run.
type Result struct {
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
	Records      []types.IdeaRecord  `json:"records"`
	Report       []types.ReportEntry `json:"report"`
	SourceErrors []SourceError       `json:"source_errors,omitempty"`
}

// Pipeline processes items strictly one after another.
type Pipeline struct {
	source  Source
	runner  ItemRunner
	seen    SeenStore
	sink    store.Sink
	cache   *store.Cache
	metrics *metrics.Metrics
	logger  *zap.Logger

	delay time.Duration
	sleep func(context.Context, time.Duration)
	now   func() time.Time
}

type Option func(*Pipeline)

// WithSink saves each record as soon as it is produced.
func WithSink(s store.Sink) Option {
	return func(p *Pipeline) { p.sink = s }
}

// WithStepCache writes fetched items, the report and records of every run
// into the cache.
func WithStepCache(c *store.Cache) Option {
	return func(p *Pipeline) { p.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithItemDelay overrides the pause after each item.
func WithItemDelay(d time.Duration) Option {
	return func(p *Pipeline) { p.delay = d }
}

// WithSleeper replaces the delay implementation, for tests.
func WithSleeper(sleep func(context.Context, time.Duration)) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(source Source, runner ItemRunner, seen SeenStore, logger *zap.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		source: source,
		runner: runner,
		seen:   seen,
		logger: logging.OrNop(logger),
		delay:  DefaultItemDelay,
		sleep:  sleepContext,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// sleepContext blocks for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Run fetches every subreddit in order and processes each new item. Only a
// failure to load the seen-set fails the run; fetch failures land in
// SourceErrors and model failures in the report.
func (p *Pipeline) Run(ctx context.Context, req RunRequest) (Result, error) {
	res := Result{StartedAt: p.now(), Records: []types.IdeaRecord{}, Report: []types.ReportEntry{}}

	seen, err := p.seen.LoadSeen(ctx)
	if err != nil {
		return res, fmt.Errorf("load seen-set: %w", err)
	}
	excluded := types.NewIDSet()
	excluded.Merge(seen)
	excluded.Merge(req.Exclude)

	p.logger.Info("pipeline run starting",
		zap.Strings("subreddits", req.Subreddits),
		zap.Int("items_per_source", req.ItemsPerSource),
		zap.Int("replies_per_item", req.RepliesPerItem),
		zap.Int("seen", len(excluded)))

	var fetched []types.DiscussionItem
	for _, sub := range req.Subreddits {
		items, err := p.source.Fetch(ctx, sub, req.ItemsPerSource, req.RepliesPerItem, excluded)
		if err != nil {
			p.logger.Error("fetch failed", zap.String("subreddit", sub), zap.Error(err))
			p.metrics.FetchFailed(sub)
			res.SourceErrors = append(res.SourceErrors, SourceError{Subreddit: sub, Error: err.Error()})
			continue
		}
		fetched = append(fetched, items...)

		for _, item := range items {
			entry, record := p.processItem(ctx, item, req.Owner)
			p.collect(&res, entry, record)
			// Later subreddits may return the same thread.
			excluded.Add(item.ID)
			p.sleep(ctx, p.delay)
		}
	}

	res.FinishedAt = p.now()
	p.metrics.RunFinished(res.StartedAt, res.FinishedAt)
	p.cacheRun(fetched, res)

	p.logger.Info("pipeline run finished",
		zap.Int("attempted", len(res.Report)),
		zap.Int("records", len(res.Records)),
		zap.Int("source_errors", len(res.SourceErrors)),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

// processItem marks the item seen, then runs the gated stages.
func (p *Pipeline) processItem(ctx context.Context, item types.DiscussionItem, owner string) (types.ReportEntry, *types.IdeaRecord) {
	log := p.logger.With(zap.String("subreddit", item.SourceName), zap.String("item_id", item.ID))

	if err := p.seen.MarkSeen(ctx, item.ID); err != nil {
		log.Error("mark seen failed; skipping item", zap.Error(err), zap.String("status", string(types.StatusError)))
		return types.ReportEntry{Title: item.Title, URL: item.URL, Status: types.StatusError, Details: detailSeenFailed}, nil
	}

	return p.finish(ctx, log, p.runner.Run(ctx, item), owner)
}

// finish stamps the owner, persists the record and records metrics.
func (p *Pipeline) finish(ctx context.Context, log *zap.Logger, out analyzer.Outcome, owner string) (types.ReportEntry, *types.IdeaRecord) {
	if out.State == analyzer.StateErrored {
		p.metrics.StageFailed(string(out.FailedStage))
	}
	if out.Record == nil {
		return out.Report, nil
	}

	out.Record.OwnerEmail = owner
	if p.sink != nil {
		err := p.sink.SaveIdeas(ctx, []types.IdeaRecord{*out.Record})
		var mirrorErr *store.MirrorError
		if errors.As(err, &mirrorErr) {
			// The primary store holds the record; only a copy is missing.
			log.Warn("mirror save failed", zap.Error(err), zap.String("uuid", out.Record.Meta.UUID))
		} else if err != nil {
			log.Error("save record failed", zap.Error(err), zap.String("uuid", out.Record.Meta.UUID))
			out.Report.Status = types.StatusError
			out.Report.Details = detailSaveFailed
			return out.Report, nil
		}
	}
	return out.Report, out.Record
}

func (p *Pipeline) collect(res *Result, entry types.ReportEntry, record *types.IdeaRecord) {
	res.Report = append(res.Report, entry)
	p.metrics.ItemProcessed(string(entry.Status))
	if record != nil {
		res.Records = append(res.Records, *record)
		p.metrics.RecordProduced()
	}
}

// RunManual runs free text through all three stages without the viability
// gate. Blank text yields one Error row and ErrBlankIdea, with no model call.
func (p *Pipeline) RunManual(ctx context.Context, text, owner string) (Result, error) {
	res := Result{StartedAt: p.now(), Records: []types.IdeaRecord{}, Report: []types.ReportEntry{}}

	text = strings.TrimSpace(text)
	if text == "" {
		p.collect(&res, types.ReportEntry{Status: types.StatusError, Details: detailBlankIdea}, nil)
		res.FinishedAt = p.now()
		return res, ErrBlankIdea
	}

	item := types.DiscussionItem{
		SourceName: ManualSource,
		Title:      ManualTitle(text),
		Body:       text,
		Replies:    []string{},
	}
	log := p.logger.With(zap.String("subreddit", ManualSource))
	entry, record := p.finish(ctx, log, p.runner.RunUngated(ctx, item), owner)
	p.collect(&res, entry, record)

	res.FinishedAt = p.now()
	p.cacheRun([]types.DiscussionItem{item}, res)
	return res, nil
}

// RunURL analyses one Reddit thread by permalink with the viability gate.
// The thread is marked seen like any fetched item.
func (p *Pipeline) RunURL(ctx context.Context, permalink string, replyLimit int, owner string) (Result, error) {
	res := Result{StartedAt: p.now(), Records: []types.IdeaRecord{}, Report: []types.ReportEntry{}}

	id, err := scraper.ParsePostID(permalink)
	if err != nil {
		p.collect(&res, types.ReportEntry{URL: permalink, Status: types.StatusError, Details: detailBadLink}, nil)
		res.FinishedAt = p.now()
		return res, err
	}

	item, err := p.source.FetchThread(ctx, id, replyLimit)
	if err != nil {
		p.logger.Error("thread fetch failed", zap.String("item_id", id), zap.Error(err))
		p.collect(&res, types.ReportEntry{URL: permalink, Status: types.StatusError, Details: detailFetchFailed}, nil)
		res.FinishedAt = p.now()
		return res, err
	}

	entry, record := p.processItem(ctx, item, owner)
	p.collect(&res, entry, record)

	res.FinishedAt = p.now()
	p.cacheRun([]types.DiscussionItem{item}, res)
	return res, nil
}

// ManualTitle is the first non-empty line of text, cut to 120 characters.
func ManualTitle(text string) string {
	for line := range strings.SplitSeq(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if utf8.RuneCountInString(line) > maxTitleRunes {
			line = string([]rune(line)[:maxTitleRunes])
		}
		return line
	}
	return ""
}

func (p *Pipeline) cacheRun(fetched []types.DiscussionItem, res Result) {
	if p.cache == nil {
		return
	}
	if _, err := store.SaveStepOutput(p.cache, store.StepFetched, fetched); err != nil {
		p.logger.Warn("cache fetched items", zap.Error(err))
	}
	if _, err := store.SaveStepOutput(p.cache, store.StepReport, res.Report); err != nil {
		p.logger.Warn("cache report", zap.Error(err))
	}
	if _, err := store.SaveStepOutput(p.cache, store.StepRecords, res.Records); err != nil {
		p.logger.Warn("cache records", zap.Error(err))
	}
}
