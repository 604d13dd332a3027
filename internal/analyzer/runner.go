package analyzer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ibeckermayer/ideaminer/internal/logging"
	"github.com/ibeckermayer/ideaminer/internal/types"
)

// State is where an item is in the three-stage pipeline.
type State int

const (
	StateFetched State = iota
	StateAnalyzed
	StateViable
	StateRejected
	StateSolved
	StatePlaybooked
	StateDone
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateFetched:
		return "fetched"
	case StateAnalyzed:
		return "analyzed"
	case StateViable:
		return "viable"
	case StateRejected:
		return "rejected"
	case StateSolved:
		return "solved"
	case StatePlaybooked:
		return "playbooked"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateRejected || s == StateErrored
}

// Stage names a model-calling step.
type Stage string

const (
	StageAnalysis Stage = "analysis"
	StageSolution Stage = "solution"
	StagePlaybook Stage = "playbook"
)

// FailureDetail is the report text for a failed stage.
func (s Stage) FailureDetail() string {
	return string(s) + " step failed"
}

// Outcome is the result of running one item. Record is set only when State
// is StateDone.
type Outcome struct {
	State       State
	FailedStage Stage
	Record      *types.IdeaRecord
	Report      types.ReportEntry
}

// RunnerConfig tunes the stage runner.
type RunnerConfig struct {
	MaxOutputTokens int
	ContextReplies  int
	StrictPlaybook  bool
}

// DefaultRunnerConfig matches the config defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		MaxOutputTokens: 25000,
		ContextReplies:  DefaultContextReplies,
	}
}

// Runner drives one item through analysis, solution and playbook.
type Runner struct {
	gateway JSONCompleter
	cfg     RunnerConfig
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
	onStage func(Stage, error)
}

type RunnerOption func(*Runner)

// WithClock sets the clock used for record timestamps.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// WithIDGenerator sets the record id generator.
func WithIDGenerator(newID func() string) RunnerOption {
	return func(r *Runner) { r.newID = newID }
}

// WithStageHook is called after every model-calling stage with its error.
func WithStageHook(fn func(Stage, error)) RunnerOption {
	return func(r *Runner) { r.onStage = fn }
}

func NewRunner(gateway JSONCompleter, cfg RunnerConfig, logger *zap.Logger, opts ...RunnerOption) *Runner {
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultRunnerConfig().MaxOutputTokens
	}
	r := &Runner{
		gateway: gateway,
		cfg:     cfg,
		logger:  logging.OrNop(logger),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes a fetched item with the viability gate.
func (r *Runner) Run(ctx context.Context, item types.DiscussionItem) Outcome {
	return r.run(ctx, item, true)
}

// RunUngated processes an item as if stage 1 had judged it viable. Stage 1
// still runs so the record carries an analysis.
func (r *Runner) RunUngated(ctx context.Context, item types.DiscussionItem) Outcome {
	return r.run(ctx, item, false)
}

func (r *Runner) run(ctx context.Context, item types.DiscussionItem, gated bool) Outcome {
	log := r.logger.With(zap.String("subreddit", item.SourceName), zap.String("item_id", item.ID))
	out := Outcome{
		State:  StateFetched,
		Report: types.ReportEntry{Title: item.Title, URL: item.URL},
	}

	fullText := BuildContext(item, r.cfg.ContextReplies)

	// FETCHED -> ANALYZED
	analysis, err := callStage[types.Analysis](ctx, r, StageAnalysis, AnalysisPrompt(fullText))
	if err != nil {
		return r.fail(log, out, StageAnalysis, err)
	}
	out.State = StateAnalyzed

	// ANALYZED -> VIABLE | REJECTED
	if gated && !bool(analysis.IsViable) {
		out.State = StateRejected
		out.Report.Status = types.StatusNotViable
		out.Report.Details = analysis.Description()
		log.Info("item not viable", zap.String("status", string(out.Report.Status)))
		return out
	}
	out.State = StateViable

	problem := analysis.Problem()

	// VIABLE -> SOLVED
	solution, err := callStage[types.Solution](ctx, r, StageSolution, SolutionPrompt(problem, string(analysis.TargetMarket), fullText))
	if err != nil {
		return r.fail(log, out, StageSolution, err)
	}
	if len(solution.MVPFeatures) > 3 {
		log.Warn("solution proposes more than 3 MVP features", zap.Int("features", len(solution.MVPFeatures)))
	}
	out.State = StateSolved

	// SOLVED -> PLAYBOOKED
	raw, err := r.gateway.CompleteJSON(WithStage(ctx, StagePlaybook), PlaybookPrompt(problem, string(analysis.TargetMarket), solution.SolutionDescription), r.cfg.MaxOutputTokens)
	var playbook types.Playbook
	if err == nil {
		playbook, err = decodePlaybook(raw)
	}
	if err == nil {
		if shapeErr := ValidatePlaybook(playbook); shapeErr != nil {
			log.Warn("playbook shape mismatch", zap.Error(shapeErr), zap.Bool("strict", r.cfg.StrictPlaybook))
			if r.cfg.StrictPlaybook {
				err = newFailure(FailureMalformed, "playbook shape mismatch", shapeErr)
			}
		}
	}
	r.stageDone(StagePlaybook, err)
	if err != nil {
		return r.fail(log, out, StagePlaybook, err)
	}
	out.State = StatePlaybooked

	// PLAYBOOKED -> DONE
	record := types.IdeaRecord{
		Meta: types.RecordMeta{
			UUID:      r.newID(),
			ScrapedAt: types.NewTimestamp(r.now()),
		},
		Reddit: types.SourceRef{
			Subreddit: item.SourceName,
			URL:       item.URL,
			Title:     item.Title,
		},
		Analysis:       analysis,
		Solution:       solution,
		CursorPlaybook: playbook.Prompts,
	}
	if item.ID != "" {
		id := item.ID
		record.Reddit.ID = &id
	}

	out.State = StateDone
	out.Record = &record
	out.Report.Status = types.StatusAdded
	out.Report.Details = analysis.Description()
	log.Info("idea added", zap.String("uuid", record.Meta.UUID), zap.Int("prompts", len(record.CursorPlaybook)))
	return out
}

// callStage runs one model call and decodes its object.
func callStage[T any](ctx context.Context, r *Runner, stage Stage, prompt string) (T, error) {
	var zero T
	raw, err := r.gateway.CompleteJSON(WithStage(ctx, stage), prompt, r.cfg.MaxOutputTokens)
	if err == nil {
		var v T
		v, err = decodeStage[T](raw, stage)
		if err == nil {
			r.stageDone(stage, nil)
			return v, nil
		}
	}
	r.stageDone(stage, err)
	return zero, err
}

func (r *Runner) stageDone(stage Stage, err error) {
	if r.onStage != nil {
		r.onStage(stage, err)
	}
}

func (r *Runner) fail(log *zap.Logger, out Outcome, stage Stage, err error) Outcome {
	out.State = StateErrored
	out.FailedStage = stage
	out.Report.Status = types.StatusError
	out.Report.Details = stage.FailureDetail()
	log.Warn("stage failed",
		zap.String("stage", string(stage)),
		zap.Stringer("kind", FailureKindOf(err)),
		zap.Error(err),
		zap.String("status", string(out.Report.Status)))
	return out
}
