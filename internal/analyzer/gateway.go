package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/ideaminer/internal/logging"
	"github.com/ibeckermayer/ideaminer/internal/store"
)

// SystemInstruction is sent with every model call.
const SystemInstruction = "Return JSON only."

// JSONCompleter is what the stage runner needs from the gateway.
type JSONCompleter interface {
	CompleteJSON(ctx context.Context, prompt string, maxTokens int) (json.RawMessage, error)
}

// ExchangeRecorder persists prompt/response pairs for debugging.
type ExchangeRecorder interface {
	SaveLLMExchange(exchange store.LLMExchange) (string, error)
}

// Gateway sends one prompt to a Provider and returns a JSON object. Every
// failure comes back as a *ModelFailure; there are no retries.
type Gateway struct {
	provider Provider
	logger   *zap.Logger
	recorder ExchangeRecorder
	now      func() time.Time
}

type GatewayOption func(*Gateway)

// WithExchangeRecorder caches every exchange, successful or not.
func WithExchangeRecorder(r ExchangeRecorder) GatewayOption {
	return func(g *Gateway) { g.recorder = r }
}

func NewGateway(provider Provider, logger *zap.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		provider: provider,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type stageKey struct{}

// WithStage tags model calls made with ctx so cached exchanges name the stage
// they belong to.
func WithStage(ctx context.Context, stage Stage) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}

func stageFrom(ctx context.Context) Stage {
	s, _ := ctx.Value(stageKey{}).(Stage)
	return s
}

// CompleteJSON asks the model for a JSON object. A transport error, blank
// content, unparseable content, and an empty object all fail.
func (g *Gateway) CompleteJSON(ctx context.Context, prompt string, maxTokens int) (json.RawMessage, error) {
	start := g.now()
	raw, callErr := g.provider.ChatJSON(ctx, prompt, SystemInstruction, maxTokens)

	fields := []zap.Field{
		zap.String("provider", g.provider.Name()),
		zap.String("model", g.provider.Model()),
		zap.Duration("elapsed", g.now().Sub(start)),
	}
	if stage := stageFrom(ctx); stage != "" {
		fields = append(fields, zap.String("stage", string(stage)))
	}

	obj, failure := g.parse(raw, callErr, fields)
	g.record(ctx, start, prompt, raw, callErr, failure)
	if failure != nil {
		return nil, failure
	}
	return obj, nil
}

func (g *Gateway) parse(raw string, callErr error, fields []zap.Field) (json.RawMessage, *ModelFailure) {
	if callErr != nil {
		g.logger.Warn("model call failed", append(fields, zap.Error(callErr))...)
		return nil, newFailure(FailureTransport, "provider call failed", callErr)
	}
	if strings.TrimSpace(raw) == "" {
		g.logger.Warn("model returned empty content", fields...)
		return nil, newFailure(FailureEmpty, "empty content", nil)
	}

	obj := extractObject(raw)
	if obj == "" {
		g.logger.Warn("model returned no JSON object", append(fields, zap.String("response", truncate(raw, 500)))...)
		return nil, newFailure(FailureMalformed, "no JSON object in response", nil)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &probe); err != nil {
		g.logger.Warn("model returned invalid JSON", append(fields, zap.Error(err), zap.String("response", truncate(raw, 500)))...)
		return nil, newFailure(FailureMalformed, "invalid JSON", err)
	}
	if len(probe) == 0 {
		g.logger.Warn("model returned an empty object", fields...)
		return nil, newFailure(FailureEmpty, "empty object", nil)
	}

	g.logger.Debug("model call succeeded", append(fields, zap.Int("bytes", len(obj)))...)
	return json.RawMessage(bytes.TrimSpace([]byte(obj))), nil
}

func (g *Gateway) record(ctx context.Context, at time.Time, prompt, response string, callErr error, failure *ModelFailure) {
	if g.recorder == nil {
		return
	}
	ex := store.LLMExchange{
		Timestamp: at,
		Stage:     string(stageFrom(ctx)),
		Provider:  g.provider.Name(),
		Model:     g.provider.Model(),
		Prompt:    prompt,
		Response:  response,
	}
	if callErr != nil {
		ex.Error = callErr.Error()
	}
	if failure != nil {
		ex.Failure = failure.Kind.String()
	}
	path, saveErr := g.recorder.SaveLLMExchange(ex)
	if saveErr != nil {
		g.logger.Warn("failed to cache LLM exchange", zap.Error(saveErr))
		return
	}
	g.logger.Debug("cached LLM exchange", zap.String("path", path))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
