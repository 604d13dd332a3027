package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// requestTimeout is set explicitly so the SDK does not refuse non-streaming
// calls whose token budget it estimates at over ten minutes.
const requestTimeout = 10 * time.Minute

// AnthropicProvider talks to the Claude Messages API.
type AnthropicProvider struct {
	client      *anthropic.Client
	model       string
	temperature float64
}

// NewAnthropicProvider creates a new Anthropic provider. Extra request
// options (base URL, HTTP client) are appended after the defaults.
func NewAnthropicProvider(apiKey, model string, temperature float64, opts ...option.RequestOption) *AnthropicProvider {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(requestTimeout),
	}
	client := anthropic.NewClient(append(base, opts...)...)
	return &AnthropicProvider{
		client:      &client,
		model:       model,
		temperature: temperature,
	}
}

func (c *AnthropicProvider) Name() string  { return "anthropic" }
func (c *AnthropicProvider) Model() string { return c.model }

// ChatJSON prefills the assistant turn with "{" so the reply continues a JSON
// object, then puts the brace back.
func (c *AnthropicProvider) ChatJSON(ctx context.Context, prompt, system string, maxTokens int) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
			anthropic.NewAssistantMessage(anthropic.NewTextBlock("{")),
		},
		Temperature: anthropic.Float(c.temperature),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to call Claude API: %w", err)
	}

	var responseText string
	for _, block := range message.Content {
		if block.Type == "text" {
			responseText = block.Text
			break
		}
	}
	if strings.TrimSpace(responseText) == "" {
		return "", nil
	}
	return "{" + responseText, nil
}
