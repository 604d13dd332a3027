package providers

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiProvider uses the Gemini API with an application/json response type.
type GeminiProvider struct {
	client      *genai.Client
	model       string
	temperature float32
}

func NewGeminiProvider(ctx context.Context, apiKey, model string, temperature float64) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiProvider{
		client:      client,
		model:       model,
		temperature: float32(temperature),
	}, nil
}

func (p *GeminiProvider) Name() string  { return "gemini" }
func (p *GeminiProvider) Model() string { return p.model }

func (p *GeminiProvider) ChatJSON(ctx context.Context, prompt, system string, maxTokens int) (string, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		MaxOutputTokens:  int32(maxTokens),
		Temperature:      genai.Ptr(p.temperature),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	result, err := p.client.Models.GenerateContent(ctx, p.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("failed to call Gemini API: %w", err)
	}
	if result == nil || len(result.Candidates) == 0 {
		return "", nil
	}
	return result.Text(), nil
}
