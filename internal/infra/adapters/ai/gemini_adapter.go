package ai

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/adapter"
)

var _ adapter.Completer = (*GeminiCompleter)(nil)

type GeminiCompleter struct {
	client *genai.Client
}

// NewGeminiCompleter creates a Gemini completer using the official SDK.
// baseURL may be empty for the public endpoint.
func NewGeminiCompleter(ctx context.Context, apiKey, baseURL string) (*GeminiCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiCompleter{client: c}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, p model.ProviderConfig, prompt string) (adapter.Completion, error) {
	resp, err := g.client.Models.GenerateContent(ctx, p.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		MaxOutputTokens: int32(p.MaxTokens),
		Temperature:     genai.Ptr[float32](completionTemperature),
	})
	if err != nil {
		return adapter.Completion{}, &domain.ProviderError{Provider: string(p.Key), Err: err}
	}

	// candidates[0].content.parts[0].text
	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		text = resp.Candidates[0].Content.Parts[0].Text
	}
	if text == "" {
		return adapter.Completion{}, &domain.ProviderError{Provider: string(p.Key), Err: errors.New("response has no candidate text")}
	}
	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}
	return adapter.Completion{Text: text, TokenUsage: tokens}, nil
}
