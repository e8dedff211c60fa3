package ai

import (
	"context"
	"errors"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/adapter"
)

var _ adapter.Completer = (*ClaudeCompleter)(nil)

// ClaudeCompleter implements adapter.Completer on the Anthropic Messages API.
type ClaudeCompleter struct {
	client sdk.Client
}

func NewClaudeCompleter(apiKey, baseURL string) (*ClaudeCompleter, error) {
	if apiKey == "" {
		return nil, errors.New("claude: empty api key")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &ClaudeCompleter{client: sdk.NewClient(opts...)}, nil
}

func (c *ClaudeCompleter) Complete(ctx context.Context, p model.ProviderConfig, prompt string) (adapter.Completion, error) {
	msg, err := c.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:       sdk.Model(p.Model),
		MaxTokens:   int64(p.MaxTokens),
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
		Temperature: sdk.Float(completionTemperature),
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return adapter.Completion{}, &domain.ProviderError{Provider: string(p.Key), StatusCode: apiErr.StatusCode, Err: err}
		}
		return adapter.Completion{}, &domain.ProviderError{Provider: string(p.Key), Err: err}
	}

	// content[0].text, as the raw HTTP path reads it
	if len(msg.Content) == 0 || msg.Content[0].Text == "" {
		return adapter.Completion{}, &domain.ProviderError{Provider: string(p.Key), Err: errors.New("response has no text content")}
	}
	return adapter.Completion{
		Text:       msg.Content[0].Text,
		TokenUsage: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}
