package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"brandaion/internal/domain"
	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/adapter"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.Completer = (*OpenAICompleter)(nil)

// OpenAICompleter implements adapter.Completer using the Chat Completions API.
type OpenAICompleter struct {
	client openai.Client
}

// NewOpenAICompleter builds the SDK client. baseURL may be empty for the public API.
func NewOpenAICompleter(apiKey, baseURL string) (*OpenAICompleter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(baseURL, "/")+"/"))
	}
	return &OpenAICompleter{client: openai.NewClient(opts...)}, nil
}

func (o *OpenAICompleter) Complete(ctx context.Context, p model.ProviderConfig, prompt string) (adapter.Completion, error) {
	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(p.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		MaxTokens:   openai.Int(int64(p.MaxTokens)),
		Temperature: openai.Float(completionTemperature),
	})
	if err != nil {
		return adapter.Completion{}, openaiError(p.Key, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return adapter.Completion{}, &domain.ProviderError{Provider: string(p.Key), Err: errors.New("no choice content")}
	}
	return adapter.Completion{
		Text:       resp.Choices[0].Message.Content,
		TokenUsage: int(resp.Usage.TotalTokens),
	}, nil
}

// openaiError wraps SDK failures; API errors keep their HTTP status.
func openaiError(key model.ProviderKey, err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &domain.ProviderError{Provider: string(key), StatusCode: apiErr.StatusCode, Err: err}
	}
	return &domain.ProviderError{Provider: string(key), Err: err}
}
