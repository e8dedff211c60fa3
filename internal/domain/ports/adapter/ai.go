package adapter

import (
	"context"

	"brandaion/internal/domain/model"
)

// Message is one chat turn in an OpenAI-style request body.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Completion is the normalized result of one chat completion.
type Completion struct {
	Text       string
	TokenUsage int
}

// Completer is the port for a single direct (non-polling) chat completion.
// Implementations must return a *domain.ProviderError on failure.
type Completer interface {
	Complete(ctx context.Context, p model.ProviderConfig, prompt string) (Completion, error)
}

// AssistantReply is the text produced by one assistant run.
type AssistantReply struct {
	Text        string
	ThreadID    string
	RunID       string
	TotalTokens int
	Attempts    int
}

// AssistantRunner drives one thread/message/run/poll round trip.
// Failures are *domain.UpstreamError.
type AssistantRunner interface {
	Run(ctx context.Context, requestText, assistantID string) (AssistantReply, error)
}
