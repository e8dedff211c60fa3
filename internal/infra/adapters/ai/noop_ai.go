package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/adapter"
	"brandaion/internal/infra/logging"
)

var (
	_ adapter.Completer       = (*NoopCompleter)(nil)
	_ adapter.AssistantRunner = (*NoopAssistantRunner)(nil)
)

// NoopCompleter answers every prompt locally. Used in dev when no provider keys are set.
type NoopCompleter struct {
	log *zerolog.Logger
}

func NewNoopCompleter(logger *zerolog.Logger) *NoopCompleter {
	if logger == nil {
		logger = logging.Nop()
	}
	return &NoopCompleter{log: logger}
}

func (n *NoopCompleter) Complete(ctx context.Context, p model.ProviderConfig, prompt string) (adapter.Completion, error) {
	// Simulate slight processing time and respect ctx
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return adapter.Completion{}, ctx.Err()
	}
	n.log.Debug().Str("provider", string(p.Key)).Str("prompt", logging.Redact(prompt, false)).Msg("noop completion")

	// echo the grounding context so dev accuracy scores look plausible
	answer := prompt
	if i := strings.Index(prompt, "Expected Answer Context: "); i >= 0 {
		answer = prompt[i+len("Expected Answer Context: "):]
		if j := strings.Index(answer, "\n\n"); j >= 0 {
			answer = answer[:j]
		}
	}
	return adapter.Completion{Text: answer, TokenUsage: len(strings.Fields(prompt))}, nil
}

// NoopAssistantRunner returns a canned reply instead of calling the assistant API.
type NoopAssistantRunner struct {
	log *zerolog.Logger
}

func NewNoopAssistantRunner(logger *zerolog.Logger) *NoopAssistantRunner {
	if logger == nil {
		logger = logging.Nop()
	}
	return &NoopAssistantRunner{log: logger}
}

func (n *NoopAssistantRunner) Run(ctx context.Context, requestText, assistantID string) (adapter.AssistantReply, error) {
	select {
	case <-time.After(100 * time.Millisecond):
	case <-ctx.Done():
		return adapter.AssistantReply{}, ctx.Err()
	}
	n.log.Debug().Str("assistant_id", assistantID).Msg("noop assistant run")
	return adapter.AssistantReply{
		Text:     fmt.Sprintf("Q1. %s?\nQ2. How does it work?\nQ3. What does it cost?", strings.TrimSpace(requestText)),
		ThreadID: "noop-thread",
		RunID:    "noop-run",
		Attempts: 1,
	}, nil
}
