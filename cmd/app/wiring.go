package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"brandaion/internal/config"
	"brandaion/internal/domain/model"
	"brandaion/internal/domain/ports/adapter"
	aiAdapters "brandaion/internal/infra/adapters/ai"
)

// buildCompleter routes SDK-transport providers to their vendor clients and
// everything else through the registry-driven HTTP completer.
func buildCompleter(ctx context.Context, cfg *config.Config, providers []model.ProviderConfig, logger *zerolog.Logger) (adapter.Completer, error) {
	anyKey := false
	sdk := map[model.ProviderKey]adapter.Completer{}
	for _, p := range providers {
		if p.APIKey == "" {
			continue
		}
		anyKey = true
		if p.Transport != model.TransportSDK {
			continue
		}
		baseURL := cfg.AI.Providers[string(p.Key)].BaseURL
		var (
			c   adapter.Completer
			err error
		)
		switch p.Key {
		case model.ProviderOpenAI:
			c, err = aiAdapters.NewOpenAICompleter(p.APIKey, baseURL)
		case model.ProviderClaude:
			c, err = aiAdapters.NewClaudeCompleter(p.APIKey, baseURL)
		case model.ProviderGemini:
			c, err = aiAdapters.NewGeminiCompleter(ctx, p.APIKey, baseURL)
		default:
			logger.Warn().Str("provider", string(p.Key)).Msg("no sdk client for provider, using http transport")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s completer: %w", p.Key, err)
		}
		sdk[p.Key] = c
		logger.Info().Str("provider", string(p.Key)).Str("model", p.Model).Msg("sdk completer ready")
	}

	var base adapter.Completer
	if !anyKey && cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] no provider keys configured, using noop completer")
		base = aiAdapters.NewNoopCompleter(logger)
	} else {
		base = aiAdapters.NewMultiCompleter(aiAdapters.NewHTTPCompleter(&http.Client{}), sdk)
	}
	return aiAdapters.NewLimitedCompleter(base, cfg.AI.ConcurrentLimit), nil
}

// buildRunner returns nil without an OpenAI key outside dev mode; generation
// then reports a configuration error per invocation.
func buildRunner(cfg *config.Config, logger *zerolog.Logger) (adapter.AssistantRunner, error) {
	key := cfg.OpenAIKey()
	if key == "" {
		if cfg.Runtime.Dev {
			logger.Warn().Msg("[DEV MODE] ai.providers.openai.api_key not set, using noop assistant runner")
			return aiAdapters.NewNoopAssistantRunner(logger), nil
		}
		logger.Warn().Msg("ai.providers.openai.api_key not set: question and answer generation unavailable")
		return nil, nil
	}
	a := cfg.AI.Assistant
	r, err := aiAdapters.NewAssistantRunner(aiAdapters.AssistantOptions{
		BaseURL:      a.BaseURL,
		APIKey:       key,
		PollInterval: a.PollInterval,
		MaxAttempts:  a.MaxAttempts,
		MaxWait:      a.MaxWait,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("assistant runner: %w", err)
	}
	return r, nil
}
