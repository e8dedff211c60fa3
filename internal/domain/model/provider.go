package model

import (
	"sort"
	"strings"
)

type ProviderKey string

const (
	ProviderOpenAI     ProviderKey = "openai"
	ProviderPerplexity ProviderKey = "perplexity"
	ProviderGemini     ProviderKey = "gemini"
	ProviderClaude     ProviderKey = "claude"
)

// Transport selects how a provider is called.
type Transport string

const (
	TransportHTTP Transport = "http"
	TransportSDK  Transport = "sdk"
)

// Request body layouts understood by the HTTP completer.
const (
	BodyStyleChat   = "chat"
	BodyStyleGemini = "gemini"
)

// ProviderConfig is the static description of one LLM provider.
// TextPath and TokenPaths are gjson paths into the raw response body;
// token counts from all TokenPaths are summed.
type ProviderConfig struct {
	Key            ProviderKey
	DisplayName    string
	Endpoint       string
	APIKey         string
	AuthHeader     string
	AuthPrefix     string
	Headers        map[string]string
	Model          string
	CostPerKTokens float64
	MaxTokens      int
	Transport      Transport
	BodyStyle      string
	TextPath       string
	TokenPaths     []string
	RateLimitRPS   float64
}

// DefaultProviderConfigs returns the compiled-in provider table without credentials.
func DefaultProviderConfigs() []ProviderConfig {
	return []ProviderConfig{
		{
			Key:            ProviderOpenAI,
			DisplayName:    "OpenAI GPT-4",
			Endpoint:       "https://api.openai.com/v1/chat/completions",
			AuthHeader:     "Authorization",
			AuthPrefix:     "Bearer ",
			Model:          "gpt-4",
			CostPerKTokens: 0.03,
			MaxTokens:      4000,
			Transport:      TransportSDK,
			BodyStyle:      BodyStyleChat,
			TextPath:       "choices.0.message.content",
			TokenPaths:     []string{"usage.total_tokens"},
		},
		{
			Key:            ProviderPerplexity,
			DisplayName:    "Perplexity",
			Endpoint:       "https://api.perplexity.ai/chat/completions",
			AuthHeader:     "Authorization",
			AuthPrefix:     "Bearer ",
			Model:          "llama-3.1-sonar-large-128k-online",
			CostPerKTokens: 0.02,
			MaxTokens:      4000,
			Transport:      TransportHTTP,
			BodyStyle:      BodyStyleChat,
			TextPath:       "choices.0.message.content",
			TokenPaths:     []string{"usage.total_tokens"},
		},
		{
			Key:            ProviderGemini,
			DisplayName:    "Google Gemini",
			Endpoint:       "https://generativelanguage.googleapis.com/v1beta/models/gemini-pro:generateContent",
			AuthHeader:     "x-goog-api-key",
			Model:          "gemini-pro",
			CostPerKTokens: 0.015,
			MaxTokens:      8000,
			Transport:      TransportSDK,
			BodyStyle:      BodyStyleGemini,
			TextPath:       "candidates.0.content.parts.0.text",
			TokenPaths:     []string{"usageMetadata.totalTokenCount"},
		},
		{
			Key:            ProviderClaude,
			DisplayName:    "Anthropic Claude",
			Endpoint:       "https://api.anthropic.com/v1/messages",
			AuthHeader:     "x-api-key",
			Headers:        map[string]string{"anthropic-version": "2023-06-01"},
			Model:          "claude-3-sonnet-20240229",
			CostPerKTokens: 0.025,
			MaxTokens:      4000,
			Transport:      TransportSDK,
			BodyStyle:      BodyStyleChat,
			TextPath:       "content.0.text",
			TokenPaths:     []string{"usage.input_tokens", "usage.output_tokens"},
		},
	}
}

// ProviderRegistry is an immutable lookup table built once at startup.
type ProviderRegistry struct {
	byKey map[ProviderKey]ProviderConfig
}

func NewProviderRegistry(cfgs ...ProviderConfig) *ProviderRegistry {
	r := &ProviderRegistry{byKey: make(map[ProviderKey]ProviderConfig, len(cfgs))}
	for _, c := range cfgs {
		c.Key = NormalizeProviderKey(string(c.Key))
		r.byKey[c.Key] = c
	}
	return r
}

func NormalizeProviderKey(s string) ProviderKey {
	return ProviderKey(strings.ToLower(strings.TrimSpace(s)))
}

func (r *ProviderRegistry) Get(key string) (ProviderConfig, bool) {
	if r == nil {
		return ProviderConfig{}, false
	}
	c, ok := r.byKey[NormalizeProviderKey(key)]
	return c, ok
}

// Keys returns the registered provider keys in a stable order.
func (r *ProviderRegistry) Keys() []string {
	out := make([]string, 0, len(r.byKey))
	for k := range r.byKey {
		out = append(out, string(k))
	}
	sort.Strings(out)
	return out
}
