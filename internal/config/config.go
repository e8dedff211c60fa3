package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"brandaion/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type HTTPConfig struct {
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RateLimit      int           `yaml:"rate_limit"` // trigger calls per user per minute, 0 disables
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type AuthConfig struct {
	// JWTSecret verifies bearer tokens minted by the external auth provider.
	// Empty disables verification.
	JWTSecret string `yaml:"jwt_secret"`
}

type ProviderConfig struct {
	APIKey         string  `yaml:"api_key"`
	Endpoint       string  `yaml:"endpoint"` // raw HTTP completion url
	BaseURL        string  `yaml:"base_url"` // sdk client base url override
	Model          string  `yaml:"model"`
	CostPerKTokens float64 `yaml:"cost_per_k_tokens"`
	MaxTokens      int     `yaml:"max_tokens"`
	Transport      string  `yaml:"transport"` // sdk|http
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
}

type AssistantConfig struct {
	BaseURL             string        `yaml:"base_url"`
	QuestionAssistantID string        `yaml:"question_assistant_id"`
	AnswerAssistantID   string        `yaml:"answer_assistant_id"`
	PollInterval        time.Duration `yaml:"poll_interval"`
	MaxAttempts         int           `yaml:"max_attempts"`
	MaxWait             time.Duration `yaml:"max_wait"`
}

type AIConfig struct {
	Assistant       AssistantConfig           `yaml:"assistant"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
	ConcurrentLimit int                       `yaml:"concurrent_limit"` // max concurrent provider calls
}

type WorkKindConfig struct {
	RetryOnFailure *bool `yaml:"retry_on_failure"`
}

type GenerationConfig struct {
	Questions WorkKindConfig `yaml:"questions"`
	Answers   WorkKindConfig `yaml:"answers"`
	ClaimTTL  time.Duration  `yaml:"claim_ttl"`
}

type TesterConfig struct {
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	DefaultProviders []string      `yaml:"default_providers"`
}

type SchedulerConfig struct {
	Enabled            bool          `yaml:"enabled"`
	GenerationInterval time.Duration `yaml:"generation_interval"`
	ScheduleInterval   time.Duration `yaml:"schedule_interval"`
}

type Config struct {
	Log        LogConfig        `yaml:"log"`
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Auth       AuthConfig       `yaml:"auth"`
	AI         AIConfig         `yaml:"ai"`
	Generation GenerationConfig `yaml:"generation"`
	Tester     TesterConfig     `yaml:"tester"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

// Load reads the YAML file at path, expands ${VAR} references from the
// environment, applies defaults and validates the result.
func Load(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse([]byte(os.ExpandEnv(string(b))), dev)
}

func Parse(b []byte, dev bool) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	cfg.Runtime.Dev = dev

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	providers := make(map[string]ProviderConfig, len(cfg.AI.Providers))
	for key, p := range cfg.AI.Providers {
		def, ok := defaultProvider(key)
		if !ok {
			return nil, fmt.Errorf("ai.providers.%s: unknown provider", key)
		}
		providers[string(def.Key)] = p
	}
	cfg.AI.Providers = providers
	for _, key := range cfg.Tester.DefaultProviders {
		if _, ok := defaultProvider(key); !ok {
			return nil, fmt.Errorf("tester.default_providers: unknown provider %q", key)
		}
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.RequestTimeout <= 0 {
		c.HTTP.RequestTimeout = 15 * time.Minute
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 10
	}
	if c.Redis.LockTTL <= 0 {
		c.Redis.LockTTL = 30 * time.Minute
	}
	a := &c.AI.Assistant
	if a.BaseURL == "" {
		a.BaseURL = "https://api.openai.com/v1"
	}
	if a.PollInterval <= 0 {
		a.PollInterval = 2 * time.Second
	}
	if a.MaxAttempts <= 0 {
		a.MaxAttempts = 30
	}
	if a.MaxWait <= 0 {
		a.MaxWait = 5 * time.Minute
	}
	if c.AI.ConcurrentLimit <= 0 {
		c.AI.ConcurrentLimit = 4
	}
	if c.Generation.ClaimTTL <= 0 {
		c.Generation.ClaimTTL = 15 * time.Minute
	}
	if c.Tester.RequestTimeout <= 0 {
		c.Tester.RequestTimeout = 60 * time.Second
	}
	if len(c.Tester.DefaultProviders) == 0 {
		c.Tester.DefaultProviders = []string{"openai", "perplexity", "gemini", "claude"}
	}
	if c.Scheduler.GenerationInterval <= 0 {
		c.Scheduler.GenerationInterval = 10 * time.Minute
	}
	if c.Scheduler.ScheduleInterval <= 0 {
		c.Scheduler.ScheduleInterval = time.Hour
	}
}

// QuestionsRetryOnFailure defaults to true: failed question generation goes back to pending.
func (c *Config) QuestionsRetryOnFailure() bool {
	if c.Generation.Questions.RetryOnFailure == nil {
		return true
	}
	return *c.Generation.Questions.RetryOnFailure
}

// AnswersRetryOnFailure defaults to false: failed answer generation is terminal.
func (c *Config) AnswersRetryOnFailure() bool {
	if c.Generation.Answers.RetryOnFailure == nil {
		return false
	}
	return *c.Generation.Answers.RetryOnFailure
}

// OpenAIKey is shared by the assistant runner and the openai provider.
func (c *Config) OpenAIKey() string {
	return c.AI.Providers[string(model.ProviderOpenAI)].APIKey
}

// ProviderConfigs merges the compiled-in provider table with the configured overrides.
func (c *Config) ProviderConfigs() []model.ProviderConfig {
	out := model.DefaultProviderConfigs()
	for i := range out {
		o, ok := c.AI.Providers[string(out[i].Key)]
		if !ok {
			continue
		}
		out[i].APIKey = o.APIKey
		if o.Endpoint != "" {
			out[i].Endpoint = o.Endpoint
		}
		if o.Model != "" {
			out[i].Model = o.Model
		}
		if o.CostPerKTokens > 0 {
			out[i].CostPerKTokens = o.CostPerKTokens
		}
		if o.MaxTokens > 0 {
			out[i].MaxTokens = o.MaxTokens
		}
		switch strings.ToLower(o.Transport) {
		case string(model.TransportHTTP):
			out[i].Transport = model.TransportHTTP
		case string(model.TransportSDK):
			out[i].Transport = model.TransportSDK
		}
		out[i].RateLimitRPS = o.RateLimitRPS
	}
	return out
}

func defaultProvider(key string) (model.ProviderConfig, bool) {
	k := model.NormalizeProviderKey(key)
	for _, p := range model.DefaultProviderConfigs() {
		if p.Key == k {
			return p, true
		}
	}
	return model.ProviderConfig{}, false
}
