package config

import (
	"os"
	"strconv"

	"github.com/grokacp/grokacp/internal/ratelimit"
	"github.com/grokacp/grokacp/internal/security"
)

const (
	defaultModel          = "grok-4"
	defaultAnthropicModel = "claude-sonnet-4-20250514"
	defaultTemperature    = 0.7
	defaultMaxTokens      = 4096
	defaultSystemPrompt   = "You are a helpful coding assistant."
	defaultRequestsPerMin = 60
	defaultTokensPerMin   = 100000
)

// Config is the process's full runtime configuration, resolved once at
// startup from environment variables and CLI flags.
type Config struct {
	// Provider selects the Upstream Chat Client backend: "openai" (also
	// used for openai-wire-compatible endpoints such as xAI's Grok API)
	// or "anthropic".
	Provider string
	Model    string
	BaseURL  string
	APIKey   string

	Temperature  float64
	MaxTokens    int
	SystemPrompt string

	WorkingDirectory     string
	InitialTrustedRoots  []string
	ExternalAccessConfig security.ExternalAccessConfig
	RateLimit            ratelimit.Config
}

// Load resolves Config from environment variables, applying workingDir as
// the process's root trusted directory. It never reads a config file.
func Load(workingDir string) (*Config, error) {
	cfg := &Config{
		Provider:             envOr("GROK_PROVIDER", "openai"),
		Model:                "",
		BaseURL:              os.Getenv("GROK_BASE_URL"),
		Temperature:          envFloatOr("GROK_TEMPERATURE", defaultTemperature),
		MaxTokens:            envIntOr("GROK_MAX_TOKENS", defaultMaxTokens),
		SystemPrompt:         envOr("GROK_SYSTEM_PROMPT", defaultSystemPrompt),
		WorkingDirectory:     workingDir,
		InitialTrustedRoots:  []string{workingDir},
		ExternalAccessConfig: security.DefaultExternalAccessConfig(),
		RateLimit: ratelimit.Config{
			RequestsPerMinute: envIntOr("GROK_REQUESTS_PER_MINUTE", defaultRequestsPerMin),
			TokensPerMinute:   envIntOr("GROK_TOKENS_PER_MINUTE", defaultTokensPerMin),
		},
	}

	if cfg.Provider == "anthropic" {
		cfg.Model = envOr("GROK_MODEL", defaultAnthropicModel)
	} else {
		cfg.Model = envOr("GROK_MODEL", defaultModel)
	}

	cfg.APIKey = resolveAPIKey(cfg.Provider)

	return cfg, nil
}

// resolveAPIKey applies GROK_API_KEY first, then falls back to the
// provider-specific upstream SDK's own env var.
func resolveAPIKey(provider string) string {
	if key := os.Getenv("GROK_API_KEY"); key != "" {
		return key
	}
	if provider == "anthropic" {
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return os.Getenv("OPENAI_API_KEY")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatOr(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
