package upstream

import (
	"context"
	"fmt"
)

// NewClient builds the configured backend: "openai" (also used for
// openai-wire-compatible endpoints like xAI's Grok API when baseURL is
// set) or "anthropic".
func NewClient(ctx context.Context, provider, apiKey, model, baseURL string) (Client, error) {
	switch provider {
	case "", "openai":
		return NewOpenAIClient(ctx, OpenAIConfig{APIKey: apiKey, Model: model, BaseURL: baseURL})
	case "anthropic":
		return NewClaudeClient(ctx, ClaudeConfig{APIKey: apiKey, Model: model, BaseURL: baseURL})
	default:
		return nil, fmt.Errorf("unknown upstream provider: %s", provider)
	}
}
