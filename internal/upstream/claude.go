package upstream

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino-ext/components/model/claude"
)

// ClaudeConfig configures the Anthropic-direct backend.
type ClaudeConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	BaseURL   string
}

// ClaudeClient is the Upstream Chat Client backed by Anthropic's API
// directly (no Bedrock, per the expanded scope's two-backend limit).
type ClaudeClient struct {
	chatModel einomodel.ToolCallingChatModel
	model     string
}

// NewClaudeClient constructs a Client talking to Anthropic's API.
func NewClaudeClient(ctx context.Context, cfg ClaudeConfig) (*ClaudeClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key not set")
	}
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	chatCfg := &claude.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: maxTokens,
	}
	if cfg.BaseURL != "" {
		chatCfg.BaseURL = &cfg.BaseURL
	}

	chatModel, err := claude.NewChatModel(ctx, chatCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create claude chat model: %w", err)
	}

	return &ClaudeClient{chatModel: chatModel, model: cfg.Model}, nil
}

// Chat implements Client.
func (c *ClaudeClient) Chat(ctx context.Context, history []Message, opts ChatOptions) (*ChatResult, error) {
	chatModel := c.chatModel
	if len(opts.Tools) > 0 {
		var err error
		chatModel, err = chatModel.WithTools(toEinoTools(opts.Tools))
		if err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
	}

	var einoOpts []einomodel.Option
	if opts.Temperature > 0 {
		einoOpts = append(einoOpts, einomodel.WithTemperature(float32(opts.Temperature)))
	}
	if opts.MaxTokens > 0 {
		einoOpts = append(einoOpts, einomodel.WithMaxTokens(opts.MaxTokens))
	}

	msg, err := chatModel.Generate(ctx, toEinoMessages(history), einoOpts...)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	result := &ChatResult{
		Message: fromEinoMessage(msg),
		Usage:   usageFromEino(msg.ResponseMeta),
	}
	result.FinishReason = resolveFinishReason(msg.ResponseMeta, len(result.Message.ToolCalls) > 0)
	return result, nil
}
