package upstream

import (
	"context"
	"fmt"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino-ext/components/model/openai"
)

// OpenAIConfig configures the openai-compatible backend. BaseURL lets it
// target any OpenAI-wire-compatible endpoint (including xAI's Grok API).
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// OpenAIClient is the Upstream Chat Client backed by an openai-compatible
// chat-completions endpoint.
type OpenAIClient struct {
	chatModel einomodel.ToolCallingChatModel
	model     string
}

// NewOpenAIClient constructs a Client talking to an openai-compatible API.
func NewOpenAIClient(ctx context.Context, cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key not set")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model not set")
	}

	chatCfg := &openai.ChatModelConfig{
		APIKey: cfg.APIKey,
		Model:  cfg.Model,
	}
	if cfg.BaseURL != "" {
		chatCfg.BaseURL = cfg.BaseURL
	}

	chatModel, err := openai.NewChatModel(ctx, chatCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai-compatible chat model: %w", err)
	}

	return &OpenAIClient{chatModel: chatModel, model: cfg.Model}, nil
}

// Chat implements Client.
func (c *OpenAIClient) Chat(ctx context.Context, history []Message, opts ChatOptions) (*ChatResult, error) {
	chatModel := c.chatModel
	if len(opts.Tools) > 0 {
		var err error
		chatModel, err = chatModel.WithTools(toEinoTools(opts.Tools))
		if err != nil {
			return nil, fmt.Errorf("failed to bind tools: %w", err)
		}
	}

	einoOpts := []einomodel.Option{}
	if opts.MaxTokens > 0 {
		einoOpts = append(einoOpts, openai.WithMaxCompletionTokens(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		einoOpts = append(einoOpts, einomodel.WithTemperature(float32(opts.Temperature)))
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
