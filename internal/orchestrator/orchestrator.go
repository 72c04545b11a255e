// Package orchestrator implements the bounded tool-orchestration loop:
// alternating calls to the upstream chat client and local tool dispatch
// until the model signals it is done or the iteration budget is spent.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/grokacp/grokacp/internal/hook"
	"github.com/grokacp/grokacp/internal/ratelimit"
	"github.com/grokacp/grokacp/internal/registry"
	"github.com/grokacp/grokacp/internal/session"
	"github.com/grokacp/grokacp/internal/upstream"
)

// MaxIterations bounds a single session/prompt call's agentic loop.
// Reaching it without a hard or soft termination is a loop failure.
const MaxIterations = 25

const (
	retryInitialInterval = time.Second
	retryMaxInterval     = 30 * time.Second
	retryMaxElapsedTime  = 2 * time.Minute
	retryMaxAttempts     = 3
)

func newRetryBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = retryInitialInterval
	b.MaxInterval = retryMaxInterval
	b.MaxElapsedTime = retryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Multiplier = 2.0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, retryMaxAttempts), ctx)
}

// Loop is the tool-orchestration loop, bound to a fixed upstream client,
// tool registry, and hook chain. RateLimit, when non-nil, gates and
// accounts for every individual upstream call -- not just the turn as a
// whole, per spec §3/§5 ("consulted before every upstream call; updated
// after every response").
type Loop struct {
	Client    upstream.Client
	Registry  *registry.Registry
	Hooks     *hook.Chain
	RateLimit *ratelimit.Window
}

// Result is what a Run call returns: the final assistant-visible text and,
// for a soft termination caused by a length/content-filter cutoff, a
// non-nil Err alongside the partial text already produced. TotalTokens
// sums every upstream call's usage for this turn, for diagnostics; a call
// that reported no usage counts its pre-call estimate, which is only
// computed when RateLimit is set (otherwise such a call counts 0).
type Result struct {
	Text        string
	Err         error
	TotalTokens int
}

// Run drives the loop for one session/prompt turn. The caller must have
// already appended the triggering user message to sess before calling.
// Run appends every assistant message and tool result it produces to
// sess's history as it goes.
func (l *Loop) Run(ctx context.Context, sess *session.Session, opts upstream.ChatOptions) (*Result, error) {
	opts.Tools = toolSchemas(l.Registry)

	retryBackoff := newRetryBackoff(ctx)
	totalTokens := 0

	for iter := 0; ; iter++ {
		if iter >= MaxIterations {
			return nil, fmt.Errorf("tool-orchestration loop exceeded %d iterations", MaxIterations)
		}

		history := toUpstreamHistory(sess.History)

		estimated := 0
		if l.RateLimit != nil {
			estimated = estimateRequestTokens(history, opts)
			if err := l.RateLimit.Check(estimated); err != nil {
				return nil, err
			}
		}

		result, err := l.Client.Chat(ctx, history, opts)
		if err != nil {
			next := retryBackoff.NextBackOff()
			if next == backoff.Stop {
				return nil, fmt.Errorf("upstream chat failed: %w", err)
			}
			select {
			case <-time.After(next):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			iter--
			continue
		}
		retryBackoff.Reset()

		actualTokens := estimated
		if result.Usage != nil {
			actualTokens = result.Usage.TotalTokens
		}
		if l.RateLimit != nil {
			l.RateLimit.Record(actualTokens)
		}
		totalTokens += actualTokens

		assistantCalls := make([]session.ToolCall, 0, len(result.Message.ToolCalls))
		for _, tc := range result.Message.ToolCalls {
			assistantCalls = append(assistantCalls, session.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		sess.Append(session.ChatEvent{
			Role:      session.RoleAssistant,
			Text:      result.Message.Content,
			ToolCalls: assistantCalls,
		})

		switch result.FinishReason {
		case upstream.FinishStop, upstream.FinishEndTurn:
			return &Result{Text: result.Message.Content, TotalTokens: totalTokens}, nil
		case upstream.FinishLength, upstream.FinishContentFilter:
			return &Result{
				Text:        result.Message.Content,
				Err:         fmt.Errorf("upstream response truncated: %s", result.FinishReason),
				TotalTokens: totalTokens,
			}, nil
		}

		if len(result.Message.ToolCalls) == 0 {
			return &Result{Text: result.Message.Content, TotalTokens: totalTokens}, nil
		}

		for _, tc := range result.Message.ToolCalls {
			resultText, err := l.dispatchOne(ctx, sess.ID, tc)
			if err != nil {
				return nil, err
			}
			sess.Append(session.ChatEvent{
				Role:       session.RoleTool,
				ToolCallID: tc.ID,
				Content:    resultText,
			})
		}
	}
}

// dispatchOne runs the hook chain and tool dispatch for a single tool
// call. The only errors it returns are loop failures (argument parse,
// pre-hook or post-hook errors); tool execution failures are folded into
// resultText.
func (l *Loop) dispatchOne(ctx context.Context, sessionID session.ID, tc upstream.ToolCall) (string, error) {
	args := json.RawMessage(tc.Arguments)
	if !json.Valid(args) {
		return "", fmt.Errorf("tool call %q has invalid JSON arguments", tc.Name)
	}

	hookCtx := hook.Context{ToolName: tc.Name, Args: args}

	proceed, err := l.Hooks.Before(tc.Name, args)
	if err != nil {
		return "", fmt.Errorf("before_tool hook failed for %q: %w", tc.Name, err)
	}
	if !proceed {
		return "Tool execution blocked by hook.", nil
	}

	runCtx := registry.WithSessionID(ctx, string(sessionID))
	resultText, execErr := l.Registry.Dispatch(runCtx, tc.Name, args)
	if execErr != nil {
		resultText = fmt.Sprintf("Error executing tool %s: %v", tc.Name, execErr)
	}

	if err := l.Hooks.After(tc.Name, hookCtx.Args, resultText); err != nil {
		return "", fmt.Errorf("after_tool hook failed for %q: %w", tc.Name, err)
	}

	return resultText, nil
}

func toUpstreamHistory(events []session.ChatEvent) []upstream.Message {
	out := make([]upstream.Message, 0, len(events))
	for _, e := range events {
		msg := upstream.Message{Content: e.Text}
		switch e.Role {
		case session.RoleUser:
			msg.Role = upstream.RoleUser
		case session.RoleAssistant:
			msg.Role = upstream.RoleAssistant
		case session.RoleSystem:
			msg.Role = upstream.RoleSystem
		case session.RoleTool:
			msg.Role = upstream.RoleTool
			msg.Content = e.Content
			msg.ToolCallID = e.ToolCallID
		}
		for _, tc := range e.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, upstream.ToolCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		out = append(out, msg)
	}
	return out
}

// estimateRequestTokens is the pre-call cost heuristic for one upstream
// Chat invocation: the full history plus the bound tool schemas, the way
// the request will actually be serialized over the wire.
func estimateRequestTokens(history []upstream.Message, opts upstream.ChatOptions) int {
	serialized, err := json.Marshal(struct {
		History []upstream.Message    `json:"history"`
		Tools   []upstream.ToolSchema `json:"tools"`
	}{History: history, Tools: opts.Tools})
	if err != nil {
		return 0
	}
	return ratelimit.EstimateTokens(serialized)
}

func toolSchemas(r *registry.Registry) []upstream.ToolSchema {
	defs := r.AvailableDefinitions()
	out := make([]upstream.ToolSchema, 0, len(defs))
	for _, d := range defs {
		out = append(out, upstream.ToolSchema{Name: d.Name, Description: d.Description, Parameters: d.Parameters})
	}
	return out
}
