// Package hook implements the pre/post-tool interception chain. A
// pre-hook may veto a tool call before it dispatches; post-hooks are
// advisory observers whose errors fail the orchestration loop.
package hook

import "encoding/json"

// Context describes the tool call a hook is observing.
type Context struct {
	ToolName string
	Args     json.RawMessage
}

// Hook observes tool dispatch. BeforeTool returning false vetoes the
// call; AfterTool observes the result text.
type Hook interface {
	Name() string
	BeforeTool(ctx Context) (bool, error)
	AfterTool(ctx Context, resultText string) error
}

// Base provides permissive defaults (continue, no-op) for embedding in
// hooks that only care about one side of the chain.
type Base struct{}

// BeforeTool always allows the call.
func (Base) BeforeTool(Context) (bool, error) { return true, nil }

// AfterTool is a no-op observer.
func (Base) AfterTool(Context, string) error { return nil }

// Chain runs an ordered sequence of hooks.
type Chain struct {
	hooks []Hook
}

// NewChain creates an empty hook chain.
func NewChain() *Chain {
	return &Chain{}
}

// Register appends a hook to the chain.
func (c *Chain) Register(h Hook) {
	c.hooks = append(c.hooks, h)
}

// Names returns the registered hooks' names, in registration order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.hooks))
	for i, h := range c.hooks {
		names[i] = h.Name()
	}
	return names
}

// Len reports how many hooks are registered.
func (c *Chain) Len() int {
	return len(c.hooks)
}

// Before runs every hook's BeforeTool in order. Returns false as soon as
// any hook vetoes; a hook error aborts the chain and propagates.
func (c *Chain) Before(toolName string, args json.RawMessage) (bool, error) {
	ctx := Context{ToolName: toolName, Args: args}
	for _, h := range c.hooks {
		ok, err := h.BeforeTool(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// After runs every hook's AfterTool in order. The first error aborts and
// propagates to the orchestrator as a loop failure.
func (c *Chain) After(toolName string, args json.RawMessage, resultText string) error {
	ctx := Context{ToolName: toolName, Args: args}
	for _, h := range c.hooks {
		if err := h.AfterTool(ctx, resultText); err != nil {
			return err
		}
	}
	return nil
}
