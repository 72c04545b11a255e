// Package registry implements the fixed tool dispatch table: tool
// definitions (name, description, JSON-schema arguments) and the Execute
// dispatch used by the orchestration loop.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Tool is a single dispatchable operation. Execute receives its arguments
// already parsed from the model's JSON-string payload and returns either
// the textual result or an error; the orchestrator, not the tool, turns
// an error into user-visible ToolResult text.
type Tool interface {
	Name() string
	Description() string
	// Parameters is the JSON Schema describing the argument object.
	Parameters() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Definition is the wire-level description of a tool, handed to the
// upstream chat client.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Registry is a fixed dispatch table built at process start.
type Registry struct {
	tools map[string]Tool
	// availableFilter, when non-nil, excludes a tool from
	// AvailableDefinitions without removing it from dispatch -- used for
	// web_search, which is hidden but not disabled when its credential
	// precondition is unmet.
	availableFilter map[string]func() bool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		tools:           make(map[string]Tool),
		availableFilter: make(map[string]func() bool),
	}
}

// Register adds a tool to the dispatch table.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// RegisterConditional adds a tool whose presence in AvailableDefinitions
// is gated by available(); the tool still dispatches normally if called.
func (r *Registry) RegisterConditional(t Tool, available func() bool) {
	r.Register(t)
	r.availableFilter[t.Name()] = available
}

// Dispatch executes the named tool. A missing tool is an error, matching
// the orchestrator's "Error executing tool {name}: {err}" formatting at
// the call site.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}
	return t.Execute(ctx, args)
}

// Definitions returns every registered tool's definition, sorted by name
// for deterministic wire output.
func (r *Registry) Definitions() []Definition {
	return r.definitions(false)
}

// AvailableDefinitions returns definitions filtered by each tool's
// availability predicate (e.g. web_search hidden without credentials).
func (r *Registry) AvailableDefinitions() []Definition {
	return r.definitions(true)
}

type sessionIDKey struct{}

// WithSessionID attaches a session id to ctx, for tools (via the security
// manager) to attribute audit entries to the session that triggered them.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// SessionIDFromContext retrieves the session id attached by WithSessionID,
// or "" if none was set.
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey{}).(string)
	return id
}

func (r *Registry) definitions(filterAvailability bool) []Definition {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]Definition, 0, len(names))
	for _, name := range names {
		if filterAvailability {
			if available, ok := r.availableFilter[name]; ok && !available() {
				continue
			}
		}
		t := r.tools[name]
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  t.Parameters(),
		})
	}
	return defs
}
