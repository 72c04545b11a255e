// Package agentcore wires the Security Policy, Tool Registry, Hook Chain,
// Upstream Chat Client, Session Store, Rate Limiter and Tool-Orchestration
// Loop together behind the three JSON-RPC methods the protocol codec
// dispatches to. It has no knowledge of line framing or connection
// lifecycle -- that is the transport package's job.
package agentcore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grokacp/grokacp/internal/config"
	"github.com/grokacp/grokacp/internal/event"
	"github.com/grokacp/grokacp/internal/hook"
	"github.com/grokacp/grokacp/internal/orchestrator"
	"github.com/grokacp/grokacp/internal/protocol"
	"github.com/grokacp/grokacp/internal/ratelimit"
	"github.com/grokacp/grokacp/internal/registry"
	"github.com/grokacp/grokacp/internal/security"
	"github.com/grokacp/grokacp/internal/session"
	"github.com/grokacp/grokacp/internal/upstream"
)

// Implementation identifies this agent in the initialize response.
var Implementation = protocol.Implementation{Name: "grokacp", Version: "0.1.0"}

// Agent is the process-wide set of collaborators shared by every
// connection. Nothing here is connection-specific; a single Agent backs
// every stdio session or every accepted TCP connection.
type Agent struct {
	Config    *config.Config
	Security  *security.Manager
	Registry  *registry.Registry
	Hooks     *hook.Chain
	Upstream  upstream.Client
	Sessions  *session.Store
	RateLimit *ratelimit.Window
}

// New assembles an Agent from its collaborators.
func New(cfg *config.Config, sec *security.Manager, reg *registry.Registry, hooks *hook.Chain, up upstream.Client, limiter *ratelimit.Window) *Agent {
	return &Agent{
		Config:    cfg,
		Security:  sec,
		Registry:  reg,
		Hooks:     hooks,
		Upstream:  up,
		Sessions:  session.NewStore(),
		RateLimit: limiter,
	}
}

// Handle dispatches a single JSON-RPC request. It returns nil for
// notifications, which expect no response. bus receives the
// session/update event PublishSync'd once a session/prompt turn
// finishes; the caller's connection is responsible for forwarding it to
// the wire.
func (a *Agent) Handle(ctx context.Context, req *protocol.Request, bus *event.Bus) *protocol.Response {
	var (
		result any
		err    error
	)

	switch req.Method {
	case protocol.MethodInitialize:
		result, err = a.handleInitialize(req.Params)
	case protocol.MethodSessionNew:
		result, err = a.handleSessionNew(req.Params)
	case protocol.MethodSessionPrompt:
		result, err = a.handleSessionPrompt(ctx, req.Params, bus)
	default:
		if req.IsNotification() {
			return nil
		}
		return protocol.NewErrorResponse(req.ID, protocol.ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}

	if req.IsNotification() {
		return nil
	}
	if err != nil {
		if pe, ok := err.(*paramError); ok {
			return protocol.NewErrorResponse(req.ID, protocol.ErrCodeInvalidParams, pe.Error())
		}
		return protocol.NewErrorResponse(req.ID, protocol.ErrCodeInternal, err.Error())
	}

	resp, marshalErr := protocol.NewResponse(req.ID, result)
	if marshalErr != nil {
		return protocol.NewErrorResponse(req.ID, protocol.ErrCodeInternal, marshalErr.Error())
	}
	return resp
}

// paramError marks an error as a parameter-validation failure, mapped to
// JSON-RPC code -32602 rather than -32603.
type paramError struct{ error }

func (a *Agent) handleInitialize(params json.RawMessage) (*protocol.InitializeResponse, error) {
	var req protocol.InitializeRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &paramError{fmt.Errorf("invalid initialize params: %w", err)}
		}
	} else {
		req.ProtocolVersion = protocol.ProtocolVersionLatest
	}

	resp := protocol.NewInitializeResponse(req.ProtocolVersion, Implementation)
	return &resp, nil
}

func (a *Agent) handleSessionNew(params json.RawMessage) (*protocol.NewSessionResponse, error) {
	var req protocol.NewSessionRequest
	if len(params) > 0 {
		if err := json.Unmarshal(params, &req); err != nil {
			return nil, &paramError{fmt.Errorf("invalid session/new params: %w", err)}
		}
	}

	root := req.WorkspaceRoot
	if root == "" {
		root = req.WorkingDirectory
	}
	if root == "" {
		root = config.WorkspaceRootHint()
	}
	if root != "" {
		if resolved, err := a.Security.Policy().ResolvePath(root); err == nil {
			a.Security.AddTrustedDirectory(resolved)
		}
	}

	sess := a.Sessions.Create(a.Config)
	return &protocol.NewSessionResponse{SessionID: string(sess.ID)}, nil
}

func (a *Agent) handleSessionPrompt(ctx context.Context, params json.RawMessage, bus *event.Bus) (*protocol.PromptResponse, error) {
	var req protocol.PromptRequest
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, &paramError{fmt.Errorf("invalid session/prompt params: %w", err)}
	}
	if req.SessionID == "" {
		return nil, &paramError{fmt.Errorf("session_id is required")}
	}

	text := protocol.ConcatenatePrompt(req.Prompt)

	var finalText string
	err := a.Sessions.WithSession(session.ID(req.SessionID), func(sess *session.Session) error {
		sess.Append(session.ChatEvent{Role: session.RoleUser, Text: text})

		loop := &orchestrator.Loop{Client: a.Upstream, Registry: a.Registry, Hooks: a.Hooks, RateLimit: a.RateLimit}
		opts := upstream.ChatOptions{
			Model:       sess.Config.Model,
			Temperature: sess.Config.Temperature,
			MaxTokens:   sess.Config.MaxTokens,
		}

		result, err := loop.Run(ctx, sess, opts)
		if err != nil {
			return err
		}
		finalText = result.Text
		if result.Err != nil {
			return result.Err
		}
		return nil
	})
	if err == session.ErrSessionNotFound {
		return nil, &paramError{fmt.Errorf("unknown session: %s", req.SessionID)}
	}
	if err != nil {
		return nil, err
	}

	if bus != nil {
		bus.PublishSync(event.Event{
			Type: event.SessionUpdate,
			Data: event.SessionUpdateData{SessionID: req.SessionID, Text: finalText},
		})
	}

	return &protocol.PromptResponse{StopReason: protocol.StopReasonEndTurn}, nil
}
