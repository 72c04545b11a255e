// Package protocol implements the Agent Client Protocol wire format: a
// newline-delimited JSON-RPC 2.0 exchange between an editor (client) and
// this agent (server).
package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	JSONRPCVersion = "2.0"

	MethodInitialize     = "initialize"
	MethodSessionNew     = "session/new"
	MethodSessionPrompt  = "session/prompt"
	NotificationSessionUpdate = "session/update"

	ProtocolVersionLatest = "1"
)

// Request is a JSON-RPC 2.0 request or notification. ID is nil for
// notifications and preserved as raw JSON so the response echoes it back
// byte-for-byte (including whether it was sent as a number or a string).
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether this message expects no response.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Notification is a JSON-RPC 2.0 notification (no id, no reply expected).
type Notification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const (
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

func NewResponse(id json.RawMessage, result any) (*Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Result: raw}, nil
}

func NewErrorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: JSONRPCVersion, ID: id, Error: &Error{Code: code, Message: message}}
}

// protocolVersion round-trips a JSON-RPC protocol_version/protocolVersion
// field that may arrive as either a JSON number or a JSON string, always
// storing the canonical string form and re-emitting a number when the
// string parses as an integer.
type protocolVersion string

func (v *protocolVersion) UnmarshalJSON(data []byte) error {
	var asString string
	if err := json.Unmarshal(data, &asString); err == nil {
		*v = protocolVersion(asString)
		return nil
	}
	var asNumber json.Number
	if err := json.Unmarshal(data, &asNumber); err == nil {
		*v = protocolVersion(asNumber.String())
		return nil
	}
	return fmt.Errorf("protocol_version must be a number or string")
}

func (v protocolVersion) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(v), 10, 64); err == nil {
		return json.Marshal(n)
	}
	return json.Marshal(string(v))
}

// InitializeRequest is the initialize method's params, accepting both
// snake_case and camelCase field aliases.
type InitializeRequest struct {
	ProtocolVersion string          `json:"-"`
	Capabilities    json.RawMessage `json:"-"`
	ClientInfo      json.RawMessage `json:"-"`
}

func (r *InitializeRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		ProtocolVersion  *protocolVersion `json:"protocol_version"`
		ProtocolVersion2 *protocolVersion `json:"protocolVersion"`
		Capabilities     json.RawMessage  `json:"capabilities"`
		Capabilities2    json.RawMessage  `json:"clientCapabilities"`
		ClientInfo       json.RawMessage  `json:"client_info"`
		ClientInfo2      json.RawMessage  `json:"clientInfo"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	version := ProtocolVersionLatest
	if raw.ProtocolVersion != nil {
		version = string(*raw.ProtocolVersion)
	} else if raw.ProtocolVersion2 != nil {
		version = string(*raw.ProtocolVersion2)
	}
	r.ProtocolVersion = version

	r.Capabilities = raw.Capabilities
	if r.Capabilities == nil {
		r.Capabilities = raw.Capabilities2
	}
	r.ClientInfo = raw.ClientInfo
	if r.ClientInfo == nil {
		r.ClientInfo = raw.ClientInfo2
	}
	return nil
}

// SessionCapabilities is intentionally empty -- no optional ACP
// capabilities are implemented.
type SessionCapabilities struct{}

// AgentCapabilities is the initialize response's capability advertisement.
type AgentCapabilities struct {
	SessionCapabilities SessionCapabilities `json:"sessionCapabilities"`
}

// Implementation identifies this agent.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResponse is the initialize method's result.
type InitializeResponse struct {
	ProtocolVersion    protocolVersion   `json:"protocolVersion"`
	AgentCapabilities  AgentCapabilities `json:"agentCapabilities"`
	AgentInfo          Implementation    `json:"agentInfo"`
}

func NewInitializeResponse(version string, info Implementation) InitializeResponse {
	return InitializeResponse{
		ProtocolVersion:   protocolVersion(version),
		AgentCapabilities: AgentCapabilities{},
		AgentInfo:         info,
	}
}

// NewSessionRequest is the session/new method's params.
type NewSessionRequest struct {
	WorkspaceRoot    string `json:"-"`
	WorkingDirectory string `json:"-"`
}

func (r *NewSessionRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		WorkspaceRoot     *string `json:"workspace_root"`
		WorkspaceRoot2    *string `json:"workspaceRoot"`
		WorkingDirectory  *string `json:"working_directory"`
		WorkingDirectory2 *string `json:"workingDirectory"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.WorkspaceRoot != nil {
		r.WorkspaceRoot = *raw.WorkspaceRoot
	} else if raw.WorkspaceRoot2 != nil {
		r.WorkspaceRoot = *raw.WorkspaceRoot2
	}
	if raw.WorkingDirectory != nil {
		r.WorkingDirectory = *raw.WorkingDirectory
	} else if raw.WorkingDirectory2 != nil {
		r.WorkingDirectory = *raw.WorkingDirectory2
	}
	return nil
}

// NewSessionResponse is the session/new method's result.
type NewSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// ContentBlock is a tagged union of prompt content: text, an inline
// resource, or a resource link.
type ContentBlock struct {
	Type     string            `json:"type"`
	Text     string            `json:"text,omitempty"`
	URI      string            `json:"uri,omitempty"`
	Name     string            `json:"name,omitempty"`
	Resource *EmbeddedResource `json:"resource,omitempty"`
}

// EmbeddedResource is the body of a "resource" content block.
type EmbeddedResource struct {
	URI      string  `json:"uri"`
	Text     string  `json:"text"`
	MimeType *string `json:"mimeType,omitempty"`
}

// PromptRequest is the session/prompt method's params.
type PromptRequest struct {
	SessionID string         `json:"-"`
	Prompt    []ContentBlock `json:"prompt"`
}

func (r *PromptRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		SessionID  *string        `json:"session_id"`
		SessionID2 *string        `json:"sessionId"`
		Prompt     []ContentBlock `json:"prompt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.SessionID != nil {
		r.SessionID = *raw.SessionID
	} else if raw.SessionID2 != nil {
		r.SessionID = *raw.SessionID2
	}
	r.Prompt = raw.Prompt
	return nil
}

// PromptResponse is the session/prompt method's result.
type PromptResponse struct {
	StopReason string `json:"stopReason"`
}

const (
	StopReasonEndTurn      = "end_turn"
	StopReasonMaxTokens    = "max_tokens"
	StopReasonStopSequence = "stop_sequence"
	StopReasonToolUse      = "tool_use"
)

// ContentChunk wraps a single content block for a session/update
// notification.
type ContentChunk struct {
	Content ContentBlock `json:"content"`
}

// SessionUpdate is the tagged payload of a session/update notification.
// Only the agent_message_chunk variant is produced.
type SessionUpdate struct {
	SessionUpdate string       `json:"sessionUpdate"`
	Content       ContentBlock `json:"content"`
}

// SessionNotification is the session/update notification's params.
type SessionNotification struct {
	SessionID string        `json:"sessionId"`
	Update    SessionUpdate `json:"update"`
}

func NewAgentMessageChunkNotification(sessionID, text string) *SessionNotification {
	return &SessionNotification{
		SessionID: sessionID,
		Update: SessionUpdate{
			SessionUpdate: "agent_message_chunk",
			Content:       ContentBlock{Type: "text", Text: text},
		},
	}
}
