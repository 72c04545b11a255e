// Package session implements the Session Store: per-session chat history
// and configuration, keyed by an opaque session id.
package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/grokacp/grokacp/internal/config"
)

// ID is an opaque, globally-unique session identifier.
type ID string

// NewID mints a fresh session id using a ULID, matching the teacher's
// id-generation idiom elsewhere in the codebase.
func NewID() ID {
	return ID(ulid.Make().String())
}

// Role identifies the speaker of a ChatEvent.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall is a single function invocation requested by the assistant.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // raw JSON
}

// ChatEvent is one entry in a session's append-only history. Which of the
// Role-specific fields are meaningful depends on Role:
// RoleAssistant may carry Text and/or ToolCalls, RoleTool always carries
// ToolCallID and Content.
type ChatEvent struct {
	Role       Role       `json:"role"`
	Text       string     `json:"text,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Content    string     `json:"content,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Session is one conversation's state: its history and the configuration
// it was created with.
type Session struct {
	ID        ID
	Config    *config.Config
	History   []ChatEvent
	CreatedAt time.Time
	UpdatedAt time.Time

	busy bool
}

func newSession(id ID, cfg *config.Config) *Session {
	now := time.Now()
	s := &Session{
		ID:        id,
		Config:    cfg,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if cfg != nil && cfg.SystemPrompt != "" {
		s.History = append(s.History, ChatEvent{
			Role:      RoleSystem,
			Text:      cfg.SystemPrompt,
			Timestamp: now,
		})
	}
	return s
}

// Append adds an event to the session's history and bumps UpdatedAt.
func (s *Session) Append(event ChatEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	s.History = append(s.History, event)
	s.UpdatedAt = event.Timestamp
}

// ErrSessionBusy is returned by WithSession when a second prompt targets a
// session that already has one in flight -- only a single writer per
// session is permitted.
var ErrSessionBusy = fmt.Errorf("session is busy processing another prompt")

// ErrSessionNotFound is returned when no session exists for the given id.
var ErrSessionNotFound = fmt.Errorf("session not found")

// Store is the process-wide table of active sessions.
type Store struct {
	mu       sync.RWMutex
	sessions map[ID]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[ID]*Session)}
}

// Create registers a new session under a freshly minted id.
func (st *Store) Create(cfg *config.Config) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	s := newSession(NewID(), cfg)
	st.sessions[s.ID] = s
	return s
}

// Get returns the session for id, or ErrSessionNotFound.
func (st *Store) Get(id ID) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// WithSession exclusively locks session id for the duration of fn,
// rejecting a second concurrent caller with ErrSessionBusy rather than
// queueing it -- matching the single-writer-per-session model.
func (st *Store) WithSession(id ID, fn func(*Session) error) error {
	st.mu.Lock()
	s, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return ErrSessionNotFound
	}
	if s.busy {
		st.mu.Unlock()
		return ErrSessionBusy
	}
	s.busy = true
	st.mu.Unlock()

	defer func() {
		st.mu.Lock()
		s.busy = false
		st.mu.Unlock()
	}()

	return fn(s)
}

// Sweep removes sessions that haven't been touched in maxAge, returning
// how many were evicted.
func (st *Store) Sweep(maxAge time.Duration) int {
	st.mu.Lock()
	defer st.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, s := range st.sessions {
		if s.busy {
			continue
		}
		if s.UpdatedAt.Before(cutoff) {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// MarshalHistory serializes a session's history, mainly for diagnostics
// and tests.
func (s *Session) MarshalHistory() ([]byte, error) {
	return json.Marshal(s.History)
}
