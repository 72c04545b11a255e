package security

import (
	"sync"

	"github.com/grokacp/grokacp/internal/audit"
)

// Manager owns the process-wide Policy plus the audit logger, and is the
// single call site that records every externally-classified decision —
// internal-path accesses are not logged, matching the original.
type Manager struct {
	mu     sync.Mutex
	policy *Policy
	audit  *audit.Logger
}

// NewManager creates a Manager rooted at workingDirectory. auditLogger may
// be nil, in which case classification still works but nothing is
// recorded.
func NewManager(workingDirectory string, auditLogger *audit.Logger) *Manager {
	return &Manager{
		policy: NewPolicy(workingDirectory),
		audit:  auditLogger,
	}
}

// UpdateExternalAccessConfig replaces the external access configuration.
func (m *Manager) UpdateExternalAccessConfig(cfg ExternalAccessConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy.externalAccess = cfg
}

// AddTrustedDirectory registers path as a trusted root.
func (m *Manager) AddTrustedDirectory(path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.policy.AddTrustedDirectory(path)
}

// AddSessionTrustedPath grants session-scoped trust to path.
func (m *Manager) AddSessionTrustedPath(path string) {
	m.policy.AddSessionTrustedPath(path)
}

// Policy returns the underlying policy. Reads beyond the mutation points
// above (AddTrustedDirectory, UpdateExternalAccessConfig) are safe without
// holding the lock since Policy's own state is either append-only or
// separately guarded (session-trusted paths).
func (m *Manager) Policy() *Policy {
	return m.policy
}

// CheckInternal is a convenience for tools that only ever need internal
// access (no external fallback), matching the original's
// check_path_access.
func (m *Manager) CheckInternal(path string) error {
	if m.policy.IsInternalPath(path) {
		return nil
	}
	return &AccessDeniedError{Reason: "Path is not in a trusted directory"}
}

// AccessDeniedError is returned when a path access is refused.
type AccessDeniedError struct {
	Reason string
}

func (e *AccessDeniedError) Error() string {
	return "Access denied: " + e.Reason
}

// ClassifyForOperation performs the combined internal/external
// classification and, for any external-classified outcome, writes exactly
// one audit entry for the given operation and session — regardless of
// which tool triggered it. Internal classifications are not logged.
func (m *Manager) ClassifyForOperation(path, operation, sessionID string) Classification {
	c := m.policy.Classify(path)
	if c.Decision == DecisionInternal {
		return c
	}
	if m.audit != nil && m.policy.IsExternalAccessLoggingEnabled() {
		decision := audit.DecisionDenied
		var reason string
		switch c.Decision {
		case DecisionExternalAllowed:
			decision = audit.DecisionApprovedAlways
		case DecisionExternalRequiresApproval:
			// No interactive approval surface exists in this headless
			// core, so a path that requires approval is actually denied
			// access (see resolveInternal in registry/tools) — the audit
			// entry must reflect what happened, not a hypothetical grant.
			decision = audit.DecisionDenied
			reason = "Path requires approval and no approval was granted"
		case DecisionDenied:
			decision = audit.DecisionDenied
			reason = c.Reason
		}
		loggedPath := c.Path
		if loggedPath == "" {
			loggedPath = path
		}
		m.audit.LogAccess(audit.NewEntry(loggedPath, operation, decision, sessionID, reason, ""))
	}
	return c
}
