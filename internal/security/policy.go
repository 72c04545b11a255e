// Package security implements the filesystem trust model: canonicalizing
// path resolution, a two-tier internal/external access policy, and
// session-scoped trust grants.
package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// ExternalAccessConfig governs access to paths outside the trusted roots.
type ExternalAccessConfig struct {
	Enabled          bool
	AllowedPaths     []string
	ExcludedPatterns []string
	RequireApproval  bool
	Logging          bool
}

// DefaultExternalAccessConfig returns a conservative default: external
// access disabled.
func DefaultExternalAccessConfig() ExternalAccessConfig {
	return ExternalAccessConfig{
		Enabled:          false,
		AllowedPaths:     nil,
		ExcludedPatterns: []string{"**/.ssh/**", "**/.aws/**", "**/credentials", "**/*.pem"},
		RequireApproval:  true,
		Logging:          true,
	}
}

// Decision is the outcome of classifying a path access attempt.
type Decision int

const (
	// DecisionInternal means the path is under a trusted root.
	DecisionInternal Decision = iota
	// DecisionExternalAllowed means the path is outside all trusted roots
	// but permitted by the external access configuration.
	DecisionExternalAllowed
	// DecisionExternalRequiresApproval means the path is allowed but not
	// yet session-trusted, and approval is required.
	DecisionExternalRequiresApproval
	// DecisionDenied means the access is refused outright.
	DecisionDenied
)

func (d Decision) String() string {
	switch d {
	case DecisionInternal:
		return "internal"
	case DecisionExternalAllowed:
		return "allowed"
	case DecisionExternalRequiresApproval:
		return "requires_approval"
	case DecisionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// Classification is the full result of classifying a path.
type Classification struct {
	Decision Decision
	Path     string // resolved canonical path, when resolution succeeded
	Reason   string // populated for Denied
}

// Policy holds trusted roots, the working directory, and the external
// access configuration. A zero-value Policy is usable after calling
// NewPolicy.
type Policy struct {
	trustedDirectories []string
	workingDirectory   string
	externalAccess     ExternalAccessConfig

	mu             sync.Mutex
	sessionTrusted []string
}

// NewPolicy creates a policy rooted at workingDirectory with no trusted
// directories and a disabled external access configuration.
func NewPolicy(workingDirectory string) *Policy {
	if workingDirectory == "" {
		wd, err := os.Getwd()
		if err != nil {
			wd = "."
		}
		workingDirectory = wd
	}
	return &Policy{
		workingDirectory: workingDirectory,
		externalAccess:   DefaultExternalAccessConfig(),
	}
}

// WithExternalAccessConfig sets the external access configuration and
// returns the policy for chaining.
func (p *Policy) WithExternalAccessConfig(cfg ExternalAccessConfig) *Policy {
	p.externalAccess = cfg
	return p
}

// WorkingDirectory returns the policy's working directory.
func (p *Policy) WorkingDirectory() string {
	return p.workingDirectory
}

// IsExternalAccessLoggingEnabled reports whether the audit log should
// record external access decisions.
func (p *Policy) IsExternalAccessLoggingEnabled() bool {
	return p.externalAccess.Logging
}

// AddTrustedDirectory canonicalizes and registers path as a trusted root.
// If canonicalization fails the absolute, cleaned path is used without
// resolving symlinks, matching the original's best-effort behavior.
func (p *Policy) AddTrustedDirectory(path string) {
	canonical, err := filepath.EvalSymlinks(p.absolute(path))
	if err != nil {
		canonical = p.absolute(path)
	}
	p.trustedDirectories = append(p.trustedDirectories, canonical)
}

func (p *Policy) absolute(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(p.workingDirectory, path)
}

// ResolvePath returns the canonical absolute form of path. If path does
// not yet exist, only its parent is canonicalized and the final component
// is rejoined, so newly-created files resolve correctly.
func (p *Policy) ResolvePath(path string) (string, error) {
	absolute := p.absolute(path)

	if resolved, err := filepath.EvalSymlinks(absolute); err == nil {
		return resolved, nil
	}

	parent := filepath.Dir(absolute)
	canonicalParent, err := filepath.EvalSymlinks(parent)
	if err != nil {
		return "", fmt.Errorf("cannot resolve path %q: %w", path, err)
	}
	return filepath.Join(canonicalParent, filepath.Base(absolute)), nil
}

// IsInternalPath reports whether path resolves under any trusted root.
// With no trusted roots registered, nothing is internal.
func (p *Policy) IsInternalPath(path string) bool {
	resolved, err := p.ResolvePath(path)
	if err != nil {
		return false
	}
	if len(p.trustedDirectories) == 0 {
		return false
	}
	for _, trusted := range p.trustedDirectories {
		if isUnderRoot(resolved, trusted) {
			return true
		}
	}
	return false
}

func isUnderRoot(resolved, root string) bool {
	if resolved == root {
		return true
	}
	return strings.HasPrefix(resolved, root+string(filepath.Separator))
}

// ExternalAccessResult classifies an access attempt to a path known to be
// outside the trusted roots.
type ExternalAccessResult struct {
	Decision Decision // ExternalAllowed, ExternalRequiresApproval, or Denied
	Path     string
	Reason   string
}

// IsExternalAccessAllowed classifies external access to path, applying the
// ordering: disabled -> excluded pattern -> allow-list/session-trust ->
// approval requirement.
func (p *Policy) IsExternalAccessAllowed(path string) ExternalAccessResult {
	if !p.externalAccess.Enabled {
		return ExternalAccessResult{Decision: DecisionDenied, Reason: "External access is disabled in configuration"}
	}

	resolved, err := p.ResolvePath(path)
	if err != nil {
		return ExternalAccessResult{Decision: DecisionDenied, Reason: fmt.Sprintf("Cannot resolve path: %v", err)}
	}

	if p.isPathExcluded(resolved) {
		return ExternalAccessResult{Decision: DecisionDenied, Path: resolved, Reason: "Path matches excluded pattern (security protection)"}
	}

	isAllowed := false
	for _, allowed := range p.externalAccess.AllowedPaths {
		canonicalAllowed, err := filepath.EvalSymlinks(allowed)
		if err != nil {
			canonicalAllowed = allowed
		}
		if isUnderRoot(resolved, canonicalAllowed) {
			isAllowed = true
			break
		}
	}

	sessionTrusted := p.isSessionTrusted(resolved)

	if !isAllowed && !sessionTrusted {
		return ExternalAccessResult{Decision: DecisionDenied, Path: resolved, Reason: "Path is not in allowed external paths or session-trusted paths"}
	}

	if p.externalAccess.RequireApproval && !sessionTrusted {
		return ExternalAccessResult{Decision: DecisionExternalRequiresApproval, Path: resolved}
	}
	return ExternalAccessResult{Decision: DecisionExternalAllowed, Path: resolved}
}

func (p *Policy) isPathExcluded(path string) bool {
	for _, pattern := range p.externalAccess.ExcludedPatterns {
		if ok, err := doublestar.Match(pattern, path); err == nil && ok {
			return true
		}
	}
	return false
}

func (p *Policy) isSessionTrusted(resolved string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, trusted := range p.sessionTrusted {
		if isUnderRoot(resolved, trusted) {
			return true
		}
	}
	return false
}

// Classify performs the combined internal-then-external classification.
func (p *Policy) Classify(path string) Classification {
	if p.IsInternalPath(path) {
		resolved, _ := p.ResolvePath(path)
		return Classification{Decision: DecisionInternal, Path: resolved}
	}

	result := p.IsExternalAccessAllowed(path)
	return Classification{Decision: result.Decision, Path: result.Path, Reason: result.Reason}
}

// AddSessionTrustedPath canonicalizes path and adds it to the session's
// trust grants, deduplicated. Grants live for the process lifetime and
// are never persisted.
func (p *Policy) AddSessionTrustedPath(path string) {
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.sessionTrusted {
		if existing == canonical {
			return
		}
	}
	p.sessionTrusted = append(p.sessionTrusted, canonical)
}

// ValidateShellCommand rejects empty or whitespace-only commands. Trust is
// enforced by the surrounding workflow, not by command-string analysis.
func (p *Policy) ValidateShellCommand(command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	return nil
}
