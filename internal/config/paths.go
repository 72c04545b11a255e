package config

import (
	"os"
)

// WorkspaceRootHint returns the workspace root an editor or CI harness
// advertised via environment variable, or "" if neither is set. Callers
// fall back to the process's working directory.
func WorkspaceRootHint() string {
	if v := os.Getenv("CODER_AGENT_WORKSPACE_PATH"); v != "" {
		return v
	}
	return os.Getenv("WORKSPACE_ROOT")
}
