package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRegistryHasAllTools(t *testing.T) {
	sec, _ := newTestManager(t)
	r := NewDefaultRegistry(sec, "")

	defs := r.Definitions()
	names := make([]string, 0, len(defs))
	for _, d := range defs {
		names = append(names, d.Name)
	}

	expected := []string{
		"glob_search", "list_code_definitions", "list_directory",
		"read_file", "read_multiple_files", "replace", "run_shell_command",
		"save_memory", "search_file_content", "web_fetch", "web_search",
		"write_file",
	}
	assert.ElementsMatch(t, expected, names)
}

func TestDefaultRegistryHidesWebSearchWithoutCredentials(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GOOGLE_CX", "")

	sec, _ := newTestManager(t)
	r := NewDefaultRegistry(sec, "")

	for _, d := range r.AvailableDefinitions() {
		assert.NotEqual(t, "web_search", d.Name)
	}
}
