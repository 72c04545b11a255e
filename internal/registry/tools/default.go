package tools

import (
	"github.com/grokacp/grokacp/internal/registry"
	"github.com/grokacp/grokacp/internal/security"
)

// NewDefaultRegistry builds the fixed 12-tool dispatch table wired to sec.
// memoryPath overrides save_memory's target file; pass "" for the default
// $HOME/.grok/memory.md location.
func NewDefaultRegistry(sec *security.Manager, memoryPath string) *registry.Registry {
	r := registry.New()

	r.Register(NewReadFileTool(sec))
	r.Register(NewWriteFileTool(sec))
	r.Register(NewReplaceTool(sec))
	r.Register(NewListDirectoryTool(sec))
	r.Register(NewGlobSearchTool(sec))
	r.Register(NewSearchFileContentTool(sec))
	r.Register(NewRunShellCommandTool(sec))
	r.Register(NewSaveMemoryTool(memoryPath))
	r.Register(NewReadMultipleFilesTool(sec))
	r.Register(NewListCodeDefinitionsTool(sec))

	r.Register(NewWebFetchTool())
	r.RegisterConditional(NewWebSearchTool(), IsWebSearchConfigured)

	return r
}
