// Package tools implements the fixed set of local side-effecting tools
// (file I/O, search, shell, web) dispatched by internal/registry.
package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/grokacp/grokacp/internal/registry"
	"github.com/grokacp/grokacp/internal/security"
)

func accessDeniedErr() error {
	return fmt.Errorf("Access denied: Path is not in a trusted directory")
}

// resolveInternal resolves path and classifies it, allowing both trusted
// (internal) paths and externally allow-listed paths through; it records
// an audit entry for any external-classified outcome along the way.
// RequiresApproval is treated as denied since there is no interactive
// approval surface in this headless core.
func resolveInternal(sec *security.Manager, ctx context.Context, path, operation string) (string, error) {
	resolved, err := sec.Policy().ResolvePath(path)
	if err != nil {
		return "", fmt.Errorf("Failed to resolve path '%s': %w", path, err)
	}
	sessionID := registry.SessionIDFromContext(ctx)
	c := sec.ClassifyForOperation(resolved, operation, sessionID)
	switch c.Decision {
	case security.DecisionInternal, security.DecisionExternalAllowed:
		return resolved, nil
	default:
		return "", accessDeniedErr()
	}
}

type readFileArgs struct {
	Path string `json:"path"`
}

// ReadFileTool implements the read_file tool.
type ReadFileTool struct {
	sec *security.Manager
}

// NewReadFileTool creates a read_file tool bound to sec.
func NewReadFileTool(sec *security.Manager) *ReadFileTool { return &ReadFileTool{sec: sec} }

func (*ReadFileTool) Name() string        { return "read_file" }
func (*ReadFileTool) Description() string { return "Read the content of a file" }
func (*ReadFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"The path to the file to read"}},"required":["path"]}`)
}

func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a readFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	resolved, err := resolveInternal(t.sec, ctx, a.Path, "read")
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("File not found: %s", resolved)
	}
	content, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("Failed to read file: %w", err)
	}
	return string(content), nil
}

type writeFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// WriteFileTool implements the write_file tool.
type WriteFileTool struct {
	sec *security.Manager
}

// NewWriteFileTool creates a write_file tool bound to sec.
func NewWriteFileTool(sec *security.Manager) *WriteFileTool { return &WriteFileTool{sec: sec} }

func (*WriteFileTool) Name() string        { return "write_file" }
func (*WriteFileTool) Description() string { return "Write content to a file" }
func (*WriteFileTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"The path to the file to write"},"content":{"type":"string","description":"The content to write"}},"required":["path","content"]}`)
}

func (t *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a writeFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	absolute := a.Path
	if !filepath.IsAbs(absolute) {
		absolute = filepath.Join(t.sec.Policy().WorkingDirectory(), absolute)
	}
	if err := os.MkdirAll(filepath.Dir(absolute), 0o755); err != nil {
		return "", fmt.Errorf("Failed to create directory: %w", err)
	}

	resolved, err := resolveInternal(t.sec, ctx, a.Path, "write")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(resolved, []byte(a.Content), 0o644); err != nil {
		return "", fmt.Errorf("Failed to write file: %w", err)
	}
	return fmt.Sprintf("Successfully wrote to %s", resolved), nil
}

type replaceArgs struct {
	Path                 string `json:"path"`
	OldString            string `json:"old_string"`
	NewString            string `json:"new_string"`
	ExpectedReplacements *int   `json:"expected_replacements,omitempty"`
}

// ReplaceTool implements the replace tool.
type ReplaceTool struct {
	sec *security.Manager
}

// NewReplaceTool creates a replace tool bound to sec.
func NewReplaceTool(sec *security.Manager) *ReplaceTool { return &ReplaceTool{sec: sec} }

func (*ReplaceTool) Name() string        { return "replace" }
func (*ReplaceTool) Description() string { return "Replace text in a file" }
func (*ReplaceTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"The path to the file to modify"},"old_string":{"type":"string","description":"The string to be replaced"},"new_string":{"type":"string","description":"The new string to replace with"},"expected_replacements":{"type":"integer","description":"Expected number of replacements (optional)"}},"required":["path","old_string","new_string"]}`)
}

func (t *ReplaceTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a replaceArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	resolved, err := resolveInternal(t.sec, ctx, a.Path, "write")
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(resolved); err != nil {
		return "", fmt.Errorf("File not found: %s", resolved)
	}
	content, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("Failed to read file: %w", err)
	}

	occurrences := strings.Count(string(content), a.OldString)
	if occurrences == 0 {
		return "", fmt.Errorf("Failed to replace: '%s' not found in file. Use read_file to verify content.", a.OldString)
	}
	if a.ExpectedReplacements != nil && occurrences != *a.ExpectedReplacements {
		return "", fmt.Errorf("Failed to replace: Expected %d occurrences, but found %d.", *a.ExpectedReplacements, occurrences)
	}

	newContent := strings.ReplaceAll(string(content), a.OldString, a.NewString)
	if err := os.WriteFile(resolved, []byte(newContent), 0o644); err != nil {
		return "", fmt.Errorf("Failed to write file: %w", err)
	}
	return fmt.Sprintf("Successfully replaced %d occurrence(s) in %s", occurrences, resolved), nil
}

type listDirectoryArgs struct {
	Path string `json:"path"`
}

// ListDirectoryTool implements the list_directory tool.
type ListDirectoryTool struct {
	sec *security.Manager
}

// NewListDirectoryTool creates a list_directory tool bound to sec.
func NewListDirectoryTool(sec *security.Manager) *ListDirectoryTool {
	return &ListDirectoryTool{sec: sec}
}

func (*ListDirectoryTool) Name() string        { return "list_directory" }
func (*ListDirectoryTool) Description() string { return "List files and directories in a path" }
func (*ListDirectoryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"The directory path to list"}},"required":["path"]}`)
}

func (t *ListDirectoryTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a listDirectoryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	resolved, err := resolveInternal(t.sec, ctx, a.Path, "list")
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("Directory not found: %s", resolved)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("Path is not a directory: %s", resolved)
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", fmt.Errorf("Failed to read directory: %w", err)
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		lines = append(lines, name)
	}
	return strings.Join(lines, "\n"), nil
}

type globSearchArgs struct {
	Pattern string `json:"pattern"`
}

// GlobSearchTool implements the glob_search tool.
type GlobSearchTool struct {
	sec *security.Manager
}

// NewGlobSearchTool creates a glob_search tool bound to sec.
func NewGlobSearchTool(sec *security.Manager) *GlobSearchTool { return &GlobSearchTool{sec: sec} }

func (*GlobSearchTool) Name() string        { return "glob_search" }
func (*GlobSearchTool) Description() string { return "Find files matching a glob pattern" }
func (*GlobSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"pattern":{"type":"string","description":"The glob pattern to match (e.g. **/*.go)"}},"required":["pattern"]}`)
}

func (t *GlobSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a globSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	matches, err := doublestar.FilepathGlob(a.Pattern)
	if err != nil {
		return "", fmt.Errorf("Failed to read glob pattern: %w", err)
	}
	var trusted []string
	for _, m := range matches {
		if t.sec.Policy().IsInternalPath(m) {
			trusted = append(trusted, m)
		}
	}
	if len(trusted) == 0 {
		return "No files found matching pattern", nil
	}
	return strings.Join(trusted, "\n"), nil
}

type searchFileContentArgs struct {
	Path    string `json:"path"`
	Pattern string `json:"pattern"`
}

// SearchFileContentTool implements the search_file_content tool.
type SearchFileContentTool struct {
	sec *security.Manager
}

// NewSearchFileContentTool creates a search_file_content tool bound to sec.
func NewSearchFileContentTool(sec *security.Manager) *SearchFileContentTool {
	return &SearchFileContentTool{sec: sec}
}

func (*SearchFileContentTool) Name() string { return "search_file_content" }
func (*SearchFileContentTool) Description() string {
	return "Search for text patterns in files using regex"
}
func (*SearchFileContentTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"The file or directory to search in"},"pattern":{"type":"string","description":"The regex pattern to search for"}},"required":["path","pattern"]}`)
}

func (t *SearchFileContentTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a searchFileContentArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	resolved, err := resolveInternal(t.sec, ctx, a.Path, "search")
	if err != nil {
		return "", err
	}
	re, err := regexp.Compile(a.Pattern)
	if err != nil {
		return "", fmt.Errorf("Invalid regex pattern: %w", err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		return "", fmt.Errorf("Failed to stat path: %w", err)
	}

	var results []string
	if info.IsDir() {
		err = filepath.Walk(resolved, func(p string, fi os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if fi.IsDir() {
				return nil
			}
			if !t.sec.Policy().IsInternalPath(p) {
				return nil
			}
			results = append(results, grepFile(p, re)...)
			return nil
		})
		if err != nil {
			return "", fmt.Errorf("Error walking directory: %w", err)
		}
	} else {
		results = grepFile(resolved, re)
	}

	if len(results) == 0 {
		return "No matches found", nil
	}
	return strings.Join(results, "\n"), nil
}

func grepFile(path string, re *regexp.Regexp) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var results []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !utf8.ValidString(line) {
			continue
		}
		if re.MatchString(line) {
			results = append(results, fmt.Sprintf("%s:%d:%s", path, lineNo, line))
		}
	}
	return results
}

type readMultipleFilesArgs struct {
	Paths []string `json:"paths"`
}

// ReadMultipleFilesTool implements the read_multiple_files tool.
type ReadMultipleFilesTool struct {
	sec *security.Manager
}

// NewReadMultipleFilesTool creates a read_multiple_files tool bound to sec.
func NewReadMultipleFilesTool(sec *security.Manager) *ReadMultipleFilesTool {
	return &ReadMultipleFilesTool{sec: sec}
}

func (*ReadMultipleFilesTool) Name() string { return "read_multiple_files" }
func (*ReadMultipleFilesTool) Description() string {
	return "Read the content of multiple files"
}
func (*ReadMultipleFilesTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"paths":{"type":"array","items":{"type":"string"},"description":"The paths of the files to read"}},"required":["paths"]}`)
}

func (t *ReadMultipleFilesTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a readMultipleFilesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	reader := &ReadFileTool{sec: t.sec}
	var sections []string
	for _, p := range a.Paths {
		content, err := reader.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"path":%q}`, p)))
		if err != nil {
			sections = append(sections, fmt.Sprintf("%s: %v", p, err))
			continue
		}
		sections = append(sections, fmt.Sprintf("--- %s ---\n%s", p, content))
	}
	return strings.Join(sections, "\n\n"), nil
}

type listCodeDefinitionsArgs struct {
	Path string `json:"path"`
}

// ListCodeDefinitionsTool implements the list_code_definitions tool: a
// line-oriented regex scan for surface-level symbol declarations,
// per-language by file extension.
type ListCodeDefinitionsTool struct {
	sec *security.Manager
}

// NewListCodeDefinitionsTool creates a list_code_definitions tool bound to sec.
func NewListCodeDefinitionsTool(sec *security.Manager) *ListCodeDefinitionsTool {
	return &ListCodeDefinitionsTool{sec: sec}
}

func (*ListCodeDefinitionsTool) Name() string { return "list_code_definitions" }
func (*ListCodeDefinitionsTool) Description() string {
	return "List top-level function, type, and class definitions in a source file"
}
func (*ListCodeDefinitionsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"path":{"type":"string","description":"The source file to scan"}},"required":["path"]}`)
}

var definitionPatterns = map[string]*regexp.Regexp{
	".go":  regexp.MustCompile(`^\s*(func|type)\s+\S+`),
	".rs":  regexp.MustCompile(`^\s*(pub\s+)?(fn|struct|enum|trait|impl)\s+\S+`),
	".py":  regexp.MustCompile(`^\s*(def|class)\s+\S+`),
	".js":  regexp.MustCompile(`^\s*(function|class)\s+\S+`),
	".ts":  regexp.MustCompile(`^\s*(export\s+)?(function|class|interface)\s+\S+`),
}

func (t *ListCodeDefinitionsTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a listCodeDefinitionsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	resolved, err := resolveInternal(t.sec, ctx, a.Path, "read")
	if err != nil {
		return "", err
	}

	pattern, ok := definitionPatterns[filepath.Ext(resolved)]
	if !ok {
		return "no definitions extractor for this file type", nil
	}

	f, err := os.Open(resolved)
	if err != nil {
		return "", fmt.Errorf("Failed to read file: %w", err)
	}
	defer f.Close()

	var results []string
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if pattern.MatchString(line) {
			results = append(results, fmt.Sprintf("%d: %s", lineNo, strings.TrimSpace(line)))
		}
	}
	if len(results) == 0 {
		return "No definitions found", nil
	}
	return strings.Join(results, "\n"), nil
}
