package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/grokacp/grokacp/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*security.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	sec := security.NewManager(resolved, nil)
	sec.AddTrustedDirectory(resolved)
	return sec, resolved
}

func TestFileOperations(t *testing.T) {
	sec, dir := newTestManager(t)
	ctx := context.Background()

	path := filepath.Join(dir, "note.txt")

	write := NewWriteFileTool(sec)
	out, err := write.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"path":%q,"content":%q}`, path, "hello world")))
	require.NoError(t, err)
	assert.Contains(t, out, "Successfully wrote")

	read := NewReadFileTool(sec)
	content, err := read.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"path":%q}`, path)))
	require.NoError(t, err)
	assert.Equal(t, "hello world", content)

	_, err = read.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"path":%q}`, filepath.Join(dir, "missing.txt"))))
	assert.Error(t, err)
}

func TestReadFileOutsideTrustedDenied(t *testing.T) {
	sec, _ := newTestManager(t)
	outside := t.TempDir()
	path := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	read := NewReadFileTool(sec)
	_, err := read.Execute(context.Background(), json.RawMessage(fmt.Sprintf(`{"path":%q}`, path)))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Access denied")
}

func TestReplace(t *testing.T) {
	sec, dir := newTestManager(t)
	ctx := context.Background()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo bar foo"), 0o644))

	replace := NewReplaceTool(sec)
	out, err := replace.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"path":%q,"old_string":"foo","new_string":"baz"}`, path)))
	require.NoError(t, err)
	assert.Contains(t, out, "2 occurrence")

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "baz bar baz", string(content))

	_, err = replace.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"path":%q,"old_string":"foo","new_string":"qux"}`, path)))
	assert.Error(t, err)
}

func TestReplaceExpectedReplacementsMismatch(t *testing.T) {
	sec, dir := newTestManager(t)
	ctx := context.Background()
	path := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo foo foo"), 0o644))

	replace := NewReplaceTool(sec)
	_, err := replace.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"path":%q,"old_string":"foo","new_string":"bar","expected_replacements":1}`, path)))
	assert.Error(t, err)
}

func TestListDirectory(t *testing.T) {
	sec, dir := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("1"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	list := NewListDirectoryTool(sec)
	out, err := list.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"path":%q}`, dir)))
	require.NoError(t, err)
	assert.Contains(t, out, "a.txt")
	assert.Contains(t, out, "sub/")
}

func TestGlobSearch(t *testing.T) {
	sec, dir := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.go"), []byte("package x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "two.txt"), []byte("x"), 0o644))

	glob := NewGlobSearchTool(sec)
	out, err := glob.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"pattern":%q}`, filepath.Join(dir, "*.go"))))
	require.NoError(t, err)
	assert.Contains(t, out, "one.go")
	assert.NotContains(t, out, "two.txt")
}

func TestGlobSearchNoMatches(t *testing.T) {
	sec, dir := newTestManager(t)
	glob := NewGlobSearchTool(sec)
	out, err := glob.Execute(context.Background(), json.RawMessage(fmt.Sprintf(`{"pattern":%q}`, filepath.Join(dir, "*.nomatch"))))
	require.NoError(t, err)
	assert.Equal(t, "No files found matching pattern", out)
}

func TestSearchContent(t *testing.T) {
	sec, dir := newTestManager(t)
	ctx := context.Background()
	path := filepath.Join(dir, "log.txt")
	require.NoError(t, os.WriteFile(path, []byte("line one\nERROR boom\nline three\n"), 0o644))

	search := NewSearchFileContentTool(sec)
	out, err := search.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"path":%q,"pattern":"ERROR"}`, path)))
	require.NoError(t, err)
	assert.Contains(t, out, "ERROR boom")

	out, err = search.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"path":%q,"pattern":"NOPE"}`, path)))
	require.NoError(t, err)
	assert.Equal(t, "No matches found", out)
}

func TestReadMultipleFiles(t *testing.T) {
	sec, dir := newTestManager(t)
	ctx := context.Background()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("A"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("B"), 0o644))

	tool := NewReadMultipleFilesTool(sec)
	out, err := tool.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"paths":[%q,%q]}`, a, b)))
	require.NoError(t, err)
	assert.Contains(t, out, "A")
	assert.Contains(t, out, "B")
}

func TestListCodeDefinitions(t *testing.T) {
	sec, dir := newTestManager(t)
	ctx := context.Background()
	path := filepath.Join(dir, "sample.go")
	require.NoError(t, os.WriteFile(path, []byte("package x\n\nfunc Foo() {}\n\ntype Bar struct{}\n"), 0o644))

	tool := NewListCodeDefinitionsTool(sec)
	out, err := tool.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"path":%q}`, path)))
	require.NoError(t, err)
	assert.Contains(t, out, "func Foo")
	assert.Contains(t, out, "type Bar")
}

func TestListCodeDefinitionsUnsupportedExtension(t *testing.T) {
	sec, dir := newTestManager(t)
	ctx := context.Background()
	path := filepath.Join(dir, "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0o644))

	tool := NewListCodeDefinitionsTool(sec)
	out, err := tool.Execute(ctx, json.RawMessage(fmt.Sprintf(`{"path":%q}`, path)))
	require.NoError(t, err)
	assert.Equal(t, "no definitions extractor for this file type", out)
}
