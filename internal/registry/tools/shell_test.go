package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"testing"

	"github.com/grokacp/grokacp/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunShellCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell assumed")
	}
	sec, _ := newTestManager(t)
	tool := NewRunShellCommandTool(sec)

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"command":"echo hi"}`))
	require.NoError(t, err)
	assert.Contains(t, out, "Stdout: hi")
	assert.Contains(t, out, "Stderr: ")
	assert.Contains(t, out, "Exit status: 0")
}

func TestRunShellCommandRejectsEmpty(t *testing.T) {
	sec, _ := newTestManager(t)
	tool := NewRunShellCommandTool(sec)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"command":"   "}`))
	assert.Error(t, err)
}

func TestRunShellCommandNonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell assumed")
	}
	sec, _ := newTestManager(t)
	tool := NewRunShellCommandTool(sec)

	_, err := tool.Execute(context.Background(), json.RawMessage(fmt.Sprintf(`{"command":%q}`, "exit 7")))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 7")
}

func TestValidateShellCommandViaPolicy(t *testing.T) {
	sec := security.NewManager(t.TempDir(), nil)
	assert.Error(t, sec.Policy().ValidateShellCommand(""))
	assert.NoError(t, sec.Policy().ValidateShellCommand("ls"))
}

func TestShellCommandUnixUsesShDashC(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix shell assumed")
	}
	shell, flag, command := shellCommand("echo a && echo b")
	assert.Equal(t, "sh", shell)
	assert.Equal(t, "-c", flag)
	assert.Equal(t, "echo a && echo b", command)
}
