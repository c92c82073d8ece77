package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executeCommand is a test helper that runs the CLI with the given args and
// captures both stdout and stderr.
func executeCommand(args ...string) (stdout, stderr string, err error) {
	cmd := NewRootCommand()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)
	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()

	return outBuf.String(), errBuf.String(), err
}

// writeProject creates a project directory with a descriptor and the given
// files, and returns the descriptor path.
func writeProject(t *testing.T, descriptor string, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}

	cfgPath := filepath.Join(dir, ".assetpipe.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(descriptor), 0o600))

	return cfgPath
}

const bundleDescriptor = `
main: index.js
paths:
  dist:
    js: build/
`

// ---------------------------------------------------------------------------
// Help output
// ---------------------------------------------------------------------------

func TestRootCommand_Help(t *testing.T) {
	stdout, _, err := executeCommand("--help")
	require.NoError(t, err)

	for _, sub := range []string{"run", "tasks", "config", "version", "completion"} {
		assert.Contains(t, stdout, sub, "help should mention %q subcommand", sub)
	}

	for _, flag := range []string{"--config", "--log-level", "--log-format", "--no-color", "--quiet", "--dry-run", "--parallel"} {
		assert.Contains(t, stdout, flag, "help should mention %q flag", flag)
	}
}

// ---------------------------------------------------------------------------
// Unknown flags → exit code 2
// ---------------------------------------------------------------------------

func TestRootCommand_UnknownFlag(t *testing.T) {
	_, _, err := executeCommand("--nonexistent")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

// ---------------------------------------------------------------------------
// SilenceErrors – cobra must not print errors itself
// ---------------------------------------------------------------------------

func TestRootCommand_SilenceErrors(t *testing.T) {
	_, stderr, err := executeCommand("--nonexistent")
	require.Error(t, err)
	assert.Empty(t, stderr, "cobra should not print errors to stderr (SilenceErrors)")
}

// ---------------------------------------------------------------------------
// Invalid --config → exit code 2
// ---------------------------------------------------------------------------

func TestRootCommand_InvalidConfig(t *testing.T) {
	_, _, err := executeCommand("--config", "/nonexistent/path.yaml", "tasks")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "reading config file")
}

// ---------------------------------------------------------------------------
// Invalid --log-level / --log-format → exit code 2 (validation error)
// ---------------------------------------------------------------------------

func TestRootCommand_InvalidLogLevel(t *testing.T) {
	_, _, err := executeCommand("--log-level", "trace", "tasks")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestRootCommand_InvalidLogFormat(t *testing.T) {
	_, _, err := executeCommand("--log-format", "xml", "tasks")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "invalid log format")
}

// ---------------------------------------------------------------------------
// Positional tasks
// ---------------------------------------------------------------------------

func TestRootCommand_RunsPositionalTasks(t *testing.T) {
	cfgPath := writeProject(t, bundleDescriptor, map[string]string{"index.js": "console.log(\"hello\");\n"})

	_, stderr, err := executeCommand("--config", cfgPath, "--no-color", "bundle")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(filepath.Dir(cfgPath), "build", "index.js"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `console.log("hello");`)
	assert.Contains(t, stderr, "index.js")
}

func TestRootCommand_UnknownTaskExitCode2(t *testing.T) {
	cfgPath := writeProject(t, bundleDescriptor, map[string]string{"index.js": "console.log(1);\n"})

	_, _, err := executeCommand("--config", cfgPath, "bundle", "deploy")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), `task "deploy": unknown task`)
	assert.NoDirExists(t, filepath.Join(filepath.Dir(cfgPath), "build"))
}

// ---------------------------------------------------------------------------
// ExecuteArgs
// ---------------------------------------------------------------------------

func TestExecuteArgs_ExitCodes(t *testing.T) {
	assert.Equal(t, 0, ExecuteArgs([]string{"version"}))
	assert.Equal(t, 2, ExecuteArgs([]string{"--nonexistent"}))
	assert.Equal(t, 2, ExecuteArgs([]string{"--config", "/nonexistent/path.yaml", "tasks"}))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 3, exitCode(&ExitError{Code: 3}))
	assert.Equal(t, 1, exitCode(assert.AnError))
}

// ---------------------------------------------------------------------------
// ExitError
// ---------------------------------------------------------------------------

func TestExitError_ErrorWithMessage(t *testing.T) {
	err := &ExitError{Code: 1, Err: assert.AnError}
	assert.Contains(t, err.Error(), assert.AnError.Error())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestExitError_ErrorWithoutMessage(t *testing.T) {
	err := &ExitError{Code: 42}
	assert.Equal(t, "exit code 42", err.Error())
	assert.Nil(t, err.Unwrap())
}
