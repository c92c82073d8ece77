package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func TestRun_NoArgs(t *testing.T) {
	_, _, err := executeCommand("run")
	require.Error(t, err)
}

func TestRun_BundleScenario(t *testing.T) {
	cfgPath := writeProject(t, bundleDescriptor, map[string]string{"index.js": "console.log(\"hello\");\n"})

	_, _, err := executeCommand("--config", cfgPath, "run", "bundle")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(filepath.Dir(cfgPath), "build", "index.js"))
}

func TestRun_BundleFailureExitCode1(t *testing.T) {
	cfgPath := writeProject(t, bundleDescriptor, map[string]string{"index.js": "import 'left-pad';\n"})

	_, _, err := executeCommand("--config", cfgPath, "run", "bundle")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 1, exitErr.Code)
	assert.Contains(t, err.Error(), `"left-pad"`)
}

func TestRun_MissingDescriptorFieldExitCode2(t *testing.T) {
	cfgPath := writeProject(t, "main: index.js\n", map[string]string{"index.js": "console.log(1);\n"})

	_, _, err := executeCommand("--config", cfgPath, "run", "bundle")
	require.Error(t, err)

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "paths.dist.js: required")
}

func TestRun_DryRun(t *testing.T) {
	cfgPath := writeProject(t, bundleDescriptor, map[string]string{"index.js": "console.log(\"hello\");\n"})

	stdout, _, err := executeCommand("--config", cfgPath, "--dry-run", "run", "bundle")
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(filepath.Dir(cfgPath), "build"))
	assert.Contains(t, stdout, "--- /dev/null")
	assert.Contains(t, stdout, `console.log("hello");`)
}

func TestRun_ShellTask(t *testing.T) {
	cfgPath := writeProject(t, bundleDescriptor+`
tasks:
  report:
    description: print the bundle
    deps: [bundle]
    run: cat build/index.js | grep -c hello
`, map[string]string{"index.js": "console.log(\"hello\");\n"})

	stdout, _, err := executeCommand("--config", cfgPath, "report")
	require.NoError(t, err)
	assert.Equal(t, "1\n", stdout)
}

func TestRun_PackageJSONDescriptor(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.js"), []byte("console.log(1);\n"), 0o600))

	pkg := filepath.Join(dir, "package.json")
	require.NoError(t, os.WriteFile(pkg, []byte(`{
  "name": "site",
  "main": "index.js",
  "paths": {"dist": {"js": "public/js/"}}
}`), 0o600))

	_, _, err := executeCommand("--config", pkg, "bundle")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "public", "js", "index.js"))
}

// ---------------------------------------------------------------------------
// tasks
// ---------------------------------------------------------------------------

func TestTasks_Table(t *testing.T) {
	cfgPath := writeProject(t, bundleDescriptor+`
tasks:
  lint:
    description: lint sources
    run: "true"
`, nil)

	stdout, _, err := executeCommand("--config", cfgPath, "tasks")
	require.NoError(t, err)

	assert.Contains(t, stdout, "TASK")
	assert.Contains(t, stdout, "scss, bundle")
	assert.Contains(t, stdout, "lint sources")

	for _, name := range []string{"scss", "bundle", "watch", "default", "lint"} {
		assert.Contains(t, stdout, name)
	}
}

func TestTasks_JSON(t *testing.T) {
	cfgPath := writeProject(t, bundleDescriptor, nil)

	stdout, _, err := executeCommand("--config", cfgPath, "tasks", "--format", "json")
	require.NoError(t, err)

	var tasks []taskInfo
	require.NoError(t, json.Unmarshal([]byte(stdout), &tasks))
	require.Len(t, tasks, 4)
	assert.Equal(t, "default", tasks[3].Name)
	assert.Equal(t, []string{"scss", "bundle"}, tasks[3].Deps)
}

func TestTasks_InvalidFormat(t *testing.T) {
	cfgPath := writeProject(t, bundleDescriptor, nil)

	_, _, err := executeCommand("--config", cfgPath, "tasks", "--format", "xml")

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}

func TestTasks_ShadowingBuiltinExitCode2(t *testing.T) {
	cfgPath := writeProject(t, bundleDescriptor+`
tasks:
  scss:
    run: echo nope
`, nil)

	_, _, err := executeCommand("--config", cfgPath, "tasks")

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
	assert.Contains(t, err.Error(), "shadows a built-in task")
}

// ---------------------------------------------------------------------------
// config
// ---------------------------------------------------------------------------

func TestConfig_PrintsYAML(t *testing.T) {
	cfgPath := writeProject(t, bundleDescriptor, nil)

	stdout, _, err := executeCommand("--config", cfgPath, "--minify", "config")
	require.NoError(t, err)

	assert.Contains(t, stdout, "# descriptor: "+cfgPath)

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &parsed))
	assert.Equal(t, "index.js", parsed["main"])
	assert.Equal(t, true, parsed["minify"])
	assert.Equal(t, "200ms", parsed["debounce"])
}

// ---------------------------------------------------------------------------
// completion
// ---------------------------------------------------------------------------

func TestCompletion_Bash(t *testing.T) {
	stdout, _, err := executeCommand("completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, stdout, "bash completion")
}

func TestCompletion_Zsh(t *testing.T) {
	stdout, _, err := executeCommand("completion", "zsh")
	require.NoError(t, err)
	assert.Contains(t, stdout, "zsh completion")
}

func TestCompletion_Fish(t *testing.T) {
	stdout, _, err := executeCommand("completion", "fish")
	require.NoError(t, err)
	assert.Contains(t, stdout, "fish")
}

func TestCompletion_PowerShell(t *testing.T) {
	stdout, _, err := executeCommand("completion", "powershell")
	require.NoError(t, err)
	assert.Contains(t, stdout, "powershell")
}

func TestCompletion_InvalidShell(t *testing.T) {
	_, _, err := executeCommand("completion", "tcsh")
	require.Error(t, err)
}

func TestCompletion_TaskNames(t *testing.T) {
	cfgPath := writeProject(t, bundleDescriptor, nil)

	stdout, _, err := executeCommand("__complete", "--config", cfgPath, "run", "")
	require.NoError(t, err)
	assert.Contains(t, stdout, "bundle\tbundle the main script")
	assert.Contains(t, stdout, "default")
}
