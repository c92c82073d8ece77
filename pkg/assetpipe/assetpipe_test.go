package assetpipe

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T, descriptor string, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}

	path := filepath.Join(dir, "package.json")
	require.NoError(t, os.WriteFile(path, []byte(descriptor), 0o600))

	return path
}

const descriptor = `{
  "name": "site",
  "main": "index.js",
  "paths": {"dist": {"js": "build/"}}
}`

func TestRun_Bundle(t *testing.T) {
	path := writeProject(t, descriptor, map[string]string{"index.js": "console.log(\"hello\");\n"})

	require.NoError(t, Run(context.Background(), path, "bundle"))

	data, err := os.ReadFile(filepath.Join(filepath.Dir(path), "build", "index.js"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `console.log("hello");`)
}

func TestRun_UnknownTask(t *testing.T) {
	path := writeProject(t, descriptor, map[string]string{"index.js": "console.log(1);\n"})

	err := Run(context.Background(), path, "deploy")
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "deploy", cfgErr.Task)
}

func TestRun_BundleError(t *testing.T) {
	path := writeProject(t, descriptor, map[string]string{"index.js": "import './missing.js';\n"})

	err := Run(context.Background(), path, "bundle")

	var be *BundleError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "./missing.js", be.Module)
	assert.NoDirExists(t, filepath.Join(filepath.Dir(path), "build"))
}

func TestRun_MissingDescriptor(t *testing.T) {
	err := Run(context.Background(), filepath.Join(t.TempDir(), "nope.yaml"), "bundle")
	assert.True(t, IsConfigurationError(err))
}

func TestNew_Options(t *testing.T) {
	path := writeProject(t, descriptor, map[string]string{"index.js": "const message = \"hello\";\nconsole.log(message);\n"})

	var stdout bytes.Buffer

	p, err := New(path, WithDryRun(), WithMinify(), WithParallel(1), WithOutput(&stdout, &bytes.Buffer{}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	assert.Equal(t, []string{"scss", "bundle", "watch", "default"}, p.Tasks())

	require.NoError(t, p.Run(context.Background(), "bundle"))
	assert.NoDirExists(t, filepath.Join(filepath.Dir(path), "build"))
	assert.Contains(t, stdout.String(), "+++ ")
	assert.NotContains(t, stdout.String(), "\n+  ")
}

func TestRun_CancelledContext(t *testing.T) {
	path := writeProject(t, descriptor, map[string]string{"index.js": "console.log(1);\n"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, path, "bundle")
	assert.True(t, errors.Is(err, context.Canceled))
}
