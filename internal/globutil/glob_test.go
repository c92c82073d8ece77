package globutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase(t *testing.T) {
	tests := []struct {
		pattern string
		want    string
	}{
		{"src/scss/**/*.scss", "src/scss"},
		{"src/js/*.js", "src/js"},
		{"src/scss/main.scss", "src/scss"},
		{"*.js", "."},
		{"main.scss", "."},
		{"/abs/dir/*.css", "/abs/dir"},
		{"/*.css", "/"},
		{"dist/css/", "dist/css"},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.want), Base(tt.pattern))
		})
	}
}

func TestPattern_Match(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/p/src/**/*.scss", "/p/src/main.scss", true},
		{"/p/src/**/*.scss", "/p/src/partials/_vars.scss", true},
		{"/p/src/**/*.scss", "/p/src/partials/deep/_mix.scss", true},
		{"/p/src/**/*.scss", "/p/src/main.css", false},
		{"/p/src/*.js", "/p/src/app.js", true},
		{"/p/src/*.js", "/p/src/lib/app.js", false},
		{"/p/src/**/*.{scss,sass,css}", "/p/src/a/b.sass", true},
		{"/p/src/**/*.{scss,sass,css}", "/p/src/a/b.less", false},
		{"/p/package.json", "/p/package.json", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.path, func(t *testing.T) {
			p, err := Compile(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Match(tt.path))
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile("src/[a-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compiling glob")
}

func TestPattern_Expand(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"a.css", "b.css", "nested/c.css", "d.js"} {
		p := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o600))
	}

	p, err := Compile(filepath.Join(dir, "*.css"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir), p.Base())

	got, err := p.Expand()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.css"), filepath.Join(dir, "b.css")}, got)

	deep, err := Compile(filepath.Join(dir, "**", "*.css"))
	require.NoError(t, err)

	got, err = deep.Expand()
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestPattern_ExpandMissingBase(t *testing.T) {
	p, err := Compile(filepath.Join(t.TempDir(), "missing", "*.css"))
	require.NoError(t, err)

	got, err := p.Expand()
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, filepath.Join(filepath.Dir(p.Base()), "missing"), p.Base())
}
