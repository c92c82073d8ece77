package style

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hupe1980/assetpipe/internal/config"
)

// Request describes a single compilation.
type Request struct {
	// Source is the absolute path of the entry stylesheet.
	Source string

	// Output is the path the result will be written to. Compilers use it to
	// resolve relative urls; they never write it.
	Output string

	// IncludePaths are searched for imports after the source's directory.
	IncludePaths []string
}

// Compiler turns a stylesheet into plain CSS.
type Compiler interface {
	Compile(ctx context.Context, req Request) ([]byte, error)
}

// CompileError reports a stylesheet that failed to compile.
type CompileError struct {
	File    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *CompileError) Error() string {
	var loc string

	switch {
	case e.Line > 0 && e.Column > 0:
		loc = fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
	case e.Line > 0:
		loc = fmt.Sprintf("%s:%d", e.File, e.Line)
	default:
		loc = e.File
	}

	if loc == "" {
		return "compile error: " + e.Message
	}

	return fmt.Sprintf("compile error: %s: %s", loc, e.Message)
}

func (e *CompileError) Unwrap() error { return e.Err }

// IsSass reports whether path is an SCSS or indented Sass source.
func IsSass(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".scss", ".sass":
		return true
	}

	return false
}

// Select returns the compiler for source according to the configured
// compiler name. With config.CompilerAuto, Sass sources go to sass and
// everything else to css.
func Select(name, source string, sass, css Compiler) Compiler {
	switch name {
	case config.CompilerDartSass:
		return sass
	case config.CompilerESBuild:
		return css
	}

	if IsSass(source) {
		return sass
	}

	return css
}
