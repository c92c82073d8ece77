package style

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// assetExternals keeps url() references to binary assets untouched.
var assetExternals = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.webp", "*.avif",
	"*.woff", "*.woff2", "*.ttf", "*.otf", "*.eot",
}

// ESBuild compiles plain CSS with esbuild, inlining @import rules.
type ESBuild struct{}

// NewESBuild returns the esbuild CSS compiler.
func NewESBuild() *ESBuild { return &ESBuild{} }

// Compile implements Compiler.
func (*ESBuild) Compile(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := filepath.Abs(req.Source)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", req.Source, err)
	}

	out := req.Output
	if out == "" {
		out = strings.TrimSuffix(src, filepath.Ext(src)) + ".out.css"
	}

	out, err = filepath.Abs(out)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", out, err)
	}

	wd := filepath.Dir(src)

	res := api.Build(api.BuildOptions{
		EntryPoints:   []string{src},
		Outfile:       out,
		AbsWorkingDir: wd,
		Bundle:        true,
		Write:         false,
		NodePaths:     req.IncludePaths,
		External:      assetExternals,
		Loader:        map[string]api.Loader{".css": api.LoaderCSS},
		LogLevel:      api.LogLevelSilent,
	})

	if len(res.Errors) > 0 {
		return nil, compileErrorFromMessage(wd, src, res.Errors[0])
	}

	for _, f := range res.OutputFiles {
		if strings.EqualFold(filepath.Ext(f.Path), ".css") {
			return f.Contents, nil
		}
	}

	return nil, &CompileError{File: src, Message: "esbuild produced no css output"}
}

func compileErrorFromMessage(wd, fallback string, msg api.Message) *CompileError {
	ce := &CompileError{File: fallback, Message: msg.Text, Err: errors.New(msg.Text)}

	if loc := msg.Location; loc != nil {
		ce.File = loc.File
		if !filepath.IsAbs(ce.File) {
			ce.File = filepath.Join(wd, ce.File)
		}

		ce.Line = loc.Line
		ce.Column = loc.Column + 1
	}

	return ce
}
