package style

import (
	"context"
	"errors"
	"fmt"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/hupe1980/assetpipe/internal/config"
)

// Prefixer adds the vendor prefixes the browser targets need.
type Prefixer interface {
	Prefix(ctx context.Context, file string, css []byte) ([]byte, error)
}

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// ESBuildPrefixer lowers and prefixes CSS for a set of engines using the
// esbuild CSS transform.
type ESBuildPrefixer struct {
	engines []api.Engine
	minify  bool
}

// NewPrefixer returns a prefixer for targets.
func NewPrefixer(targets []config.Target, minify bool) *ESBuildPrefixer {
	engines := make([]api.Engine, 0, len(targets))

	for _, t := range targets {
		name, ok := engineNames[t.Engine]
		if !ok {
			continue
		}

		engines = append(engines, api.Engine{
			Name:    name,
			Version: fmt.Sprintf("%d.%d.%d", t.Version.Major(), t.Version.Minor(), t.Version.Patch()),
		})
	}

	return &ESBuildPrefixer{engines: engines, minify: minify}
}

// Prefix implements Prefixer.
func (p *ESBuildPrefixer) Prefix(ctx context.Context, file string, css []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := api.Transform(string(css), api.TransformOptions{
		Loader:            api.LoaderCSS,
		Sourcefile:        file,
		Engines:           p.engines,
		MinifyWhitespace:  p.minify,
		MinifySyntax:      p.minify,
		MinifyIdentifiers: p.minify,
		LogLevel:          api.LogLevelSilent,
	})

	if len(res.Errors) > 0 {
		msg := res.Errors[0]
		ce := &CompileError{File: file, Message: msg.Text, Err: errors.New(msg.Text)}

		if msg.Location != nil {
			ce.Line = msg.Location.Line
			ce.Column = msg.Location.Column + 1
		}

		return nil, ce
	}

	return res.Code, nil
}
