// Package bundle implements the bundle task: the entry script and everything
// it imports are bundled by esbuild into a single browser script.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evanw/esbuild/pkg/api"

	"github.com/hupe1980/assetpipe/internal/logging"
	"github.com/hupe1980/assetpipe/internal/output"
	"github.com/hupe1980/assetpipe/internal/size"
)

var unresolvedRe = regexp.MustCompile(`Could not resolve "([^"]+)"`)

// BundleError reports an entry that could not be bundled. Module is set when
// the failure is an import that does not resolve.
type BundleError struct {
	Entry   string
	Module  string
	File    string
	Line    int
	Column  int
	Message string
}

func (e *BundleError) Error() string {
	loc := e.File
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", e.File, e.Line, e.Column)
	}

	if e.Module != "" {
		return fmt.Sprintf("bundle error: %s: cannot resolve module %q imported from %s", e.Entry, e.Module, loc)
	}

	if loc == "" || loc == e.Entry {
		return fmt.Sprintf("bundle error: %s: %s", e.Entry, e.Message)
	}

	return fmt.Sprintf("bundle error: %s: %s: %s", e.Entry, loc, e.Message)
}

// Request describes one bundle.
type Request struct {
	Entry  string
	Output string
}

// Bundler bundles an entry script.
type Bundler interface {
	Bundle(ctx context.Context, req Request) ([]byte, error)
}

// ESBuild bundles with esbuild into an IIFE for the browser.
type ESBuild struct {
	minify bool
}

// NewESBuild returns the esbuild bundler.
func NewESBuild(minify bool) *ESBuild {
	return &ESBuild{minify: minify}
}

// Bundle implements Bundler.
func (b *ESBuild) Bundle(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := filepath.Abs(req.Entry)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", req.Entry, err)
	}

	out, err := filepath.Abs(req.Output)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", req.Output, err)
	}

	wd := filepath.Dir(entry)

	res := api.Build(api.BuildOptions{
		EntryPoints:       []string{entry},
		Outfile:           out,
		AbsWorkingDir:     wd,
		Bundle:            true,
		Write:             false,
		Format:            api.FormatIIFE,
		Platform:          api.PlatformBrowser,
		MinifyWhitespace:  b.minify,
		MinifyIdentifiers: b.minify,
		MinifySyntax:      b.minify,
		LogLevel:          api.LogLevelSilent,
	})

	if len(res.Errors) > 0 {
		return nil, bundleError(req.Entry, wd, res.Errors[0])
	}

	for _, f := range res.OutputFiles {
		if strings.EqualFold(filepath.Ext(f.Path), filepath.Ext(out)) {
			return f.Contents, nil
		}
	}

	if len(res.OutputFiles) > 0 {
		return res.OutputFiles[0].Contents, nil
	}

	return nil, &BundleError{Entry: req.Entry, Message: "esbuild produced no output"}
}

func bundleError(entry, wd string, msg api.Message) *BundleError {
	be := &BundleError{Entry: entry, File: entry, Message: msg.Text}

	if m := unresolvedRe.FindStringSubmatch(msg.Text); m != nil {
		be.Module = m[1]
	}

	if loc := msg.Location; loc != nil {
		be.File = loc.File
		if !filepath.IsAbs(be.File) {
			be.File = filepath.Join(wd, be.File)
		}

		be.Line = loc.Line
		be.Column = loc.Column + 1
	}

	return be
}

// IsBundleError reports whether err is or wraps a *BundleError.
func IsBundleError(err error) bool {
	var be *BundleError
	return errors.As(err, &be)
}

// Task is the bundle task.
type Task struct {
	Entry   string
	Output  string
	Bundler Bundler
	Writer  output.Writer

	// Report receives the size report of the written bundle. Optional.
	Report func(size.Report, output.Result)
}

// Run bundles Entry and writes Output. Nothing is written on failure.
func (t *Task) Run(ctx context.Context) error {
	data, err := t.Bundler.Bundle(ctx, Request{Entry: t.Entry, Output: t.Output})
	if err != nil {
		return err
	}

	result, err := t.Writer.Write(t.Output, data)
	if err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}

	report, err := size.Measure(filepath.Base(t.Output), data)
	if err != nil {
		return err
	}

	logging.FromContext(ctx).Info("bundle", slog.Any("file", report), slog.String("result", result.String()))

	if t.Report != nil {
		t.Report(report, result)
	}

	return nil
}
