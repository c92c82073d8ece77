package style

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bep/godartsass/v2"
)

// DartSass compiles SCSS and Sass through the embedded dart-sass protocol.
// The sass process is started on first use and shared by later compilations.
type DartSass struct {
	binary string

	mu         sync.Mutex
	transpiler *godartsass.Transpiler
}

// NewDartSass returns a compiler that runs binary, or "sass" from PATH when
// binary is empty.
func NewDartSass(binary string) *DartSass {
	return &DartSass{binary: binary}
}

func (d *DartSass) start() (*godartsass.Transpiler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.transpiler != nil {
		return d.transpiler, nil
	}

	t, err := godartsass.Start(godartsass.Options{DartSassEmbeddedFilename: d.binary})
	if err != nil {
		return nil, fmt.Errorf("starting dart-sass: %w", err)
	}

	d.transpiler = t

	return t, nil
}

// Compile implements Compiler.
func (d *DartSass) Compile(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := filepath.Abs(req.Source)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", req.Source, err)
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return nil, &CompileError{File: src, Message: "cannot read source", Err: err}
	}

	t, err := d.start()
	if err != nil {
		return nil, err
	}

	res, err := t.Execute(godartsass.Args{
		Source:       string(data),
		URL:          fileURL(src),
		IncludePaths: append([]string{filepath.Dir(src)}, req.IncludePaths...),
		OutputStyle:  godartsass.OutputStyleExpanded,
		SourceSyntax: sourceSyntax(src),
	})
	if err != nil {
		var sassErr godartsass.SassError
		if errors.As(err, &sassErr) {
			return nil, sassCompileError(sassErr, src, data)
		}

		return nil, &CompileError{File: src, Message: err.Error(), Err: err}
	}

	return []byte(res.CSS), nil
}

// sassCompileError locates a dart-sass failure. The span carries a byte
// offset but no line, so the line is counted from the file contents; data is
// used when the span points at the entry file.
func sassCompileError(sassErr godartsass.SassError, entry string, data []byte) *CompileError {
	file := pathFromURL(sassErr.Span.Url)
	if file == "" {
		file = entry
	}

	content := data
	if file != entry {
		if b, err := os.ReadFile(file); err == nil {
			content = b
		} else {
			content = nil
		}
	}

	cerr := &CompileError{File: file, Message: sassErr.Message, Err: sassErr}

	if content != nil {
		cerr.Line = lineAt(content, sassErr.Span.Start.Offset)
		cerr.Column = sassErr.Span.Start.Column + 1
	}

	return cerr
}

// lineAt returns the 1-based line containing byte offset.
func lineAt(content []byte, offset int) int {
	offset = min(max(offset, 0), len(content))

	return bytes.Count(content[:offset], []byte{'\n'}) + 1
}

// Close stops the sass process, if one was started.
func (d *DartSass) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.transpiler == nil {
		return nil
	}

	err := d.transpiler.Close()
	d.transpiler = nil

	return err
}

func sourceSyntax(path string) godartsass.SourceSyntax {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".sass":
		return godartsass.SourceSyntaxSASS
	case ".css":
		return godartsass.SourceSyntaxCSS
	}

	return godartsass.SourceSyntaxSCSS
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}

func pathFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "file" {
		return raw
	}

	return filepath.FromSlash(u.Path)
}
