package style

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hupe1980/assetpipe/internal/globutil"
	"github.com/hupe1980/assetpipe/internal/logging"
	"github.com/hupe1980/assetpipe/internal/output"
	"github.com/hupe1980/assetpipe/internal/size"
)

// Stylesheet is the stylesheet task.
type Stylesheet struct {
	// Source is the entry stylesheet.
	Source string

	// Output is where the compiled and prefixed CSS is written.
	Output string

	// IncludePaths are passed to the compiler.
	IncludePaths []string

	// Extra is an optional glob of built CSS files that are prefixed and
	// rewritten together with Output.
	Extra string

	Compiler Compiler
	Prefixer Prefixer
	Writer   output.Writer

	// Report receives a size report for every file written. Optional.
	Report func(size.Report, output.Result)
}

type artifact struct {
	path string
	data []byte
}

// Run compiles, prefixes and writes. Every artifact is produced before the
// first write so a failure leaves the destination untouched.
func (s *Stylesheet) Run(ctx context.Context) error {
	logger := logging.FromContext(ctx)

	css, err := s.Compiler.Compile(ctx, Request{
		Source:       s.Source,
		Output:       s.Output,
		IncludePaths: s.IncludePaths,
	})
	if err != nil {
		return err
	}

	prefixed, err := s.Prefixer.Prefix(ctx, s.Output, css)
	if err != nil {
		return err
	}

	artifacts := []artifact{{path: s.Output, data: prefixed}}

	extras, err := s.extras()
	if err != nil {
		return err
	}

	for _, path := range extras {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		out, err := s.Prefixer.Prefix(ctx, path, data)
		if err != nil {
			return err
		}

		artifacts = append(artifacts, artifact{path: path, data: out})
	}

	for _, a := range artifacts {
		result, err := s.Writer.Write(a.path, a.data)
		if err != nil {
			return fmt.Errorf("writing stylesheet: %w", err)
		}

		report, err := size.Measure(filepath.Base(a.path), a.data)
		if err != nil {
			return err
		}

		logger.Info("stylesheet", slog.Any("file", report), slog.String("result", result.String()))

		if s.Report != nil {
			s.Report(report, result)
		}
	}

	return nil
}

// extras returns the Extra matches other than Output.
func (s *Stylesheet) extras() ([]string, error) {
	if s.Extra == "" {
		return nil, nil
	}

	pattern, err := globutil.Compile(s.Extra)
	if err != nil {
		return nil, err
	}

	matches, err := pattern.Expand()
	if err != nil {
		return nil, err
	}

	self, err := filepath.Abs(s.Output)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", s.Output, err)
	}

	out := matches[:0]

	for _, m := range matches {
		abs, err := filepath.Abs(m)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", m, err)
		}

		if abs != self {
			out = append(out, m)
		}
	}

	return out, nil
}
