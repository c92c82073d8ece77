// Package assetpipe provides a public Go API for running asset build tasks
// from a build descriptor, without the CLI.
//
// Basic usage:
//
//	if err := assetpipe.Run(ctx, "package.json", "scss", "bundle"); err != nil {
//	    log.Fatal(err)
//	}
//
// With options:
//
//	p, err := assetpipe.New(".assetpipe.yaml",
//	    assetpipe.WithMinify(),
//	    assetpipe.WithLogger(slog.Default()),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	err = p.Run(ctx, "bundle")
package assetpipe

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/hupe1980/assetpipe/internal/build"
	"github.com/hupe1980/assetpipe/internal/bundle"
	"github.com/hupe1980/assetpipe/internal/config"
	"github.com/hupe1980/assetpipe/internal/logging"
	"github.com/hupe1980/assetpipe/internal/style"
)

// Error types returned by Run.
type (
	// ConfigurationError reports a descriptor or task graph problem. It is
	// returned before any task runs.
	ConfigurationError = config.ConfigurationError

	// CompileError reports a stylesheet that failed to compile.
	CompileError = style.CompileError

	// BundleError reports a script that failed to bundle.
	BundleError = bundle.BundleError
)

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	stdout   io.Writer
	stderr   io.Writer
	dryRun   bool
	minify   bool
	parallel int
}

// WithLogger sets the logger. Default: discard.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithOutput sets the streams for shell task output, dry-run diffs and
// status lines. Default: discard.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(o *options) {
		o.stdout = stdout
		o.stderr = stderr
	}
}

// WithDryRun prints pending writes as unified diffs to stdout instead of
// writing them.
func WithDryRun() Option {
	return func(o *options) { o.dryRun = true }
}

// WithMinify minifies stylesheet and bundle output.
func WithMinify() Option {
	return func(o *options) { o.minify = true }
}

// WithParallel bounds the number of concurrently running tasks.
func WithParallel(n int) Option {
	return func(o *options) { o.parallel = n }
}

// Pipeline runs tasks of one descriptor.
type Pipeline struct {
	p      *build.Pipeline
	logger *slog.Logger
}

// New loads the descriptor at path and registers its tasks. An empty path
// searches the working directory for .assetpipe.yaml, .assetpipe.yml and
// package.json.
func New(path string, opts ...Option) (*Pipeline, error) {
	o := &options{
		logger: logging.Discard(),
		stdout: io.Discard,
		stderr: io.Discard,
	}

	for _, opt := range opts {
		opt(o)
	}

	cfg, err := config.Load(nil, path)
	if err != nil {
		return nil, err
	}

	cfg.DryRun = cfg.DryRun || o.dryRun
	cfg.Minify = cfg.Minify || o.minify

	if o.parallel > 0 {
		cfg.Parallel = o.parallel
	}

	p, err := build.New(cfg,
		build.WithStdio(o.stdout, o.stderr),
		build.WithStatus(logging.NewStatus(o.stderr, true)),
		build.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	return &Pipeline{p: p, logger: o.logger}, nil
}

// Run executes tasks and their dependencies; no tasks means "default".
func (p *Pipeline) Run(ctx context.Context, tasks ...string) error {
	return p.p.Run(logging.NewContext(ctx, p.logger), tasks...)
}

// Tasks returns the registered task names in registration order.
func (p *Pipeline) Tasks() []string {
	var names []string
	for _, t := range p.p.Registry().Tasks() {
		names = append(names, t.Name)
	}

	return names
}

// Close releases resources held by the stylesheet compiler.
func (p *Pipeline) Close() error {
	return p.p.Close()
}

// Run loads the descriptor at path and executes tasks with default options.
func Run(ctx context.Context, path string, tasks ...string) error {
	p, err := New(path)
	if err != nil {
		return err
	}

	return errors.Join(p.Run(ctx, tasks...), p.Close())
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError.
func IsConfigurationError(err error) bool {
	return config.IsConfigurationError(err)
}
