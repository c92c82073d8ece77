// Package build binds a loaded descriptor to the built-in tasks and the
// descriptor's shell tasks. Every task receives its collaborators here; there
// is no global registry.
package build

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"sort"

	"github.com/hupe1980/assetpipe/internal/bundle"
	"github.com/hupe1980/assetpipe/internal/config"
	"github.com/hupe1980/assetpipe/internal/globutil"
	"github.com/hupe1980/assetpipe/internal/logging"
	"github.com/hupe1980/assetpipe/internal/output"
	"github.com/hupe1980/assetpipe/internal/shell"
	"github.com/hupe1980/assetpipe/internal/size"
	"github.com/hupe1980/assetpipe/internal/style"
	"github.com/hupe1980/assetpipe/internal/task"
	"github.com/hupe1980/assetpipe/internal/watch"
)

// Built-in task names.
const (
	TaskSCSS    = "scss"
	TaskBundle  = "bundle"
	TaskWatch   = "watch"
	TaskDefault = "default"
)

var builtins = []string{TaskSCSS, TaskBundle, TaskWatch, TaskDefault}

// Pipeline is a registry populated from one descriptor.
type Pipeline struct {
	cfg      *config.Config
	registry *task.Registry

	stdout io.Writer
	stderr io.Writer
	status *logging.Status
	logger *slog.Logger
	writer output.Writer

	sass     style.Compiler
	css      style.Compiler
	bundler  bundle.Bundler
	dartSass *style.DartSass
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStdio sets the streams shell tasks and dry-run diffs write to.
func WithStdio(stdout, stderr io.Writer) Option {
	return func(p *Pipeline) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// WithStatus sets the printer for user-facing status lines.
func WithStatus(s *logging.Status) Option {
	return func(p *Pipeline) { p.status = s }
}

// WithLogger sets the logger used by the output writer.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithWriter replaces the file writer.
func WithWriter(w output.Writer) Option {
	return func(p *Pipeline) { p.writer = w }
}

// WithSassCompiler replaces the dart-sass compiler.
func WithSassCompiler(c style.Compiler) Option {
	return func(p *Pipeline) { p.sass = c }
}

// WithBundler replaces the esbuild bundler.
func WithBundler(b bundle.Bundler) Option {
	return func(p *Pipeline) { p.bundler = b }
}

// New registers the built-in tasks and the descriptor's shell tasks.
func New(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		cfg:    cfg,
		stdout: os.Stdout,
		stderr: os.Stderr,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.stdout, p.stderr = output.SyncWriters(p.stdout, p.stderr)

	if p.status == nil {
		p.status = logging.NewStatus(p.stderr, cfg.NoColor)
	}

	if p.writer == nil {
		wopts := []output.FileWriterOption{output.WithLogger(p.logger)}
		if cfg.DryRun {
			wopts = append(wopts, output.WithDryRun(p.stdout))
		}

		p.writer = output.NewFileWriter(wopts...)
	}

	if p.sass == nil {
		p.dartSass = style.NewDartSass(cfg.SassBinary)
		p.sass = p.dartSass
	}

	p.css = style.NewESBuild()

	if p.bundler == nil {
		p.bundler = bundle.NewESBuild(cfg.Minify)
	}

	targets, err := config.ParseTargets(cfg.Targets)
	if err != nil {
		return nil, err
	}

	p.registry = task.NewRegistry(task.WithParallel(cfg.EffectiveParallel()))

	if err := p.registerBuiltins(style.NewPrefixer(targets, cfg.Minify)); err != nil {
		return nil, err
	}

	if err := p.registerShellTasks(); err != nil {
		return nil, err
	}

	if err := p.checkWatchRules(); err != nil {
		return nil, err
	}

	return p, nil
}

// Registry returns the populated task registry.
func (p *Pipeline) Registry() *task.Registry { return p.registry }

// Run executes the named tasks, or the default task when none are given.
// Names are matched case-insensitively.
func (p *Pipeline) Run(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return p.registry.Run(ctx, TaskDefault)
	}

	canonical := make([]string, len(names))
	for i, name := range names {
		canonical[i] = config.TaskName(name)
	}

	return p.registry.Run(ctx, canonical...)
}

// Close releases the sass process, if one was started.
func (p *Pipeline) Close() error {
	if p.dartSass == nil {
		return nil
	}

	return p.dartSass.Close()
}

func (p *Pipeline) registerBuiltins(prefixer style.Prefixer) error {
	cfg := p.cfg

	stylesheet := &style.Stylesheet{
		Source:       cfg.StylesheetSource(),
		Output:       cfg.StylesheetOutput(),
		IncludePaths: cfg.PathList(cfg.Paths.SCSS),
		Extra:        cfg.Path(cfg.Globs.DistCSS),
		Compiler:     style.Select(cfg.Compiler, cfg.StylesheetSource(), p.sass, p.css),
		Prefixer:     prefixer,
		Writer:       p.writer,
		Report:       p.report,
	}

	err := p.registry.Register(TaskSCSS, nil, stylesheet.Run,
		task.WithDescription("compile, prefix and write the stylesheet"),
		task.WithPrecondition(func() error {
			if err := cfg.Require(config.KeyPathsSrcSCSS, config.KeyVarsSCSSName, config.KeyPathsDistCSS); err != nil {
				return err
			}

			return p.checkSassBinary(stylesheet.Compiler)
		}),
	)
	if err != nil {
		return err
	}

	bundler := &bundle.Task{
		Entry:   cfg.Path(cfg.Main),
		Output:  cfg.BundleOutput(),
		Bundler: p.bundler,
		Writer:  p.writer,
		Report:  p.report,
	}

	err = p.registry.Register(TaskBundle, nil, bundler.Run,
		task.WithDescription("bundle the main script"),
		task.WithPrecondition(func() error {
			return cfg.Require(config.KeyMain, config.KeyPathsDistJS)
		}),
	)
	if err != nil {
		return err
	}

	if err := p.registry.Register(TaskWatch, nil, p.watch,
		task.WithDescription("re-run tasks when their sources change"),
		task.WithPrecondition(p.checkWatchable)); err != nil {
		return err
	}

	return p.registry.Register(TaskDefault, []string{TaskSCSS, TaskBundle}, p.watch,
		task.WithDescription("build stylesheet and bundle, then watch"),
		task.WithPrecondition(p.checkWatchable))
}

// checkWatchable fails when there is nothing to watch, which would leave the
// loop blocked forever.
func (p *Pipeline) checkWatchable() error {
	if len(p.cfg.WatchRules()) == 0 {
		return &config.ConfigurationError{
			Field:  "watch",
			Reason: "no subscriptions; set paths.src.scss, paths.src.js or watch",
		}
	}

	return nil
}

func (p *Pipeline) registerShellTasks() error {
	if len(p.cfg.Tasks) == 0 {
		return nil
	}

	runner := shell.NewRunner(
		shell.WithDir(p.cfg.BaseDir),
		shell.WithStdio(p.stdout, p.stderr),
		shell.WithEnv("ASSETPIPE_CONFIG="+p.cfg.ConfigFile),
	)

	names := make([]string, 0, len(p.cfg.Tasks))
	for name := range p.cfg.Tasks {
		names = append(names, name)
	}

	sort.Strings(names)

	specs := make([]task.Spec, 0, len(names))

	for _, name := range names {
		def := p.cfg.Tasks[name]

		if isBuiltin(name) {
			return &config.ConfigurationError{Task: name, Reason: "shadows a built-in task"}
		}

		if err := shell.Parse(name, def.Run); err != nil {
			return &config.ConfigurationError{Task: name, Reason: "invalid run script", Err: err}
		}

		script := def.Run

		specs = append(specs, task.Spec{
			Name: name,
			Deps: def.Deps,
			Action: func(ctx context.Context) error {
				if script == "" {
					return nil
				}

				return runner.Run(ctx, name, script)
			},
			Options: []task.Option{task.WithDescription(def.Description)},
		})
	}

	return p.registry.RegisterAll(specs)
}

// checkWatchRules rejects watch subscriptions with an invalid pattern or
// an unknown task.
func (p *Pipeline) checkWatchRules() error {
	for i, rule := range p.cfg.WatchRules() {
		if _, err := globutil.Compile(p.cfg.Path(rule.Pattern)); err != nil {
			return &config.ConfigurationError{
				Field:  fmt.Sprintf("watch[%d].pattern", i),
				Reason: "invalid glob",
				Err:    err,
			}
		}

		for _, name := range rule.Tasks {
			if _, ok := p.registry.Lookup(name); !ok {
				return &config.ConfigurationError{
					Field:  fmt.Sprintf("watch[%d].tasks", i),
					Reason: fmt.Sprintf("unknown task %q", name),
				}
			}
		}
	}

	return nil
}

// checkSassBinary fails early when the stylesheet needs dart-sass and no
// executable can be found.
func (p *Pipeline) checkSassBinary(c style.Compiler) error {
	if p.dartSass == nil || c != style.Compiler(p.dartSass) {
		return nil
	}

	bin := p.cfg.SassBinary
	if bin == "" {
		bin = "sass"
	}

	if _, err := exec.LookPath(bin); err != nil {
		return &config.ConfigurationError{Field: "sass-binary", Reason: "dart-sass executable not found", Err: err}
	}

	return nil
}

func (p *Pipeline) watch(ctx context.Context) error {
	rules := p.cfg.WatchRules()
	subs := make([]watch.Subscription, 0, len(rules))

	for _, rule := range rules {
		subs = append(subs, watch.Subscription{Pattern: p.cfg.Path(rule.Pattern), Tasks: rule.Tasks})
	}

	return watch.Run(ctx, watch.Options{
		Subscriptions: subs,
		Debounce:      p.cfg.Debounce,
		Logger:        logging.FromContext(ctx),
		Status:        p.status,
	}, p.registry.Invoke)
}

func (p *Pipeline) report(r size.Report, result output.Result) {
	p.status.Printf("%s [dim]%s", r.String(), result.String())
}

func isBuiltin(name string) bool {
	return slices.Contains(builtins, name)
}
