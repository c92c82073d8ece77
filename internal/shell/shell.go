// Package shell runs user-defined task scripts through an embedded POSIX
// shell, so descriptor tasks behave the same on every platform.
package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/hupe1980/assetpipe/internal/output"
)

// ExitError reports a script that exited with a non-zero status.
type ExitError struct {
	Task   string
	Status uint8
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("task %q: script exited with status %d", e.Task, e.Status)
}

// Runner executes scripts in a fixed directory and environment.
type Runner struct {
	dir    string
	env    []string
	stdout io.Writer
	stderr io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithDir sets the working directory. Default: the process working directory.
func WithDir(dir string) Option {
	return func(r *Runner) { r.dir = dir }
}

// WithEnv appends KEY=value pairs to the inherited environment.
func WithEnv(pairs ...string) Option {
	return func(r *Runner) { r.env = append(r.env, pairs...) }
}

// WithStdio sets the script's output streams.
func WithStdio(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// NewRunner creates a Runner that inherits the process environment.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		env:    os.Environ(),
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	for _, opt := range opts {
		opt(r)
	}

	// External commands in a pipeline copy into these concurrently.
	r.stdout, r.stderr = output.SyncWriters(r.stdout, r.stderr)

	return r
}

// Parse checks script for syntax errors without running it.
func Parse(name, script string) error {
	if _, err := syntax.NewParser().Parse(strings.NewReader(script), name); err != nil {
		return fmt.Errorf("parsing script of task %q: %w", name, err)
	}

	return nil
}

// Run executes script on behalf of task. Cancelling ctx stops the script.
func (r *Runner) Run(ctx context.Context, task, script string) error {
	file, err := syntax.NewParser().Parse(strings.NewReader(script), task)
	if err != nil {
		return fmt.Errorf("parsing script of task %q: %w", task, err)
	}

	opts := []interp.RunnerOption{
		interp.StdIO(nil, r.stdout, r.stderr),
		interp.Env(expand.ListEnviron(r.env...)),
		interp.Params("-e"),
	}

	if r.dir != "" {
		opts = append(opts, interp.Dir(r.dir))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return fmt.Errorf("creating shell for task %q: %w", task, err)
	}

	if err := runner.Run(ctx, file); err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			return &ExitError{Task: task, Status: uint8(status)}
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		return fmt.Errorf("running task %q: %w", task, err)
	}

	return nil
}
