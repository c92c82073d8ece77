package task

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/assetpipe/internal/config"
	"github.com/hupe1980/assetpipe/internal/logging"
)

// call is the once-per-run execution of a single task. Waiters block on done
// and share err.
type call struct {
	done chan struct{}
	err  error
}

// run tracks the tasks started by one Run invocation.
type run struct {
	mu    sync.Mutex
	calls map[string]*call
}

// DependencyError reports that a task did not run because a dependency
// failed.
type DependencyError struct {
	Task string
	Dep  string
	Err  error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("task %q failed due to its dependency %q: %v", e.Task, e.Dep, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// Run executes the named tasks and their transitive dependencies. All names
// and preconditions are checked before any action starts; each task in the
// closure runs at most once.
func (r *Registry) Run(ctx context.Context, names ...string) error {
	plan, err := r.Plan(names...)
	if err != nil {
		return err
	}

	if err := r.check(plan); err != nil {
		return err
	}

	logging.FromContext(ctx).Debug("execution plan", slog.Any("tasks", plan))

	st := &run{calls: make(map[string]*call)}

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range names {
		g.Go(func() error {
			return r.execute(gctx, st, name)
		})
	}

	return g.Wait()
}

// Invoke runs only the named task's action, without its dependencies. The
// watch loop uses it to re-run the task a change belongs to. Invoke does not
// take an action slot, so it can be called from within a running action.
func (r *Registry) Invoke(ctx context.Context, name string) error {
	t, ok := r.Lookup(name)
	if !ok {
		return &config.ConfigurationError{Task: name, Reason: "unknown task"}
	}

	if err := r.check([]string{name}); err != nil {
		return err
	}

	return r.perform(ctx, t)
}

func (r *Registry) execute(ctx context.Context, st *run, name string) error {
	st.mu.Lock()
	if c, ok := st.calls[name]; ok {
		st.mu.Unlock()

		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	c := &call{done: make(chan struct{})}
	st.calls[name] = c
	st.mu.Unlock()

	t, _ := r.Lookup(name)
	c.err = r.runTask(ctx, st, t)
	close(c.done)

	return c.err
}

func (r *Registry) runTask(ctx context.Context, st *run, t *Task) error {
	if len(t.Deps) > 0 {
		g, gctx := errgroup.WithContext(ctx)

		for _, dep := range t.Deps {
			g.Go(func() error {
				if err := r.execute(gctx, st, dep); err != nil {
					return &DependencyError{Task: t.Name, Dep: dep, Err: err}
				}

				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return err
		}
	}

	if err := r.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer r.sem.Release(1)

	return r.perform(ctx, t)
}

// perform runs the action of t with a task-scoped logger.
func (r *Registry) perform(ctx context.Context, t *Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ctx = logging.WithTask(ctx, t.Name)
	logger := logging.FromContext(ctx)

	logger.Info("starting task")

	start := time.Now()

	if err := t.action(ctx); err != nil {
		logger.Error("task failed", slog.Duration("duration", time.Since(start)), slog.String("error", err.Error()))
		return err
	}

	logger.Info("finished task", slog.Duration("duration", time.Since(start)))

	return nil
}
