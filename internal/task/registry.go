package task

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/hupe1980/assetpipe/internal/config"
)

// Registry maps task names to tasks.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	order []string
	sem   *semaphore.Weighted
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithParallel bounds the number of task actions executing at once.
// Values below one mean GOMAXPROCS.
func WithParallel(n int) RegistryOption {
	return func(r *Registry) {
		if n < 1 {
			n = runtime.GOMAXPROCS(0)
		}

		r.sem = semaphore.NewWeighted(int64(n))
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		tasks: make(map[string]*Task),
		sem:   semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0))),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a task. Every dependency must already be registered, which
// keeps the registry acyclic by construction.
func (r *Registry) Register(name string, deps []string, action Action, opts ...Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, err := r.newTask(name, deps, action, opts)
	if err != nil {
		return err
	}

	for _, dep := range t.Deps {
		if _, ok := r.tasks[dep]; !ok {
			return &config.ConfigurationError{Task: name, Reason: fmt.Sprintf("unknown dependency %q", dep)}
		}
	}

	r.add(t)

	return nil
}

// RegisterAll adds a batch of tasks that may reference each other in any
// order. The batch is rejected as a whole on unknown references or cycles.
func (r *Registry) RegisterAll(specs []Spec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	g := NewGraph()
	byName := make(map[string]*Task, len(specs))

	for _, s := range specs {
		t, err := r.newTask(s.Name, s.Deps, s.Action, s.Options)
		if err != nil {
			return err
		}

		if _, dup := byName[t.Name]; dup {
			return &config.ConfigurationError{Task: t.Name, Reason: "defined more than once"}
		}

		byName[t.Name] = t
		g.AddNode(t.Name)
	}

	for _, name := range g.Nodes() {
		for _, dep := range byName[name].Deps {
			switch {
			case g.Has(dep):
				g.AddEdge(name, dep)
			case r.tasks[dep] != nil:
				// Already registered outside the batch.
			default:
				return &config.ConfigurationError{Task: name, Reason: fmt.Sprintf("unknown dependency %q", dep)}
			}
		}
	}

	order, err := g.TopologicalSort()
	if err != nil {
		return &config.ConfigurationError{Reason: err.Error()}
	}

	for _, name := range order {
		r.add(byName[name])
	}

	return nil
}

// newTask validates the parts of a definition that do not depend on other
// tasks. The caller holds r.mu.
func (r *Registry) newTask(name string, deps []string, action Action, opts []Option) (*Task, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &config.ConfigurationError{Reason: "task name must not be empty"}
	}

	if action == nil {
		return nil, &config.ConfigurationError{Task: name, Reason: "task has no action"}
	}

	if _, exists := r.tasks[name]; exists {
		return nil, &config.ConfigurationError{Task: name, Reason: "already registered"}
	}

	t := &Task{Name: name, action: action}

	for _, dep := range deps {
		if dep == name {
			return nil, &config.ConfigurationError{Task: name, Reason: "depends on itself"}
		}

		if !slices.Contains(t.Deps, dep) {
			t.Deps = append(t.Deps, dep)
		}
	}

	for _, opt := range opts {
		opt(t)
	}

	return t, nil
}

func (r *Registry) add(t *Task) {
	r.tasks[t.Name] = t
	r.order = append(r.order, t.Name)
}

// Lookup returns the named task.
func (r *Registry) Lookup(name string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[name]

	return t, ok
}

// Tasks returns all tasks in registration order.
func (r *Registry) Tasks() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Task, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tasks[name])
	}

	return out
}

// Plan returns the transitive closure of names in execution order: every
// task after all of its dependencies. Unknown names are configuration
// errors.
func (r *Registry) Plan(names ...string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		return nil, &config.ConfigurationError{Reason: "no task given"}
	}

	var (
		order   []string
		visited = make(map[string]bool)
	)

	var visit func(name string) error
	visit = func(name string) error {
		if visited[name] {
			return nil
		}

		t, ok := r.tasks[name]
		if !ok {
			return &config.ConfigurationError{Task: name, Reason: "unknown task"}
		}

		visited[name] = true

		for _, dep := range t.Deps {
			if err := visit(dep); err != nil {
				return err
			}
		}

		order = append(order, name)

		return nil
	}

	for _, name := range names {
		if err := visit(name); err != nil {
			return nil, err
		}
	}

	return order, nil
}

// check runs the preconditions of every task in plan.
func (r *Registry) check(plan []string) error {
	for _, name := range plan {
		t, _ := r.Lookup(name)
		if t.precondition == nil {
			continue
		}

		if err := t.precondition(); err != nil {
			var cfgErr *config.ConfigurationError
			if errors.As(err, &cfgErr) && cfgErr.Task == "" {
				annotated := *cfgErr
				annotated.Task = name

				return &annotated
			}

			return &config.ConfigurationError{Task: name, Reason: "precondition failed", Err: err}
		}
	}

	return nil
}
