// Package task implements the task registry: named units of build work that
// form a dependency DAG. The graph is validated when tasks are registered, so
// running a task never discovers unknown references or cycles.
//
// A run executes every transitive dependency of the requested tasks exactly
// once, in dependency order. Independent dependencies run concurrently.
package task

import (
	"context"
)

// Action is the work a task performs.
type Action func(ctx context.Context) error

// Task is a registered unit of work.
type Task struct {
	// Name identifies the task.
	Name string

	// Deps are the tasks that must complete before this one, in declaration
	// order.
	Deps []string

	// Description is shown by the tasks listing.
	Description string

	action       Action
	precondition func() error
}

// Option configures a task at registration.
type Option func(*Task)

// WithDescription sets the human-readable description.
func WithDescription(desc string) Option {
	return func(t *Task) {
		t.Description = desc
	}
}

// WithPrecondition sets a check that runs before any action of a run that
// includes the task. A failing check aborts the run as a configuration error.
func WithPrecondition(fn func() error) Option {
	return func(t *Task) {
		t.precondition = fn
	}
}

// Spec describes a task for RegisterAll.
type Spec struct {
	Name    string
	Deps    []string
	Action  Action
	Options []Option
}
