package config

import "fmt"

// ConfigurationError reports a missing or invalid descriptor field, an
// unknown task reference or an invalid task graph. It is fatal: no task runs
// once one has been returned.
type ConfigurationError struct {
	// Field names the offending descriptor key(s), if any.
	Field string

	// Task names the offending task, if any.
	Task string

	// Reason describes what is wrong.
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

func (e *ConfigurationError) Error() string {
	msg := e.Reason

	switch {
	case e.Task != "" && e.Field != "":
		msg = fmt.Sprintf("task %q: %s: %s", e.Task, e.Field, e.Reason)
	case e.Task != "":
		msg = fmt.Sprintf("task %q: %s", e.Task, e.Reason)
	case e.Field != "":
		msg = fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}

	if e.Err != nil {
		return fmt.Sprintf("configuration error: %s: %v", msg, e.Err)
	}

	return "configuration error: " + msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
