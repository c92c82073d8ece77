// Package watch re-runs tasks when their source files change. Each
// subscription pairs a glob with the tasks it triggers; the glob's static
// base directory is watched recursively, bursts of events are debounced per
// subscription, and the tasks are invoked by name one at a time.
package watch
