package watch

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hupe1980/assetpipe/internal/config"
	"github.com/hupe1980/assetpipe/internal/globutil"
	"github.com/hupe1980/assetpipe/internal/logging"
)

// InvokeFunc runs a single task by name.
type InvokeFunc func(ctx context.Context, task string) error

// Subscription maps a glob to the tasks a matching change triggers.
type Subscription struct {
	Pattern string
	Tasks   []string
}

// Options configures the watch behaviour.
type Options struct {
	Subscriptions []Subscription

	// Debounce is the quiet period before triggering the tasks.
	Debounce time.Duration

	// Logger is used for structured logging.
	Logger *slog.Logger

	// Status receives user-facing status lines.
	Status *logging.Status
}

// DefaultOptions returns sensible default watch options.
func DefaultOptions() Options {
	return Options{
		Debounce: 200 * time.Millisecond,
		Logger:   slog.Default(),
		Status:   logging.NewStatus(os.Stderr, false),
	}
}

// subscription is a compiled Subscription with its own debouncer.
type subscription struct {
	pattern   *globutil.Pattern
	tasks     []string
	debouncer *Debouncer
}

// loop serialises task invocations across subscriptions.
type loop struct {
	mu     sync.Mutex
	closed bool
	opts   Options
	invoke InvokeFunc
}

// Run watches every subscription and blocks until the context is cancelled
// or a SIGINT/SIGTERM signal is received. Task failures are reported and
// the loop keeps running.
func Run(ctx context.Context, opts Options, invoke InvokeFunc) error {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	if opts.Status == nil {
		opts.Status = logging.NewStatus(io.Discard, true)
	}

	subs := make([]*subscription, 0, len(opts.Subscriptions))

	for i, s := range opts.Subscriptions {
		p, err := globutil.Compile(s.Pattern)
		if err != nil {
			return &config.ConfigurationError{Field: fmt.Sprintf("watch[%d].pattern", i), Reason: "invalid glob", Err: err}
		}

		subs = append(subs, &subscription{pattern: p, tasks: s.Tasks})
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	seen := make(map[string]bool)

	for _, s := range subs {
		base := s.pattern.Base()
		if seen[base] {
			continue
		}

		seen[base] = true

		if err := addRecursive(watcher, base); err != nil {
			return fmt.Errorf("watching %s: %w", base, err)
		}
	}

	// Trap SIGINT / SIGTERM for graceful shutdown.
	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := &loop{opts: opts, invoke: invoke}

	for _, s := range subs {
		s.debouncer = NewDebouncer(opts.Debounce, opts.Logger, func(paths []string) {
			l.trigger(sigCtx, paths, s.tasks)
		})
	}

	defer l.close(subs)

	for _, s := range subs {
		opts.Logger.Info("watching", slog.String("pattern", s.pattern.String()), slog.Any("tasks", s.tasks))
	}

	opts.Status.Printf("watching %d pattern(s) (debounce=%s)", len(subs), opts.Debounce)

	for {
		select {
		case <-sigCtx.Done():
			opts.Status.Printf("shutting down watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if !isRelevant(event) {
				continue
			}

			// If a new directory was created, watch it too.
			if event.Has(fsnotify.Create) {
				if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
					_ = addRecursive(watcher, event.Name)
				}
			}

			for _, s := range subs {
				if s.pattern.Match(event.Name) {
					opts.Logger.Debug("change detected", slog.String("path", event.Name), slog.String("op", event.Op.String()))
					s.debouncer.Trigger(event.Name)
				}
			}

		case watchErr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			opts.Logger.Error("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// trigger invokes tasks in order for a debounced batch of changed paths.
func (l *loop) trigger(ctx context.Context, paths []string, tasks []string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed || ctx.Err() != nil {
		return
	}

	subject := changeSubject(paths)

	for _, name := range tasks {
		start := time.Now()

		if err := l.invoke(ctx, name); err != nil {
			l.opts.Logger.Error("watch task failed", slog.String("task", name), slog.Any("paths", paths), slog.String("error", err.Error()))
			l.opts.Status.Fail(subject+" → "+name, err)

			return
		}

		l.opts.Status.OK(subject+" → "+name, time.Since(start).Round(time.Millisecond).String())
	}
}

// changeSubject names a batch of changes for status lines.
func changeSubject(paths []string) string {
	subject := filepath.Base(paths[0])
	if len(paths) > 1 {
		subject += fmt.Sprintf(" (+%d)", len(paths)-1)
	}

	return subject
}

// close stops all debouncers and waits for a running invocation.
func (l *loop) close(subs []*subscription) {
	for _, s := range subs {
		s.debouncer.Stop()
	}

	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
}

// addRecursive walks root and adds all directories to the watcher.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			// Skip hidden directories (e.g., .git) and installed packages.
			if path != root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules") {
				return filepath.SkipDir
			}

			return watcher.Add(path)
		}

		return nil
	})
}

// isRelevant filters out metadata-only events and editor noise.
func isRelevant(event fsnotify.Event) bool {
	if event.Op == 0 {
		return false
	}

	// Only care about write, create, remove, rename.
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}

	name := filepath.Base(event.Name)

	// Ignore editor temporary files and hidden files.
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~") ||
		strings.HasSuffix(name, ".swp") || strings.HasPrefix(name, "#") {
		return false
	}

	return true
}
