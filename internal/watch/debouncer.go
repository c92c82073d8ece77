package watch

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Debouncer batches bursts of change events. Once no event has arrived for
// the configured interval, the callback fires with every distinct path seen
// in the burst, sorted.
type Debouncer struct {
	interval time.Duration
	logger   *slog.Logger
	callback func(paths []string)

	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
}

// NewDebouncer creates a debouncer. A panicking callback is logged to logger
// and does not bring down the watch loop.
func NewDebouncer(interval time.Duration, logger *slog.Logger, callback func(paths []string)) *Debouncer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Debouncer{
		interval: interval,
		logger:   logger,
		callback: callback,
		pending:  make(map[string]struct{}),
	}
}

// Trigger records a change of path and restarts the quiet period.
func (d *Debouncer) Trigger(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[path] = struct{}{}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.interval, d.fire)
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	paths := make([]string, 0, len(d.pending))
	for p := range d.pending {
		paths = append(paths, p)
	}
	clear(d.pending)
	d.mu.Unlock()

	if len(paths) == 0 {
		return
	}

	slices.Sort(paths)

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("watch callback panicked", slog.Any("error", r), slog.Any("paths", paths))
		}
	}()

	d.callback(paths)
}

// Stop cancels a pending callback and drops the batched paths.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	clear(d.pending)
}
