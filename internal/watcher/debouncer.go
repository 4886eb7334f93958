package watcher

import (
	"sort"
	"sync"
	"time"
)

// FileEvent is one debounced change to a governance input file.
type FileEvent struct {
	Path string
	Op   string
}

// Debouncer coalesces bursts of filesystem events into one flush per
// settled window. Editors write, rename and chmod in quick succession;
// a governance rerun only cares that the file changed, so repeated
// events on the same path collapse to the latest one. The batch cap
// bounds latency when events never settle.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	cap     int
	pending map[string]FileEvent
	timer   *time.Timer
	onFlush func([]FileEvent)
	closed  bool
}

func NewDebouncer(window time.Duration, cap int, onFlush func([]FileEvent)) *Debouncer {
	return &Debouncer{
		window:  window,
		cap:     cap,
		pending: make(map[string]FileEvent),
		onFlush: onFlush,
	}
}

// Add records an event and restarts the settle timer. When the number of
// distinct changed paths reaches the cap the batch flushes immediately.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}

	d.pending[event.Path] = event
	if len(d.pending) >= d.cap {
		d.flushAndUnlock()
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
	d.mu.Unlock()
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.flushAndUnlock()
}

// Stop flushes anything still pending and rejects further events.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.flushAndUnlock()
}

// flushAndUnlock hands the drained batch to the callback outside the lock
// so a slow governance rerun never blocks event intake.
func (d *Debouncer) flushAndUnlock() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}

	batch := make([]FileEvent, 0, len(d.pending))
	for _, event := range d.pending {
		batch = append(batch, event)
	}
	d.pending = make(map[string]FileEvent)
	d.mu.Unlock()

	if len(batch) == 0 || d.onFlush == nil {
		return
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].Path < batch[j].Path })
	d.onFlush(batch)
}
