// Package watcher re-runs governance checks when the specification,
// allowlist, or ignore files change on disk.
package watcher

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/rideflow/apigovern/internal/config"
	"github.com/rideflow/apigovern/internal/logger"
)

var log = logger.ForComponent("watcher")

// Watcher observes a fixed set of governance input files. fsnotify watches
// their parent directories because atomic rename-replace (how this tool and
// most editors write) drops watches that were placed on the file itself.
type Watcher struct {
	cfg       config.WatchConfig
	files     map[string]bool
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	onChange  func([]FileEvent)

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
}

func New(cfg config.WatchConfig, files []string, onChange func([]FileEvent)) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	watched := make(map[string]bool, len(files))
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			abs = f
		}
		watched[abs] = true
	}

	w := &Watcher{
		cfg:       cfg,
		files:     watched,
		fsWatcher: fsWatcher,
		onChange:  onChange,
	}
	w.debouncer = NewDebouncer(cfg.DebounceWindow, cfg.MaxBatchSize, w.flush)
	return w, nil
}

func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	dirs := make(map[string]bool)
	for file := range w.files {
		dirs[filepath.Dir(file)] = true
	}
	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			log.Warn("cannot watch directory", "dir", dir, "error", err)
			continue
		}
		log.Debug("watching directory", "dir", dir)
	}

	go w.loop(ctx)
	return nil
}

func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	w.cancel()
	w.debouncer.Stop()
	w.fsWatcher.Close()
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		abs = event.Name
	}
	if !w.files[abs] {
		return
	}
	rel := filepath.ToSlash(event.Name)
	for _, pattern := range w.cfg.IgnorePatterns {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return
		}
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return
	}
	w.debouncer.Add(FileEvent{Path: abs, Op: event.Op.String()})
}

func (w *Watcher) flush(events []FileEvent) {
	if w.onChange != nil {
		w.onChange(events)
	}
}
