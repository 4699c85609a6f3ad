// Package watcher reports file changes under the served root directory.
//
// The server always reads files from disk per request, so the watcher is
// purely informational: it lets a developer see that a rebuilt bundle has
// landed in the root without restarting the server.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/omnigrid/internal/logging"
)

// DefaultDebounce groups the burst of writes a bundler produces into one batch.
const DefaultDebounce = 100 * time.Millisecond

// ChangeEvent represents a file change event.
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// EventType represents the type of file change.
type EventType int

const (
	EventTypeCreated EventType = iota
	EventTypeModified
	EventTypeDeleted
	EventTypeRenamed
)

func (e EventType) String() string {
	switch e {
	case EventTypeCreated:
		return "created"
	case EventTypeModified:
		return "modified"
	case EventTypeDeleted:
		return "deleted"
	case EventTypeRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// FileFilter reports whether a path should produce events.
type FileFilter func(path string) bool

// ChangeHandler receives a debounced batch of events.
type ChangeHandler func(events []ChangeEvent) error

// RootWatcher watches a root directory tree and delivers debounced batches
// of change events to its handlers.
type RootWatcher struct {
	root      string
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	logger    logging.Logger

	mu       sync.RWMutex
	filters  []FileFilter
	handlers []ChangeHandler
}

// New creates a watcher for every directory below root.
func New(root string, delay time.Duration, logger logging.Logger) (*RootWatcher, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", root)
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	rw := &RootWatcher{
		root:      root,
		watcher:   fsw,
		debouncer: newDebouncer(delay),
		logger:    logger.WithComponent("watcher"),
	}
	if err := rw.addRecursive(root); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return rw, nil
}

// AddFilter adds a filter. An event is delivered only if every filter accepts it.
func (rw *RootWatcher) AddFilter(filter FileFilter) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.filters = append(rw.filters, filter)
}

// AddHandler adds a change handler.
func (rw *RootWatcher) AddHandler(handler ChangeHandler) {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	rw.handlers = append(rw.handlers, handler)
}

// Watched returns the directories currently registered with fsnotify.
func (rw *RootWatcher) Watched() []string {
	list := rw.watcher.WatchList()
	sort.Strings(list)
	return list
}

func (rw *RootWatcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && !NoHiddenFilter(path) {
			return filepath.SkipDir
		}
		return rw.watcher.Add(path)
	})
}

// Start runs the watch loop until ctx is cancelled.
func (rw *RootWatcher) Start(ctx context.Context) {
	go rw.debouncer.run(ctx)
	go rw.processEvents(ctx)
	go rw.watchLoop(ctx)
}

// Stop releases the underlying fsnotify watcher.
func (rw *RootWatcher) Stop() error {
	rw.debouncer.stop()
	return rw.watcher.Close()
}

func (rw *RootWatcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			rw.handleFsnotifyEvent(ctx, event)
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.logger.Warn(ctx, err, "file watcher error")
		}
	}
}

func (rw *RootWatcher) handleFsnotifyEvent(ctx context.Context, event fsnotify.Event) {
	rw.mu.RLock()
	filters := rw.filters
	rw.mu.RUnlock()

	for _, filter := range filters {
		if !filter(event.Name) {
			return
		}
	}

	var modTime time.Time
	var size int64
	info, err := os.Stat(event.Name)
	if err == nil {
		modTime = info.ModTime()
		size = info.Size()
	}

	// New directories join the watch set so nested bundles are seen.
	if event.Has(fsnotify.Create) && err == nil && info.IsDir() {
		if addErr := rw.addRecursive(event.Name); addErr != nil {
			rw.logger.Warn(ctx, addErr, "failed to watch new directory", "path", event.Name)
		}
	}

	rw.debouncer.add(ChangeEvent{
		Type:    eventType(event.Op),
		Path:    event.Name,
		ModTime: modTime,
		Size:    size,
	})
}

func eventType(op fsnotify.Op) EventType {
	switch {
	case op.Has(fsnotify.Create):
		return EventTypeCreated
	case op.Has(fsnotify.Write):
		return EventTypeModified
	case op.Has(fsnotify.Remove):
		return EventTypeDeleted
	case op.Has(fsnotify.Rename):
		return EventTypeRenamed
	default:
		return EventTypeModified
	}
}

func (rw *RootWatcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-rw.debouncer.output:
			rw.mu.RLock()
			handlers := rw.handlers
			rw.mu.RUnlock()

			for _, handler := range handlers {
				if err := handler(events); err != nil {
					rw.logger.Warn(ctx, err, "file watcher handler error")
				}
			}
		}
	}
}

// LogHandler returns a handler that logs each change relative to root.
func (rw *RootWatcher) LogHandler(ctx context.Context) ChangeHandler {
	return func(events []ChangeEvent) error {
		for _, event := range events {
			rel, err := filepath.Rel(rw.root, event.Path)
			if err != nil {
				rel = event.Path
			}
			rw.logger.Info(ctx, "root changed",
				"event", event.Type.String(),
				"path", filepath.ToSlash(rel),
				"size", event.Size)
		}
		return nil
	}
}

// debouncer groups rapid file changes together, keeping the latest event per path.
type debouncer struct {
	delay   time.Duration
	events  chan ChangeEvent
	output  chan []ChangeEvent
	mu      sync.Mutex
	timer   *time.Timer
	pending []ChangeEvent
}

func newDebouncer(delay time.Duration) *debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &debouncer{
		delay:  delay,
		events: make(chan ChangeEvent, 100),
		output: make(chan []ChangeEvent, 10),
	}
}

func (d *debouncer) add(event ChangeEvent) {
	select {
	case d.events <- event:
	default:
	}
}

func (d *debouncer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.mu.Lock()
			d.pending = append(d.pending, event)
			if d.timer != nil {
				d.timer.Stop()
			}
			d.timer = time.AfterFunc(d.delay, d.flush)
			d.mu.Unlock()
		}
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		return
	}

	latest := make(map[string]ChangeEvent, len(d.pending))
	order := make([]string, 0, len(d.pending))
	for _, event := range d.pending {
		if _, seen := latest[event.Path]; !seen {
			order = append(order, event.Path)
		}
		latest[event.Path] = event
	}

	batch := make([]ChangeEvent, 0, len(order))
	for _, path := range order {
		batch = append(batch, latest[path])
	}

	select {
	case d.output <- batch:
	default:
	}

	d.pending = d.pending[:0]
}

// NoHiddenFilter rejects paths whose final element starts with a dot,
// such as editor swap files and .git.
func NoHiddenFilter(path string) bool {
	return !strings.HasPrefix(filepath.Base(path), ".")
}

// NoTempFilter rejects the temporary files editors and bundlers write before renaming.
func NoTempFilter(path string) bool {
	base := filepath.Base(path)
	return !strings.HasSuffix(base, "~") && !strings.HasSuffix(base, ".tmp") && !strings.HasSuffix(base, ".swp")
}
