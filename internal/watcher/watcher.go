// Package watcher observes sketch document files on disk and delivers
// debounced change batches, so an edit in an external editor re-solves
// the sketch once rather than once per write syscall.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/conneroisu/sketchcad/internal/logging"
)

// EventType represents the type of file change.
type EventType int

const (
	EventCreated EventType = iota
	EventModified
	EventDeleted
	EventRenamed
)

// String returns the string representation of the EventType.
func (e EventType) String() string {
	switch e {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	case EventRenamed:
		return "renamed"
	default:
		return "unknown"
	}
}

// ChangeEvent is one observed file change.
type ChangeEvent struct {
	Type    EventType
	Path    string
	ModTime time.Time
	Size    int64
}

// Filter reports whether a path is interesting.
type Filter func(path string) bool

// Handler receives a debounced batch of change events.
type Handler func(events []ChangeEvent) error

// Watcher delivers debounced document change batches to its handlers.
type Watcher struct {
	fs        *fsnotify.Watcher
	debouncer *debouncer
	log       logging.Logger

	mu       sync.RWMutex
	filters  []Filter
	handlers []Handler
}

// New creates a watcher with the given debounce window.
func New(debounce time.Duration, log logging.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		fs: fs,
		debouncer: &debouncer{
			delay:  debounce,
			events: make(chan ChangeEvent, 100),
			output: make(chan []ChangeEvent, 10),
		},
		log: log.WithComponent("watcher"),
	}, nil
}

// AddFilter adds a path filter. All filters must accept a path for its
// events to pass through.
func (w *Watcher) AddFilter(f Filter) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.filters = append(w.filters, f)
}

// AddHandler registers a change handler.
func (w *Watcher) AddHandler(h Handler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, h)
}

// AddPath watches a file or directory. Watching a file actually
// watches its directory: editors that save via rename would otherwise
// silently detach the watch.
func (w *Watcher) AddPath(path string) error {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	return w.fs.Add(abs)
}

// Start launches the watch loops. They run until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) {
	go w.debouncer.run(ctx)
	go w.dispatch(ctx)
	go w.watch(ctx)
}

// Stop closes the underlying fsnotify watcher.
func (w *Watcher) Stop() error {
	w.debouncer.stop()
	return w.fs.Close()
}

func (w *Watcher) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn(ctx, err, "watch error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	w.mu.RLock()
	filters := w.filters
	w.mu.RUnlock()
	for _, f := range filters {
		if !f(ev.Name) {
			return
		}
	}

	ce := ChangeEvent{Path: ev.Name}
	switch {
	case ev.Op.Has(fsnotify.Create):
		ce.Type = EventCreated
	case ev.Op.Has(fsnotify.Write):
		ce.Type = EventModified
	case ev.Op.Has(fsnotify.Remove):
		ce.Type = EventDeleted
	case ev.Op.Has(fsnotify.Rename):
		ce.Type = EventRenamed
	default:
		ce.Type = EventModified
	}
	if info, err := os.Stat(ev.Name); err == nil {
		ce.ModTime = info.ModTime()
		ce.Size = info.Size()
	}

	select {
	case w.debouncer.events <- ce:
	default:
		// Queue full; the batch already pending covers this path.
	}
}

func (w *Watcher) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case events := <-w.debouncer.output:
			w.mu.RLock()
			handlers := w.handlers
			w.mu.RUnlock()
			for _, h := range handlers {
				if err := h(events); err != nil {
					w.log.Warn(ctx, err, "change handler failed")
				}
			}
		}
	}
}

// debouncer coalesces bursts of change events into one batch,
// deduplicated by path, emitted after the delay elapses with no new
// events.
type debouncer struct {
	delay  time.Duration
	events chan ChangeEvent
	output chan []ChangeEvent

	mu      sync.Mutex
	timer   *time.Timer
	pending []ChangeEvent
}

func (d *debouncer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.events:
			d.add(ev)
		}
	}
}

func (d *debouncer) add(ev ChangeEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending = append(d.pending, ev)
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
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

	byPath := make(map[string]ChangeEvent, len(d.pending))
	for _, ev := range d.pending {
		byPath[ev.Path] = ev
	}
	batch := make([]ChangeEvent, 0, len(byPath))
	for _, ev := range byPath {
		batch = append(batch, ev)
	}

	select {
	case d.output <- batch:
	default:
	}
	d.pending = d.pending[:0]
}

// SketchFilter accepts sketch document files.
func SketchFilter(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yaml" || ext == ".yml"
}

// PathFilter accepts only the given file.
func PathFilter(path string) Filter {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		abs = path
	}
	return func(p string) bool {
		got, err := filepath.Abs(filepath.Clean(p))
		if err != nil {
			return false
		}
		return got == abs
	}
}
