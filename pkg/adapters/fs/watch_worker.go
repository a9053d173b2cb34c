package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/patchwork/pkg/core"
)

const debounceWindow = 50 * time.Millisecond

// Watch emits an event for every document file change whose key matches
// pattern until ctx is cancelled. Bursts of filesystem events on the same
// file are coalesced; the event type is derived from the file's presence
// when the burst settles.
func (r *Repository) Watch(ctx context.Context, pattern string) (<-chan core.Event, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid watch pattern %q", pattern)
	}
	w := newWatchWorker(r, pattern)
	if err := w.start(ctx); err != nil {
		return nil, err
	}
	return w.events, nil
}

type watchWorker struct {
	repo      *Repository
	pattern   string
	events    chan core.Event
	watcher   *fsnotify.Watcher
	debouncer *debouncer
	known     map[string]bool
}

func newWatchWorker(repo *Repository, pattern string) *watchWorker {
	return &watchWorker{
		repo:      repo,
		pattern:   pattern,
		events:    make(chan core.Event, 64),
		debouncer: newDebouncer(debounceWindow),
		known:     make(map[string]bool),
	}
}

func (w *watchWorker) start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.addTree(watcher); err != nil {
		_ = watcher.Close()
		return err
	}

	keys, err := w.repo.Keys()
	if err != nil {
		_ = watcher.Close()
		return err
	}
	for _, k := range keys {
		w.known[k] = true
	}

	w.watcher = watcher
	w.repo.setWatcherActive(true)

	lifecycle.Go(ctx, w.run, lifecycle.WithErrorHandler(w.handleError))
	return nil
}

// addTree watches the root and every type directory.
func (w *watchWorker) addTree(watcher *fsnotify.Watcher) error {
	if err := watcher.Add(w.repo.Path); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.repo.Path, err)
	}
	entries, err := os.ReadDir(w.repo.Path)
	if err != nil {
		return fmt.Errorf("failed to list repository: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			if err := watcher.Add(filepath.Join(w.repo.Path, e.Name())); err != nil {
				return fmt.Errorf("failed to watch %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}

func (w *watchWorker) handleError(err error) {
	if w.repo.config.ErrorHandler != nil {
		w.repo.config.ErrorHandler(err)
		return
	}
	w.repo.logger.Error("watcher error", "error", err)
}

// run is the main event loop. Every piece of worker state is owned by it.
func (w *watchWorker) run(ctx context.Context) (err error) {
	defer close(w.events)
	defer w.repo.setWatcherActive(false)
	defer w.watcher.Close()
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)
			if w.repo.logger.Enabled(ctx, slog.LevelDebug) {
				w.repo.logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			}
		}
	}()

	ticker := time.NewTicker(debounceWindow / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleError(wErr)

		case now := <-ticker.C:
			for _, key := range w.debouncer.due(now) {
				if e, ok := w.settle(key); ok {
					select {
					case w.events <- e:
					case <-ctx.Done():
						return nil
					}
				}
			}
		}
	}
}

// processFilesystemEvent filters an fsnotify event down to a document key.
func (w *watchWorker) processFilesystemEvent(event fsnotify.Event) {
	w.repo.logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	rel, err := filepath.Rel(w.repo.Path, event.Name)
	if err != nil || isTempFile(rel) {
		return
	}

	// A new type directory: watch it and pick up files that landed before.
	if event.Has(fsnotify.Create) && !strings.ContainsRune(rel, filepath.Separator) && !hidden(rel) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				w.handleError(fmt.Errorf("failed to watch %s: %w", rel, err))
				return
			}
			files, _ := os.ReadDir(event.Name)
			for _, f := range files {
				w.enqueue(filepath.Join(rel, f.Name()))
			}
			return
		}
	}

	w.enqueue(rel)
}

func (w *watchWorker) enqueue(rel string) {
	_, key, ok := w.repo.documentFile(rel)
	if !ok {
		return
	}
	if match, _ := doublestar.Match(w.pattern, key); !match {
		return
	}
	w.debouncer.add(key, time.Now())
}

// settle compares the presence of the document with what was last reported.
func (w *watchWorker) settle(key string) (core.Event, bool) {
	docType, id, _ := strings.Cut(key, "/")
	_, _, err := w.repo.locate(docType, id)
	exists := err == nil

	var t core.EventType
	switch {
	case exists && w.known[key]:
		t = core.EventModify
	case exists:
		t = core.EventCreate
		w.known[key] = true
	case w.known[key]:
		t = core.EventDelete
		delete(w.known, key)
	default:
		return core.Event{}, false
	}
	return core.Event{Type: t, Key: key, Timestamp: time.Now().Unix()}, true
}

// debouncer holds keys until they have been quiet for the window.
type debouncer struct {
	window  time.Duration
	pending map[string]time.Time
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{window: window, pending: make(map[string]time.Time)}
}

func (d *debouncer) add(key string, at time.Time) {
	d.pending[key] = at
}

// due returns the settled keys, sorted, and forgets them.
func (d *debouncer) due(now time.Time) []string {
	var keys []string
	for key, last := range d.pending {
		if now.Sub(last) >= d.window {
			keys = append(keys, key)
			delete(d.pending, key)
		}
	}
	sort.Strings(keys)
	return keys
}
