package workspace

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

const watchEventBuffer = 64

// FSWatcher adapts fsnotify to a stream of WatchEvents for one root.
// Directories matching the ignore rule are not watched.
type FSWatcher struct {
	root    string
	ignore  func() *IgnoreRule
	watcher *fsnotify.Watcher
	events  chan WatchEvent
}

// NewFSWatcher creates a recursive watcher for root. ignore is consulted
// whenever a directory is added.
func NewFSWatcher(root string, ignore func() *IgnoreRule) (*FSWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if ignore == nil {
		ignore = func() *IgnoreRule { return nil }
	}
	return &FSWatcher{
		root:    filepath.Clean(root),
		ignore:  ignore,
		watcher: w,
		events:  make(chan WatchEvent, watchEventBuffer),
	}, nil
}

// Events returns the event stream. It is closed when Start returns.
func (w *FSWatcher) Events() <-chan WatchEvent {
	return w.events
}

// Start adds the watches and translates events until ctx is cancelled.
func (w *FSWatcher) Start(ctx context.Context) error {
	l := sub("watcher")
	defer close(w.events)

	if err := w.addRecursive(w.root); err != nil {
		w.watcher.Close()
		return err
	}
	l.Info("watching", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			w.watcher.Close()
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if w.ignored(event.Name) {
				continue
			}

			// New directories need their own watch.
			if event.Has(fsnotify.Create) {
				if err := w.addRecursive(event.Name); err != nil {
					l.Debug("add watch failed", "path", event.Name, "err", err)
				}
			}

			ev := WatchEvent{Op: translateOp(event.Op), Path: event.Name}
			select {
			case w.events <- ev:
			default:
				// consumer is behind; a refresh is already due
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			l.Warn("watch error", "err", err)
		}
	}
}

// Close closes the underlying fsnotify watcher.
func (w *FSWatcher) Close() error {
	return w.watcher.Close()
}

func translateOp(op fsnotify.Op) WatchOp {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreated
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDeleted
	}
	return OpChanged
}

// ignored reports whether any component of path below root matches the rule.
func (w *FSWatcher) ignored(path string) bool {
	rule := w.ignore()
	rel, ok := relativeTo(w.root, path)
	if !ok {
		return true
	}
	if rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if rule.Match(part) {
			return true
		}
	}
	return false
}

// addRecursive adds a directory and all non-ignored subdirectories.
func (w *FSWatcher) addRecursive(root string) error {
	rule := w.ignore()
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip inaccessible dirs
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && rule.Match(path) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}
