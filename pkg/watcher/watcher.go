// Package watcher reports debounced changes under repository trees.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/wouteroostervld/atlas/pkg/filter"
)

// TreeWatcher watches whole directory trees. Bursts of changes inside one
// tree collapse into a single OnChange call with the tree's root.
type TreeWatcher struct {
	watcher  *fsnotify.Watcher
	onChange func(root string)
	filter   *filter.Filter
	debounce time.Duration

	mu      sync.Mutex
	roots   map[string]bool
	dirs    map[string]string // watched directory -> root
	pending map[string]*time.Timer
}

// Config holds watcher configuration
type Config struct {
	DebounceDelay time.Duration  // Quiet period before OnChange fires (default: 2s)
	Filter        *filter.Filter // Optional; skipped dirs are not watched, rejected files ignored
	OnChange      func(root string)
}

// New creates a tree watcher
func New(cfg *Config) (*TreeWatcher, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = 2 * time.Second
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &TreeWatcher{
		watcher:  fw,
		onChange: cfg.OnChange,
		filter:   cfg.Filter,
		debounce: cfg.DebounceDelay,
		roots:    make(map[string]bool),
		dirs:     make(map[string]string),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Watch adds root and every directory below it
func (w *TreeWatcher) Watch(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", abs)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.roots[abs] {
		return nil
	}
	if err := w.addTree(abs, abs); err != nil {
		return err
	}
	w.roots[abs] = true
	slog.Debug("Watching tree", "root", abs)
	return nil
}

// addTree registers dir and its subdirectories. Caller holds mu.
func (w *TreeWatcher) addTree(root, dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			slog.Debug("Skipping unreadable path", "path", p, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.skipDir(root, p) {
			return filepath.SkipDir
		}
		if _, ok := w.dirs[p]; ok {
			return nil
		}
		if err := w.watcher.Add(p); err != nil {
			return fmt.Errorf("failed to watch %s: %w", p, err)
		}
		w.dirs[p] = root
		return nil
	})
}

func (w *TreeWatcher) skipDir(root, dir string) bool {
	if w.filter == nil {
		return false
	}
	return w.filter.SkipDir(relPath(root, dir))
}

// Unwatch stops watching root and its subdirectories
func (w *TreeWatcher) Unwatch(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.roots[abs] {
		return nil
	}
	for dir, r := range w.dirs {
		if r != abs {
			continue
		}
		if err := w.watcher.Remove(dir); err != nil {
			slog.Debug("Failed to remove watch", "dir", dir, "error", err)
		}
		delete(w.dirs, dir)
	}
	if t, ok := w.pending[abs]; ok {
		t.Stop()
		delete(w.pending, abs)
	}
	delete(w.roots, abs)
	return nil
}

// Start dispatches events until ctx is done
func (w *TreeWatcher) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			slog.Warn("Watcher error", "error", err)
		}
	}
}

func (w *TreeWatcher) handleEvent(event fsnotify.Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	root, ok := w.rootOf(event.Name)
	if !ok {
		return
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if w.skipDir(root, event.Name) {
				return
			}
			if err := w.addTree(root, event.Name); err != nil {
				slog.Warn("Failed to watch new directory", "dir", event.Name, "error", err)
			}
			w.schedule(root)
			return
		}
	}

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if _, isDir := w.dirs[event.Name]; isDir {
			delete(w.dirs, event.Name)
			w.schedule(root)
			return
		}
	}

	if w.filter != nil && !w.filter.AllowFile(relPath(root, event.Name)) {
		return
	}
	w.schedule(root)
}

// rootOf finds the watched tree containing p. Caller holds mu.
func (w *TreeWatcher) rootOf(p string) (string, bool) {
	if root, ok := w.dirs[filepath.Dir(p)]; ok {
		return root, true
	}
	if root, ok := w.dirs[p]; ok {
		return root, true
	}
	return "", false
}

// schedule restarts the quiet-period timer of root. Caller holds mu.
func (w *TreeWatcher) schedule(root string) {
	if t, ok := w.pending[root]; ok {
		t.Stop()
	}
	w.pending[root] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, root)
		w.mu.Unlock()

		slog.Debug("Tree changed", "root", root)
		if w.onChange != nil {
			w.onChange(root)
		}
	})
}

// Close stops the watcher and drops pending notifications
func (w *TreeWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, t := range w.pending {
		t.Stop()
	}
	w.pending = make(map[string]*time.Timer)

	return w.watcher.Close()
}

// Watched returns the watched roots, sorted
func (w *TreeWatcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	roots := make([]string, 0, len(w.roots))
	for r := range w.roots {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	return roots
}

// WatchedDirs reports how many directories are registered
func (w *TreeWatcher) WatchedDirs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

func relPath(root, p string) string {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return strings.TrimPrefix(filepath.ToSlash(rel), "./")
}
