// Package watcher monitors a repository tree for source changes so
// watch mode can trigger a new healing session between runs. Events
// are debounced; the healing loop pauses the watcher while it mutates
// the tree so its own writes never re-trigger it.
package watcher

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Change is one debounced file change, repo-relative with slashes.
type Change struct {
	Path string
}

// skipDirs mirrors the indexer's exclusions; changes inside them never
// warrant a re-heal.
var skipDirs = map[string]bool{
	".git":         true,
	".healer":      true,
	"node_modules": true,
	"__pycache__":  true,
	"venv":         true,
	".venv":        true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// Watcher monitors a repository for file changes using fsnotify.
type Watcher struct {
	Root    string
	Changes <-chan Change // Read-only external channel

	changes chan Change // Internal write channel
	done    chan struct{}
	watcher *fsnotify.Watcher
	paused  atomic.Bool
}

// New creates a watcher for the given repository root.
func New(root string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ch := make(chan Change, 16)
	w := &Watcher{
		Root:    root,
		Changes: ch,
		changes: ch,
		done:    make(chan struct{}),
		watcher: fw,
	}
	return w, nil
}

// Start registers every directory under the root and begins watching.
// fsnotify does not recurse, so new directories are added as they
// appear.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != w.Root && (skipDirs[name] || strings.HasPrefix(name, ".")) {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
	if err != nil {
		return err
	}

	go w.loop()
	return nil
}

// Stop closes the watcher and channels.
func (w *Watcher) Stop() {
	w.watcher.Close()
	<-w.done // Wait for loop to exit
	close(w.changes)
}

// Pause drops events until Resume; called while a healing session
// owns the tree.
func (w *Watcher) Pause() {
	w.paused.Store(true)
}

// Resume re-enables event delivery.
func (w *Watcher) Resume() {
	w.paused.Store(false)
}

func (w *Watcher) loop() {
	defer close(w.done)

	// Debounce: track last event time per file.
	const debounce = 100 * time.Millisecond
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(debounce)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				// Drain pending on close.
				for file := range pending {
					w.emitChange(file)
				}
				return
			}

			if w.paused.Load() {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if w.isSourceDir(event.Name) {
						w.watcher.Add(event.Name)
					}
					continue
				}
			}
			if !w.isSourceFile(event.Name) {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) {
				pending[event.Name] = time.Now()
			}

		case _, ok := <-ticker.C:
			if !ok {
				return
			}
			now := time.Now()
			for file, t := range pending {
				if w.paused.Load() {
					delete(pending, file)
					continue
				}
				if now.Sub(t) >= debounce {
					w.emitChange(file)
					delete(pending, file)
				}
			}

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			// Ignore watch errors; they're non-fatal.
		}
	}
}

func (w *Watcher) isSourceDir(path string) bool {
	name := filepath.Base(path)
	return !skipDirs[name] && !strings.HasPrefix(name, ".")
}

func (w *Watcher) isSourceFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.Contains(base, ".backup.") {
		return false
	}
	rel, err := filepath.Rel(w.Root, name)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if skipDirs[part] || strings.HasPrefix(part, ".") {
			return false
		}
	}
	return true
}

func (w *Watcher) emitChange(file string) {
	rel, err := filepath.Rel(w.Root, file)
	if err != nil {
		rel = file
	}
	w.changes <- Change{Path: filepath.ToSlash(rel)}
}
