package codeindex

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// skipDirs are never descended into when setting up a Watcher, mirroring
// the directories actors never generate into.
var skipDirs = []string{".git", "node_modules", "dist", "build", ".next"}

// Watcher keeps an Index in sync with a workspace's files on disk as an
// actor (or a human editing the checked-out workspace) writes them,
// debouncing bursts of writes from the same save.
type Watcher struct {
	idx        *Index
	root       string
	fsWatcher  *fsnotify.Watcher
	debounce   time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}

	pendingMu sync.Mutex
	pending   map[string]time.Time
}

// NewWatcher creates a Watcher rooted at root, debouncing writes to the
// same file within debounce before reindexing it.
func NewWatcher(idx *Index, root string, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("codeindex: create watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return &Watcher{
		idx:       idx,
		root:      root,
		fsWatcher: fsWatcher,
		debounce:  debounce,
		stopCh:    make(chan struct{}),
		pending:   map[string]time.Time{},
	}, nil
}

// Start begins watching root for changes, reindexing affected files as
// they settle. It returns once the initial directory walk is done; the
// watch loop itself runs in background goroutines until Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addDirectories(); err != nil {
		return fmt.Errorf("codeindex: watch directories: %w", err)
	}

	go w.processEvents(ctx)
	go w.processDebounced(ctx)
	return nil
}

// Stop shuts down the watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	return w.fsWatcher.Close()
}

func (w *Watcher) addDirectories() error {
	return filepath.Walk(w.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(w.root, path)
		if w.shouldSkipDir(rel) {
			return filepath.SkipDir
		}
		if err := w.fsWatcher.Add(path); err != nil {
			fmt.Fprintf(os.Stderr, "codeindex: warning: cannot watch %s: %v\n", path, err)
		}
		return nil
	})
}

func (w *Watcher) shouldSkipDir(relPath string) bool {
	for _, dir := range skipDirs {
		if relPath == dir || strings.HasPrefix(relPath, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.pendingMu.Lock()
			w.pending[event.Name] = time.Now()
			w.pendingMu.Unlock()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "codeindex: watcher error: %v\n", err)
		}
	}
}

func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPendingFiles(ctx)
		}
	}
}

func (w *Watcher) processPendingFiles(ctx context.Context) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	for path, ts := range w.pending {
		if now.Sub(ts) < w.debounce {
			continue
		}
		delete(w.pending, path)

		content, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			rel = path
		}
		if err := w.idx.IndexFile(ctx, rel, string(content)); err != nil {
			fmt.Fprintf(os.Stderr, "codeindex: error indexing %s: %v\n", rel, err)
		}
	}
}
