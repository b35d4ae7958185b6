// Package watch implements the file watcher and git sync reconciliation
// (C10): a recursive fsnotify watch with trailing-edge per-path debounce,
// and a VcsDiff-driven batch reconciliation path with identical dispatch
// semantics. Grounded on untoldecay-BeadsLog's cmd/bd/daemon_watcher.go for
// the fsnotify wiring and steveyegge-beads's cmd/bd/daemon_debouncer.go for
// the debounce timer shape, generalized from a single watched file to a
// recursive project tree and from one callback to per-path add/change/
// unlink classification dispatched into C5.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"ctxengine/internal/indexer"
	"ctxengine/internal/log"
)

// ChangeKind classifies a coalesced filesystem event.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeModify ChangeKind = "change"
	ChangeUnlink ChangeKind = "unlink"
)

var defaultSkipDirs = map[string]struct{}{
	".git": {}, "node_modules": {}, "vendor": {}, "dist": {}, "build": {}, "coverage": {}, "__pycache__": {},
}

// Options configures a Watcher.
type Options struct {
	Root            string
	DebounceWindow  time.Duration // default 300ms, per-path coalescing window
	AutoReindex     bool
	IgnoreDotFiles  bool
}

func (o *Options) applyDefaults() {
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = 300 * time.Millisecond
	}
}

// Watcher recursively watches a project root and dispatches debounced
// add/change/unlink events into the indexer. Events during an active
// reindex pass accumulate in pending and are dispatched on the next
// debounce firing rather than being dropped.
type Watcher struct {
	opt Options
	ix  *indexer.Indexer
	fsw *fsnotify.Watcher
	db  *debouncer
	log *log.Logger

	mu           sync.Mutex
	pending      map[string]ChangeKind
	isReindexing bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Watcher rooted at opt.Root, wired to ix for dispatch.
func New(ix *indexer.Indexer, opt Options, logger *log.Logger) (*Watcher, error) {
	opt.applyDefaults()
	if logger == nil {
		logger = log.New()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		opt:     opt,
		ix:      ix,
		fsw:     fsw,
		log:     logger.With(map[string]string{"component": "watch"}),
		pending: make(map[string]ChangeKind),
	}
	w.db = newDebouncer(opt.DebounceWindow, w.flush)

	if err := w.addTreeRecursive(opt.Root); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTreeRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if _, skip := defaultSkipDirs[d.Name()]; skip && path != root {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			w.log.Warn("failed to watch directory", "path", path, "err", addErr.Error())
		}
		return nil
	})
}

// Start runs the event loop in a background goroutine until ctx is done or
// Close is called.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.loop(ctx)
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("fsnotify error", "err", err.Error())
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.opt.Root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if shouldIgnorePath(rel, w.opt.IgnoreDotFiles) {
		return
	}

	if ev.Op&fsnotify.Create != 0 {
		if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
			_ = w.addTreeRecursive(ev.Name)
			return
		}
	}

	kind := classify(ev.Op)
	if kind == "" {
		return
	}

	w.mu.Lock()
	w.pending[rel] = kind
	w.mu.Unlock()
	w.db.trigger(rel)
}

func classify(op fsnotify.Op) ChangeKind {
	switch {
	case op&fsnotify.Remove != 0 || op&fsnotify.Rename != 0:
		return ChangeUnlink
	case op&fsnotify.Create != 0:
		return ChangeAdd
	case op&fsnotify.Write != 0:
		return ChangeModify
	default:
		return ""
	}
}

func shouldIgnorePath(rel string, ignoreDot bool) bool {
	if rel == "." || rel == "" {
		return true
	}
	base := filepath.Base(rel)
	if ignoreDot && len(base) > 0 && base[0] == '.' {
		return true
	}
	return false
}

// flush is called by the debouncer once a path has been quiet for the
// configured window. It dispatches one path's change into the indexer,
// honoring the is_reindexing overlap guard: if a batch is already running,
// the path stays in pending and is re-triggered once the current batch
// finishes via Watcher.drainPending.
func (w *Watcher) flush(path string) {
	w.mu.Lock()
	if w.isReindexing {
		w.mu.Unlock()
		return
	}
	kind, ok := w.pending[path]
	if !ok {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.isReindexing = true
	w.mu.Unlock()

	w.dispatch(path, kind)

	w.mu.Lock()
	w.isReindexing = false
	remaining := len(w.pending)
	w.mu.Unlock()
	if remaining > 0 {
		w.drainPending()
	}
}

func (w *Watcher) drainPending() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.mu.Unlock()
	for _, p := range paths {
		w.db.trigger(p)
	}
}

func (w *Watcher) dispatch(path string, kind ChangeKind) {
	if !w.opt.AutoReindex {
		return
	}
	ctx := context.Background()
	var err error
	switch kind {
	case ChangeUnlink:
		err = w.ix.DeleteFile(ctx, path)
	default:
		err = w.ix.IndexFile(ctx, w.opt.Root, path)
	}
	if err != nil {
		w.log.Warn("watch dispatch failed", "path", path, "kind", string(kind), "err", err.Error())
	}
}

// Close stops the event loop and releases the underlying fsnotify handle.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.db.cancel()
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
