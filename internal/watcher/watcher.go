// Package watcher watches corpus directories and reports settled document
// changes. It debounces noisy editor events per path and gates callbacks on
// content checksums so touch-without-change stays quiet.
package watcher

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mwtmurphy/go-playbook/internal/logging"
	"github.com/mwtmurphy/go-playbook/pkg/interfaces"
)

// DefaultDebounce is the settle window applied to each changed path before
// the handler runs.
const DefaultDebounce = 250 * time.Millisecond

// Handler receives one settled change per call. Paths may flush concurrently,
// so handlers must tolerate parallel invocations; a removed file reports its
// last known path.
type Handler func(ctx context.Context, path string)

// Watcher follows corpus directories recursively, including directories
// created after Start.
type Watcher struct {
	dirs       []string
	handler    Handler
	notify     *fsnotify.Watcher
	logger     interfaces.Logger
	debounce   time.Duration
	extensions []string

	mu      sync.Mutex
	ctx     context.Context
	timers  map[string]*time.Timer
	hashes  map[string][]byte
	started bool
	closed  bool
}

// Option mutates the watcher configuration.
type Option func(*Watcher)

// WithDebounce replaces the default settle window. Non-positive values are
// ignored.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if w != nil && d > 0 {
			w.debounce = d
		}
	}
}

// WithExtensions replaces the watched file extensions (defaults to .md, the
// same set the corpus loader discovers).
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		if w == nil {
			return
		}
		normalized := make([]string, 0, len(exts))
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			normalized = append(normalized, ext)
		}
		if len(normalized) > 0 {
			w.extensions = normalized
		}
	}
}

// WithLogger replaces the default no-op logger.
func WithLogger(logger interfaces.Logger) Option {
	return func(w *Watcher) {
		if w != nil && logger != nil {
			w.logger = logger
		}
	}
}

// New constructs a watcher over the given corpus directories. The handler
// fires once per settled change; wiring it to a corpus sync (and optionally
// an audit run) happens at the call site.
func New(dirs []string, handler Handler, opts ...Option) (*Watcher, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("watcher: at least one directory is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("watcher: handler is required")
	}

	notify, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watcher: %w", err)
	}

	w := &Watcher{
		dirs:       append([]string(nil), dirs...),
		handler:    handler,
		notify:     notify,
		logger:     logging.NoOp(),
		debounce:   DefaultDebounce,
		extensions: []string{".md"},
		timers:     map[string]*time.Timer{},
		hashes:     map[string][]byte{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

// Start seeds the checksum index, registers the directory tree, and launches
// the event loop. It returns once watching is in place; the loop stops when
// the context ends or the watcher closes.
func (w *Watcher) Start(ctx context.Context) error {
	if w == nil || w.notify == nil {
		return fmt.Errorf("watcher: not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("watcher: closed")
	}
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("watcher: already started")
	}
	w.started = true
	w.ctx = ctx
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if err := w.addTree(dir, true); err != nil {
			return fmt.Errorf("watcher: watch %s: %w", dir, err)
		}
	}

	go w.processEvents(ctx)
	return nil
}

// Close stops the timers and the underlying notifier. Repeat calls are no-ops.
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for path, timer := range w.timers {
		timer.Stop()
		delete(w.timers, path)
	}
	w.mu.Unlock()

	if w.notify == nil {
		return nil
	}
	return w.notify.Close()
}

// addTree registers dir and everything below it. During Start the walk seeds
// checksums so pre-existing files only fire on real change; trees appearing
// later schedule their files instead, since their content is new to the
// corpus.
func (w *Watcher) addTree(dir string, seed bool) error {
	root := filepath.Clean(dir)
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path != root && strings.HasPrefix(entry.Name(), ".") {
				return fs.SkipDir
			}
			return w.notify.Add(path)
		}
		if !w.watchable(path) {
			return nil
		}
		if seed {
			if sum, hashErr := hashFile(path); hashErr == nil {
				w.setHash(path, sum)
			}
			return nil
		}
		w.schedule(path)
		return nil
	})
}

func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.notify.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.notify.Errors:
			if !ok {
				return
			}
			w.logger.Error("corpus watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			if strings.HasPrefix(filepath.Base(path), ".") {
				return
			}
			if err := w.addTree(path, false); err != nil {
				w.logger.Error("corpus watch new directory failed", "path", path, "error", err)
			}
			return
		}
	}

	if !w.watchable(path) {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	w.schedule(path)
}

// schedule arms or re-arms the per-path debounce timer. Bursty editor saves
// collapse into one flush.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.flush(path)
	})
}

// flush decides whether the settled path is a real change. Unreadable paths
// count as removals when the file was known before; unchanged checksums stay
// quiet.
func (w *Watcher) flush(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	ctx := w.ctx
	if w.closed || ctx == nil || ctx.Err() != nil {
		w.mu.Unlock()
		return
	}
	last, known := w.hashes[path]
	w.mu.Unlock()

	sum, err := hashFile(path)
	switch {
	case err != nil:
		if !known {
			return
		}
		w.mu.Lock()
		delete(w.hashes, path)
		w.mu.Unlock()
	case known && bytes.Equal(last, sum):
		return
	default:
		w.setHash(path, sum)
	}

	w.handler(ctx, path)
}

func (w *Watcher) watchable(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range w.extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (w *Watcher) setHash(path string, sum []byte) {
	w.mu.Lock()
	w.hashes[path] = sum
	w.mu.Unlock()
}

func hashFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}
