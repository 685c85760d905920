// Package watch turns local filesystem activity under synced folder
// roots into domain events for the invalidation pipeline.
//
// The daemon's own event stream remains the authoritative change signal;
// this watcher just shortens the latency between a local edit and the
// dashboard noticing it. Folder roots are watched non-recursively and
// rapid bursts are debounced into a single LocalChangeDetected event per
// folder.
package watch

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/grahamwalsh/syncdeck/internal/pipeline"
)

// Config holds watcher configuration.
type Config struct {
	// DebounceInterval is how long a folder's events are batched before
	// a single LocalChangeDetected is emitted.
	DebounceInterval time.Duration

	// Logger for watcher activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		DebounceInterval: 500 * time.Millisecond,
		Logger:           log.New(os.Stderr, "[watch] ", log.LstdFlags),
	}
}

// Watcher maps filesystem events under folder roots to pipeline events.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dispatch func(pipeline.Event)
	config   *Config

	// roots maps an absolute folder root to its folder ID.
	roots map[string]string

	// pending tracks folders with unflushed events, folderID to the
	// time of the most recent event.
	pending   map[string]time.Time
	pendingMu sync.Mutex

	mu      sync.Mutex
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// New creates a watcher that feeds events into dispatch.
func New(dispatch func(pipeline.Event), config *Config) (*Watcher, error) {
	if dispatch == nil {
		return nil, fmt.Errorf("dispatch cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = 500 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = log.New(os.Stderr, "[watch] ", log.LstdFlags)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		watcher:  fsw,
		dispatch: dispatch,
		config:   config,
		roots:    make(map[string]string),
		pending:  make(map[string]time.Time),
		done:     make(chan struct{}),
	}, nil
}

// AddFolder registers a folder root to watch.
func (w *Watcher) AddFolder(folderID, root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve folder root %s: %w", root, err)
	}
	if err := w.watcher.Add(abs); err != nil {
		return fmt.Errorf("failed to watch %s: %w", abs, err)
	}

	w.mu.Lock()
	w.roots[abs] = folderID
	w.mu.Unlock()

	w.config.Logger.Printf("Watching %s (%s)", abs, folderID)
	return nil
}

// Start begins processing filesystem events.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	w.running = true

	w.wg.Add(2)
	go w.processEvents()
	go w.flushLoop()

	return nil
}

// Stop stops the watcher and waits for its goroutines to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()
	return nil
}

// processEvents consumes fsnotify events and queues per-folder changes.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if folderID, ok := w.folderFor(event.Name); ok {
				w.queue(folderID)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// folderFor maps an event path to the folder whose root contains it.
func (w *Watcher) folderFor(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for root, folderID := range w.roots {
		if abs == root || strings.HasPrefix(abs, root+string(filepath.Separator)) {
			return folderID, true
		}
	}
	return "", false
}

// queue records a change for folderID, restarting its debounce window.
func (w *Watcher) queue(folderID string) {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	w.pending[folderID] = time.Now()
}

// flushLoop emits one LocalChangeDetected per folder once its debounce
// window has been quiet.
func (w *Watcher) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *Watcher) flush() {
	now := time.Now()

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	for folderID, last := range w.pending {
		if now.Sub(last) < w.config.DebounceInterval {
			continue
		}
		delete(w.pending, folderID)
		w.dispatch(pipeline.Event{Type: pipeline.LocalChangeDetected, FolderID: folderID})
	}
}
