package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"spacegun/pkg/logging"
)

// Operation is the kind of change seen on a pipeline file.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// Change reports that the file of pipeline Name changed.
type Change struct {
	Name      string
	Operation Operation
	Path      string
	Timestamp time.Time
}

// Watcher watches a pipelines directory and emits debounced changes.
type Watcher struct {
	mu       sync.Mutex
	dir      string
	debounce time.Duration
	watcher  *fsnotify.Watcher
	pending  map[string]*pendingChange
	stopCh   chan struct{}
	running  bool
}

type pendingChange struct {
	change Change
	timer  *time.Timer
}

// NewWatcher returns a Watcher for dir. A zero debounce uses 500ms.
func NewWatcher(dir string, debounce time.Duration) *Watcher {
	if debounce == 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		dir:      dir,
		debounce: debounce,
		pending:  make(map[string]*pendingChange),
		stopCh:   make(chan struct{}),
	}
}

// Start begins watching. The directory is created when missing.
func (w *Watcher) Start(ctx context.Context, changes chan<- Change) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		w.mu.Unlock()
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	if err := watcher.Add(w.dir); err != nil {
		watcher.Close()
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.running = true
	w.stopCh = make(chan struct{})
	w.mu.Unlock()

	go w.loop(ctx, watcher, changes)

	logging.Info("PipelineWatcher", "Watching %s for pipeline changes", w.dir)
	return nil
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher, changes chan<- Change) {
	for {
		select {
		case <-ctx.Done():
			w.clearPending()
			return
		case <-w.stopCh:
			w.clearPending()
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			w.handle(event, changes)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logging.Error("PipelineWatcher", err, "Filesystem watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event, changes chan<- Change) {
	if !isYAMLFile(event.Name) {
		return
	}

	var op Operation
	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		op = OperationCreate
	case event.Op&fsnotify.Write == fsnotify.Write:
		op = OperationUpdate
	case event.Op&fsnotify.Remove == fsnotify.Remove, event.Op&fsnotify.Rename == fsnotify.Rename:
		op = OperationDelete
	default:
		return
	}

	w.schedule(Change{Name: stem(event.Name), Operation: op, Path: event.Name, Timestamp: time.Now()}, changes)
}

// schedule debounces changes per file.
func (w *Watcher) schedule(change Change, changes chan<- Change) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := change.Path
	if entry, ok := w.pending[key]; ok {
		entry.timer.Stop()
		change.Operation = mergeOperations(entry.change.Operation, change.Operation)
	}

	timer := time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		entry, ok := w.pending[key]
		if ok {
			delete(w.pending, key)
		}
		w.mu.Unlock()
		if !ok {
			return
		}
		select {
		case changes <- entry.change:
			logging.Debug("PipelineWatcher", "Pipeline %s: %s", entry.change.Name, entry.change.Operation)
		default:
			logging.Warn("PipelineWatcher", "Change channel full, dropping change for %s", entry.change.Name)
		}
	})
	w.pending[key] = &pendingChange{change: change, timer: timer}
}

// mergeOperations folds two successive operations on one file.
func mergeOperations(old, next Operation) Operation {
	if old == OperationCreate && next != OperationDelete {
		return OperationCreate
	}
	return next
}

func (w *Watcher) clearPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, entry := range w.pending {
		entry.timer.Stop()
	}
	w.pending = make(map[string]*pendingChange)
}

// Stop ends watching.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stopCh)
	err := w.watcher.Close()
	w.watcher = nil
	logging.Info("PipelineWatcher", "Stopped watching %s", w.dir)
	return err
}

func isYAMLFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
