package importer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultSettleDelay is how long a file must stay unchanged before the
// watcher treats it as fully written. Copies into the inbox arrive as a
// burst of write events; importing mid-copy reads a truncated book.
const defaultSettleDelay = 500 * time.Millisecond

// Watcher monitors an inbox directory and imports files dropped into it.
type Watcher struct {
	importer *Importer
	inbox    string
	logger   *slog.Logger
	settle   time.Duration

	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending map[string]*time.Timer

	wg sync.WaitGroup
}

// NewWatcher creates a watcher over the inbox directory, creating it if
// needed.
func NewWatcher(imp *Importer, inbox string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(inbox, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox directory: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := fw.Add(inbox); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch inbox: %w", err)
	}

	return &Watcher{
		importer: imp,
		inbox:    inbox,
		logger:   logger,
		settle:   defaultSettleDelay,
		watcher:  fw,
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Start processes inbox events until the context is cancelled. Files already
// sitting in the inbox at startup are imported first.
func (w *Watcher) Start(ctx context.Context) error {
	w.importExisting(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) || event.Op.Has(fsnotify.Write) {
				w.schedule(ctx, event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("inbox watch error", "error", err)
		}
	}
}

// Close stops watching and waits for in-flight imports.
func (w *Watcher) Close() error {
	err := w.watcher.Close()

	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	w.wg.Wait()
	return err
}

// importExisting sweeps files that were dropped while nothing was watching.
func (w *Watcher) importExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.inbox)
	if err != nil {
		w.logger.Warn("read inbox directory", "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.importFile(ctx, filepath.Join(w.inbox, entry.Name()))
	}
}

// schedule (re)arms the settle timer for a path. Every write pushes the
// import back until the file stops changing.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		w.wg.Add(1)
		defer w.wg.Done()
		w.importFile(ctx, path)
	})
}

// importFile imports one inbox file, removing it on success. Failures are
// logged and the file left in place for the user to inspect.
func (w *Watcher) importFile(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}

	book, err := w.importer.Import(ctx, path)
	if err != nil {
		w.logger.Warn("inbox import failed", "path", path, "error", err)
		return
	}

	if err := os.Remove(path); err != nil {
		w.logger.Warn("remove imported inbox file", "path", path, "error", err)
	}
	w.logger.Info("inbox import complete", "path", path, "book_id", book.ID)
}
