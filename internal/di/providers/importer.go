package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/islabooks/isla/internal/config"
	"github.com/islabooks/isla/internal/events"
	"github.com/islabooks/isla/internal/importer"
	"github.com/islabooks/isla/internal/logger"
	"github.com/islabooks/isla/internal/media/covers"
	"github.com/islabooks/isla/internal/textenc"
)

// ProvideImporter provides the book import pipeline.
func ProvideImporter(i do.Injector) (*importer.Importer, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	coverStorage := do.MustInvoke[*covers.Storage](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	bus := do.MustInvoke[*events.Bus](i)

	fallback, err := textenc.FallbackByName(cfg.Import.FallbackEncoding)
	if err != nil {
		return nil, err
	}

	return importer.New(storeHandle.Store, coverStorage, searchHandle.Index, bus, log.Logger, importer.Options{
		BooksPath:        cfg.Library.BooksPath,
		MaxFileSize:      cfg.Import.MaxFileSize,
		FallbackLanguage: cfg.Import.FallbackLanguage,
		FallbackEncoding: fallback,
	}), nil
}

// FileWatcherHandle wraps the inbox watcher with its context for lifecycle
// management. Nil when no inbox path is configured.
type FileWatcherHandle struct {
	Watcher *importer.Watcher
	cancel  context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Watcher.Close()
}

// ProvideFileWatcher provides the inbox directory watcher, started in the
// background when an inbox path is configured.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if cfg.Import.InboxPath == "" {
		log.Info("No inbox path configured, file watcher disabled")
		return &FileWatcherHandle{}, nil
	}

	imp := do.MustInvoke[*importer.Importer](i)

	watcher, err := importer.NewWatcher(imp, cfg.Import.InboxPath, log.Logger)
	if err != nil {
		return nil, err
	}

	// Start blocks until the context is cancelled, so run it in the background.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := watcher.Start(ctx); err != nil && ctx.Err() == nil {
			log.Error("Inbox watcher stopped", "error", err)
		}
	}()

	log.Info("Inbox watcher started", "path", cfg.Import.InboxPath)

	return &FileWatcherHandle{Watcher: watcher, cancel: cancel}, nil
}
