package providers

import (
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/islabooks/isla/internal/config"
	"github.com/islabooks/isla/internal/events"
	"github.com/islabooks/isla/internal/lifecycle"
	"github.com/islabooks/isla/internal/logger"
	"github.com/islabooks/isla/internal/media/covers"
	"github.com/islabooks/isla/internal/service"
	"github.com/islabooks/isla/internal/sync"
)

// ProvideLibraryService provides the library read/write service.
func ProvideLibraryService(i do.Injector) (*service.Library, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)

	return service.NewLibrary(storeHandle.Store, searchHandle.Index, log.Logger), nil
}

// ProvideLifecycleManager provides the data lifecycle manager.
func ProvideLifecycleManager(i do.Injector) (*lifecycle.Manager, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	coverStorage := do.MustInvoke[*covers.Storage](i)
	searchHandle := do.MustInvoke[*SearchIndexHandle](i)
	records := do.MustInvoke[sync.RecordStore](i)
	bus := do.MustInvoke[*events.Bus](i)

	paths := lifecycle.Paths{
		Books:  cfg.Library.BooksPath,
		Covers: cfg.Library.CoversPath,
		Cache:  cfg.Library.CachePath,
		Export: filepath.Join(cfg.Library.DataPath, "exports"),
	}

	return lifecycle.New(storeHandle.Store, coverStorage, searchHandle.Index, records, bus, log.Logger, paths, cfg.App.Version), nil
}
