// Package di provides dependency injection configuration for the Isla
// library manager.
package di

import (
	"github.com/samber/do/v2"

	"github.com/islabooks/isla/internal/aiclient"
	"github.com/islabooks/isla/internal/config"
	"github.com/islabooks/isla/internal/di/providers"
	"github.com/islabooks/isla/internal/events"
	"github.com/islabooks/isla/internal/importer"
	"github.com/islabooks/isla/internal/lifecycle"
	"github.com/islabooks/isla/internal/logger"
	"github.com/islabooks/isla/internal/media/covers"
	"github.com/islabooks/isla/internal/service"
	"github.com/islabooks/isla/internal/sync"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSlogLogger)
	do.Provide(injector, providers.ProvideEventBus)

	// Database layer
	do.Provide(injector, providers.ProvideStore)

	// Storage layer
	do.Provide(injector, providers.ProvideCoverStorage)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)

	// Import pipeline
	do.Provide(injector, providers.ProvideImporter)
	do.Provide(injector, providers.ProvideFileWatcher)

	// AI layer
	do.Provide(injector, providers.ProvideTokenService)
	do.Provide(injector, providers.ProvideAIClient)

	// Sync layer
	do.Provide(injector, providers.ProvideRecordStore)
	do.Provide(injector, providers.ProvideAccountProvider)
	do.Provide(injector, providers.ProvideSyncEngine)

	// Business services
	do.Provide(injector, providers.ProvideLibraryService)
	do.Provide(injector, providers.ProvideLifecycleManager)

	return injector
}

// Bootstrap initializes all services. This triggers lazy initialization of
// every provider so startup failures surface immediately.
func Bootstrap(injector *do.RootScope) error {
	_ = do.MustInvoke[*config.Config](injector)
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*events.Bus](injector)
	_ = do.MustInvoke[*providers.StoreHandle](injector)
	_ = do.MustInvoke[*covers.Storage](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*importer.Importer](injector)
	_ = do.MustInvoke[*providers.FileWatcherHandle](injector)
	_ = do.MustInvoke[*aiclient.TokenService](injector)
	_ = do.MustInvoke[*aiclient.Client](injector)
	_ = do.MustInvoke[sync.RecordStore](injector)
	_ = do.MustInvoke[*sync.Engine](injector)
	_ = do.MustInvoke[*service.Library](injector)
	_ = do.MustInvoke[*lifecycle.Manager](injector)

	return nil
}
