package providers

import (
	"github.com/samber/do/v2"

	"github.com/islabooks/isla/internal/config"
	"github.com/islabooks/isla/internal/events"
	"github.com/islabooks/isla/internal/logger"
	"github.com/islabooks/isla/internal/store"
)

// ProvideEventBus provides the in-process event bus. The store, importer and
// lifecycle manager publish on it; UI layers subscribe.
func ProvideEventBus(i do.Injector) (*events.Bus, error) {
	return events.NewBus(), nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	bus := do.MustInvoke[*events.Bus](i)

	db, err := store.New(cfg.Library.StorePath, log.Logger, bus)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", cfg.Library.StorePath)

	return &StoreHandle{Store: db}, nil
}
