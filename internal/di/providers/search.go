package providers

import (
	"github.com/samber/do/v2"

	"github.com/islabooks/isla/internal/config"
	"github.com/islabooks/isla/internal/logger"
	"github.com/islabooks/isla/internal/search"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.Index
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the full-text search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.New(cfg.Library.IndexPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Search index ready", "path", cfg.Library.IndexPath)

	return &SearchIndexHandle{Index: index}, nil
}
