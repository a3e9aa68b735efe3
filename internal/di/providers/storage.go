package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/islabooks/isla/internal/config"
	"github.com/islabooks/isla/internal/logger"
	"github.com/islabooks/isla/internal/media/covers"
)

// ProvideCoverStorage provides on-disk cover image storage.
func ProvideCoverStorage(i do.Injector) (*covers.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	storage, err := covers.NewStorage(cfg.Library.CoversPath, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("cover storage: %w", err)
	}

	log.Info("Cover storage initialized", "path", cfg.Library.CoversPath)

	return storage, nil
}
