package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/islabooks/isla/internal/aiclient"
	"github.com/islabooks/isla/internal/config"
	"github.com/islabooks/isla/internal/logger"
	"github.com/islabooks/isla/internal/sync"
)

// ProvideRecordStore provides the remote record store backing sync.
func ProvideRecordStore(i do.Injector) (sync.RecordStore, error) {
	cfg := do.MustInvoke[*config.Config](i)
	tokens := do.MustInvoke[*aiclient.TokenService](i)

	return sync.NewHTTPRecordStore(cfg.AI.BaseURL,
		sync.WithTokenSource(func(ctx context.Context) (string, error) {
			return tokens.Mint()
		}),
	), nil
}

// ProvideAccountProvider provides the account gate for sync. A configured
// deployment reports an available account; disabling sync reports a missing
// one, which leaves every record kind disabled.
func ProvideAccountProvider(i do.Injector) (sync.AccountProvider, error) {
	cfg := do.MustInvoke[*config.Config](i)

	status := sync.AccountAvailable
	if !cfg.Sync.Enabled {
		status = sync.AccountMissing
	}
	return sync.StaticAccountProvider{AccountStatus: status}, nil
}

// ProvideSyncEngine provides the bidirectional sync engine.
func ProvideSyncEngine(i do.Injector) (*sync.Engine, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	records := do.MustInvoke[sync.RecordStore](i)
	account := do.MustInvoke[sync.AccountProvider](i)

	return sync.NewEngine(storeHandle.Store, records, account, log.Logger), nil
}
