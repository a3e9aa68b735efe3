package providers

import (
	"github.com/samber/do/v2"

	"github.com/islabooks/isla/internal/aiclient"
	"github.com/islabooks/isla/internal/config"
	"github.com/islabooks/isla/internal/logger"
)

// ProvideTokenService provides the PASETO token service for AI and sync
// requests. The key and device ID are persisted under the data path and
// generated on first run.
func ProvideTokenService(i do.Injector) (*aiclient.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	keyHex := cfg.AI.TokenKey
	if keyHex == "" {
		loaded, err := aiclient.LoadOrGenerateKey(cfg.Library.DataPath)
		if err != nil {
			return nil, err
		}
		keyHex = loaded
		cfg.AI.TokenKey = loaded
	}

	deviceID, err := aiclient.LoadOrGenerateDeviceID(cfg.Library.DataPath)
	if err != nil {
		return nil, err
	}

	log.Info("Token service initialized", "device_id", deviceID)

	return aiclient.NewTokenService(keyHex, deviceID)
}

// ProvideAIClient provides the AI service client.
func ProvideAIClient(i do.Injector) (*aiclient.Client, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	tokens := do.MustInvoke[*aiclient.TokenService](i)

	rate := float64(cfg.AI.MaxConcurrent)
	return aiclient.New(cfg.AI.BaseURL, tokens, log.Logger,
		aiclient.WithRequestRate(rate, cfg.AI.MaxConcurrent),
	), nil
}
