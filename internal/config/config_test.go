package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development", Version: "dev"},
		Logger: LoggerConfig{Level: "info"},
		Library: LibraryConfig{
			DataPath: "/data/isla",
		},
		Import: ImportConfig{
			MaxFileSize:      50 * 1024 * 1024,
			FallbackEncoding: "gb18030",
			FallbackLanguage: "zh-Hans",
		},
		Sync: SyncConfig{Enabled: true, Interval: 5 * time.Minute},
		AI:   AIConfig{BaseURL: "https://api.islabooks.com", MaxConcurrent: 3},
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	bad := validConfig()
	bad.App.Environment = "testing"
	require.Error(t, bad.Validate())

	bad = validConfig()
	bad.Logger.Level = "verbose"
	require.Error(t, bad.Validate())

	bad = validConfig()
	bad.Import.MaxFileSize = 0
	require.Error(t, bad.Validate())

	bad = validConfig()
	bad.Import.FallbackEncoding = "koi8-r"
	require.Error(t, bad.Validate())
}

func TestExpandDataPathDerivesSubdirectories(t *testing.T) {
	cfg := validConfig()
	cfg.Library.DataPath = t.TempDir()

	require.NoError(t, cfg.expandDataPath())
	require.Equal(t, filepath.Join(cfg.Library.DataPath, "books"), cfg.Library.BooksPath)
	require.Equal(t, filepath.Join(cfg.Library.DataPath, "covers"), cfg.Library.CoversPath)
	require.Equal(t, filepath.Join(cfg.Library.DataPath, "cache"), cfg.Library.CachePath)
	require.Equal(t, filepath.Join(cfg.Library.DataPath, "library.db"), cfg.Library.StorePath)
	require.Equal(t, filepath.Join(cfg.Library.DataPath, "search.bleve"), cfg.Library.IndexPath)
}

func TestExpandPathTilde(t *testing.T) {
	expanded, err := expandPath("~/IslaBooks", "")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(expanded))
	require.Equal(t, "IslaBooks", filepath.Base(expanded))
}

func TestGetConfigValuePrecedence(t *testing.T) {
	t.Setenv("ISLA_TEST_KEY", "from-env")

	require.Equal(t, "from-flag", getConfigValue("from-flag", "ISLA_TEST_KEY", "default"))
	require.Equal(t, "from-env", getConfigValue("", "ISLA_TEST_KEY", "default"))
	require.Equal(t, "default", getConfigValue("", "ISLA_TEST_UNSET", "default"))
}

func TestGetBoolConfigValue(t *testing.T) {
	require.True(t, getBoolConfigValue("yes", "ISLA_TEST_BOOL", false))
	require.True(t, getBoolConfigValue("1", "ISLA_TEST_BOOL", false))
	require.False(t, getBoolConfigValue("no", "ISLA_TEST_BOOL", true))
	require.True(t, getBoolConfigValue("", "ISLA_TEST_BOOL_UNSET", true))
}
