// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	Library LibraryConfig
	Import  ImportConfig
	Sync    SyncConfig
	AI      AIConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	Version     string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// LibraryConfig holds on-disk library layout configuration.
// Books, covers, cache, and the record store all live under DataPath.
type LibraryConfig struct {
	DataPath   string // base directory (default: ~/IslaBooks)
	BooksPath  string // {data}/books
	CoversPath string // {data}/covers
	CachePath  string // {data}/cache
	StorePath  string // {data}/library.db
	IndexPath  string // {data}/search.bleve
}

// ImportConfig holds book import configuration.
type ImportConfig struct {
	// MaxFileSize is the import size ceiling in bytes (default: 50MB).
	MaxFileSize int64
	// FallbackEncoding is the legacy multi-byte decoder tried after UTF-8
	// and UTF-16 (default: gb18030).
	FallbackEncoding string
	// FallbackLanguage is the language tag used when an EPUB declares none
	// (default: zh-Hans, matching the primary user base).
	FallbackLanguage string
	// InboxPath, when set, is watched for dropped files to auto-import.
	InboxPath string
}

// SyncConfig holds sync engine configuration.
type SyncConfig struct {
	Enabled  bool
	Interval time.Duration // periodic sync interval (default: 5m)
}

// AIConfig holds AI service client configuration.
type AIConfig struct {
	BaseURL string
	// TokenKey is the hex-encoded 32-byte PASETO v4 symmetric key used to
	// mint bearer tokens. Generated on first run when empty.
	TokenKey string
	// MaxConcurrent caps simultaneous AI requests (default: 3).
	MaxConcurrent int
	Timeout       time.Duration
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags (highest).
// 2. Environment variables.
// 3. .env file.
// 4. Defaults (lowest).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for library data")
	inboxPath := flag.String("inbox-path", "", "Directory watched for files to auto-import")
	syncEnabled := flag.String("sync-enabled", "", "Enable cloud sync (default: true)")
	syncInterval := flag.String("sync-interval", "", "Periodic sync interval (default: 5m)")
	aiBaseURL := flag.String("ai-base-url", "", "AI service base URL")
	aiTimeout := flag.String("ai-timeout", "", "AI request timeout (default: 30s)")
	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env if present; env vars already set take precedence.
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
			Version:     getConfigValue("", "ISLA_VERSION", "dev"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Library: LibraryConfig{
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Import: ImportConfig{
			MaxFileSize:      getInt64ConfigValue("", "IMPORT_MAX_FILE_SIZE", 50*1024*1024),
			FallbackEncoding: getConfigValue("", "IMPORT_FALLBACK_ENCODING", "gb18030"),
			FallbackLanguage: getConfigValue("", "IMPORT_FALLBACK_LANGUAGE", "zh-Hans"),
			InboxPath:        getConfigValue(*inboxPath, "IMPORT_INBOX_PATH", ""),
		},
		Sync: SyncConfig{
			Enabled: getBoolConfigValue(*syncEnabled, "SYNC_ENABLED", true),
		},
		AI: AIConfig{
			BaseURL:       getConfigValue(*aiBaseURL, "AI_BASE_URL", "https://api.islabooks.com"),
			TokenKey:      getConfigValue("", "AI_TOKEN_KEY", ""),
			MaxConcurrent: getIntConfigValue("", "AI_MAX_CONCURRENT", 3),
		},
	}

	syncIntervalStr := getConfigValue(*syncInterval, "SYNC_INTERVAL", "5m")
	interval, err := time.ParseDuration(syncIntervalStr)
	if err != nil {
		return nil, fmt.Errorf("invalid sync interval %q: %w", syncIntervalStr, err)
	}
	cfg.Sync.Interval = interval

	aiTimeoutStr := getConfigValue(*aiTimeout, "AI_TIMEOUT", "30s")
	timeout, err := time.ParseDuration(aiTimeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid AI timeout %q: %w", aiTimeoutStr, err)
	}
	cfg.AI.Timeout = timeout

	if err := cfg.expandDataPath(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Library.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}

	if c.Import.MaxFileSize <= 0 {
		return errors.New("import max file size must be positive")
	}

	validEncodings := map[string]bool{
		"gb18030": true,
		"big5":    true,
		"shift_jis": true,
		"euc-kr":  true,
	}
	if !validEncodings[strings.ToLower(c.Import.FallbackEncoding)] {
		return fmt.Errorf("unsupported fallback encoding: %s", c.Import.FallbackEncoding)
	}

	return nil
}

// expandDataPath expands ~ in the data path, makes it absolute, and derives
// the per-concern subdirectories.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "IslaBooks")

	expanded, err := expandPath(c.Library.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Library.DataPath = expanded
	c.Library.BooksPath = filepath.Join(expanded, "books")
	c.Library.CoversPath = filepath.Join(expanded, "covers")
	c.Library.CachePath = filepath.Join(expanded, "cache")
	c.Library.StorePath = filepath.Join(expanded, "library.db")
	c.Library.IndexPath = filepath.Join(expanded, "search.bleve")

	if c.Import.InboxPath != "" {
		expandedInbox, err := expandPath(c.Import.InboxPath, "")
		if err != nil {
			return err
		}
		c.Import.InboxPath = expandedInbox
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts "true", "1", "yes" (case-insensitive) as true.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getInt64ConfigValue returns an int64 from flag, env var, or default.
func getInt64ConfigValue(flagValue, envKey string, defaultValue int64) int64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int64
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Real environment takes precedence over the .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
