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
	App      AppConfig
	Logger   LoggerConfig
	Storage  StorageConfig
	Remote   RemoteConfig
	Download DownloadConfig
	Sync     SyncConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// StorageConfig holds local storage configuration.
type StorageConfig struct {
	// DataPath is the base directory for all local state. Payload blobs live
	// under {data}/blobs, the metadata database at {data}/metadata.db.
	DataPath string
	// BudgetBytes is the storage ceiling for offline downloads. Also used as
	// the fallback capacity when the platform estimate is unavailable.
	BudgetBytes int64
}

// RemoteConfig holds remote store configuration.
type RemoteConfig struct {
	// BaseURL of the remote document store (e.g. http://localhost:8080).
	BaseURL string
	// Timeout for individual remote calls (default: 15s).
	Timeout time.Duration
	// ProbeInterval is how often connectivity is re-checked (default: 30s).
	ProbeInterval time.Duration
}

// DownloadConfig holds download manager configuration.
type DownloadConfig struct {
	// Timeout bounds a single text or audio fetch (default: 30s).
	Timeout time.Duration
	// BatchDelay is the yield between items in a batch download (default: 150ms).
	BatchDelay time.Duration
	// MaxPayloadBytes caps a single fetched payload (default: 50MB).
	MaxPayloadBytes int64
}

// SyncConfig holds progress sync configuration.
type SyncConfig struct {
	// DebounceInterval is the minimum gap between activity-triggered remote
	// pushes (default: 2s).
	DebounceInterval time.Duration
}

// Default storage budget when none is configured: 500MB.
const defaultBudgetBytes = 500 * 1024 * 1024

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for local storage")
	budgetBytes := flag.String("budget-bytes", "", "Offline storage budget in bytes")
	remoteURL := flag.String("remote-url", "", "Base URL of the remote document store")
	remoteTimeout := flag.String("remote-timeout", "", "Remote call timeout (default: 15s)")
	probeInterval := flag.String("probe-interval", "", "Connectivity probe interval (default: 30s)")
	downloadTimeout := flag.String("download-timeout", "", "Per-fetch download timeout (default: 30s)")
	batchDelay := flag.String("batch-delay", "", "Delay between batch download items (default: 150ms)")
	maxPayload := flag.String("max-payload-bytes", "", "Maximum single payload size (default: 52428800)")
	debounce := flag.String("sync-debounce", "", "Minimum gap between activity-triggered pushes (default: 2s)")
	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Storage: StorageConfig{
			DataPath:    getConfigValue(*dataPath, "DATA_PATH", ""),
			BudgetBytes: getInt64ConfigValue(*budgetBytes, "BUDGET_BYTES", defaultBudgetBytes),
		},
		Remote: RemoteConfig{
			BaseURL: getConfigValue(*remoteURL, "REMOTE_URL", "http://localhost:8080"),
		},
		Download: DownloadConfig{
			MaxPayloadBytes: getInt64ConfigValue(*maxPayload, "MAX_PAYLOAD_BYTES", 50*1024*1024),
		},
		Sync: SyncConfig{},
	}

	var err error
	if cfg.Remote.Timeout, err = parseDurationValue(*remoteTimeout, "REMOTE_TIMEOUT", "15s"); err != nil {
		return nil, err
	}
	if cfg.Remote.ProbeInterval, err = parseDurationValue(*probeInterval, "PROBE_INTERVAL", "30s"); err != nil {
		return nil, err
	}
	if cfg.Download.Timeout, err = parseDurationValue(*downloadTimeout, "DOWNLOAD_TIMEOUT", "30s"); err != nil {
		return nil, err
	}
	if cfg.Download.BatchDelay, err = parseDurationValue(*batchDelay, "BATCH_DELAY", "150ms"); err != nil {
		return nil, err
	}
	if cfg.Sync.DebounceInterval, err = parseDurationValue(*debounce, "SYNC_DEBOUNCE", "2s"); err != nil {
		return nil, err
	}

	// Expand and validate the data path.
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

	if c.Storage.DataPath == "" {
		return errors.New("data path cannot be empty after expansion")
	}
	if c.Storage.BudgetBytes <= 0 {
		return fmt.Errorf("storage budget must be positive, got %d", c.Storage.BudgetBytes)
	}
	if c.Remote.BaseURL == "" {
		return errors.New("remote URL is required")
	}

	return nil
}

// BlobPath returns the byte store directory under the data path.
func (c *Config) BlobPath() string {
	return filepath.Join(c.Storage.DataPath, "blobs")
}

// MetadataDBPath returns the metadata database file under the data path.
func (c *Config) MetadataDBPath() string {
	return filepath.Join(c.Storage.DataPath, "metadata.db")
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

// expandDataPath expands ~ and makes the path absolute.
// Defaults to ~/Readwell/data.
func (c *Config) expandDataPath() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultPath := filepath.Join(homeDir, "Readwell", "data")

	expanded, err := expandPath(c.Storage.DataPath, defaultPath)
	if err != nil {
		return err
	}
	c.Storage.DataPath = expanded
	return nil
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

// parseDurationValue resolves a duration from flag, env var, or default.
func parseDurationValue(flagValue, envKey, defaultValue string) (time.Duration, error) {
	strValue := getConfigValue(flagValue, envKey, defaultValue)
	d, err := time.ParseDuration(strValue)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", envKey, strValue, err)
	}
	return d, nil
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

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
