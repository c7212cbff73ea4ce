package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App:    AppConfig{Environment: "development"},
		Logger: LoggerConfig{Level: "info"},
		Storage: StorageConfig{
			DataPath:    "/some/path",
			BudgetBytes: defaultBudgetBytes,
		},
		Remote: RemoteConfig{
			BaseURL:       "http://localhost:8080",
			Timeout:       15 * time.Second,
			ProbeInterval: 30 * time.Second,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_Environments(t *testing.T) {
	tests := []struct {
		env   string
		valid bool
	}{
		{"development", true},
		{"staging", true},
		{"production", true},
		{"test", false},
		{"", false},
		{"DEVELOPMENT", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = tt.env
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_LogLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "WARN"} {
		cfg := validConfig()
		cfg.Logger.Level = level
		assert.NoError(t, cfg.Validate(), "level %q", level)
	}

	cfg := validConfig()
	cfg.Logger.Level = "verbose"
	assert.Error(t, cfg.Validate())
}

func TestValidate_Storage(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.DataPath = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage.BudgetBytes = 0
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage.BudgetBytes = -1
	assert.Error(t, cfg.Validate())
}

func TestValidate_RemoteURL(t *testing.T) {
	cfg := validConfig()
	cfg.Remote.BaseURL = ""
	assert.Error(t, cfg.Validate())
}

func TestPaths(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, "/some/path/blobs", cfg.BlobPath())
	assert.Equal(t, "/some/path/metadata.db", cfg.MetadataDBPath())
}

func TestExpandPath(t *testing.T) {
	got, err := expandPath("", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/default", got)

	got, err = expandPath("/abs/path", "/default")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)

	got, err = expandPath("~/data", "/default")
	require.NoError(t, err)
	assert.NotContains(t, got, "~")
	assert.True(t, len(got) > len("/data"))
}
