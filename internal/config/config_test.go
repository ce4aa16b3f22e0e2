package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.PersistentFlags().StringP("config", "c", "", "")
	cmd.PersistentFlags().StringP("data-dir", "d", "./data", "")
	cmd.PersistentFlags().StringP("listen", "l", ":8080", "")
	cmd.PersistentFlags().StringP("public-url", "", "http://localhost:8080", "")
	cmd.PersistentFlags().StringP("log-level", "", "info", "")
	return cmd
}

func validConfig(t *testing.T) *Config {
	dataDir := t.TempDir()
	return &Config{
		Listen:    ":8080",
		DataDir:   dataDir,
		LogLevel:  "info",
		PublicURL: "http://localhost:8080",
		Storage: StorageConfig{
			Root:           filepath.Join(dataDir, "uploads"),
			MaxUploadBytes: 500 * 1024 * 1024,
		},
		Auth: AuthConfig{
			ViewPassword:    "view",
			EditPassword:    "edit",
			JWTSecret:       "0123456789abcdef0123",
			SessionTTLHours: 24,
		},
		Share: ShareConfig{
			Backend: "json",
			File:    filepath.Join(dataDir, "shared_links.json"),
		},
		Metrics: MetricsConfig{Enable: true, Path: "/metrics"},
	}
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, Validate(validConfig(t)))
}

func TestValidateRejections(t *testing.T) {
	t.Run("Missing passwords", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Auth.ViewPassword = ""
		assert.Error(t, Validate(cfg))
	})

	t.Run("Identical passwords", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Auth.EditPassword = cfg.Auth.ViewPassword
		assert.Error(t, Validate(cfg))
	})

	t.Run("Short JWT secret", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Auth.JWTSecret = "short"
		assert.Error(t, Validate(cfg))
	})

	t.Run("Unknown share backend", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Share.Backend = "etcd"
		assert.Error(t, Validate(cfg))
	})

	t.Run("Bad log level", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.LogLevel = "loud"
		assert.Error(t, Validate(cfg))
	})

	t.Run("Non-positive upload cap", func(t *testing.T) {
		cfg := validConfig(t)
		cfg.Storage.MaxUploadBytes = 0
		assert.Error(t, Validate(cfg))
	})
}

func TestLoadDerivedPaths(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("AUDIODROP_DATA_DIR", dataDir)
	t.Setenv("AUDIODROP_AUTH_VIEW_PASSWORD", "view")
	t.Setenv("AUDIODROP_AUTH_EDIT_PASSWORD", "edit")
	t.Setenv("AUDIODROP_AUTH_JWT_SECRET", "0123456789abcdef0123")

	cfg, err := Load(testCommand())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dataDir, "uploads"), cfg.Storage.Root)
	assert.Equal(t, filepath.Join(dataDir, "shared_links.json"), cfg.Share.File)
	assert.Equal(t, "json", cfg.Share.Backend)
	assert.Equal(t, int64(500*1024*1024), cfg.Storage.MaxUploadBytes)
}

func TestLoadMissingCredentialsFails(t *testing.T) {
	t.Setenv("AUDIODROP_DATA_DIR", t.TempDir())

	_, err := Load(testCommand())
	assert.Error(t, err, "no default passwords may exist")
}
