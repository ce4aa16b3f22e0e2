package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds all configuration for AudioDrop
type Config struct {
	// Server configuration
	Listen    string `mapstructure:"listen" validate:"required"`
	DataDir   string `mapstructure:"data_dir" validate:"required"`
	LogLevel  string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	PublicURL string `mapstructure:"public_url" validate:"required,url"`

	// TLS configuration
	EnableTLS bool   `mapstructure:"enable_tls"`
	CertFile  string `mapstructure:"cert_file" validate:"required_with=EnableTLS,omitempty,file"`
	KeyFile   string `mapstructure:"key_file" validate:"required_with=EnableTLS,omitempty,file"`

	// Storage configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Auth configuration
	Auth AuthConfig `mapstructure:"auth"`

	// Share link configuration
	Share ShareConfig `mapstructure:"share"`

	// Metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// StorageConfig defines the storage root and upload limits
type StorageConfig struct {
	// Root is the directory all user content lives under. Defaults to
	// <data_dir>/uploads when empty.
	Root string `mapstructure:"root"`

	// MaxUploadBytes caps a single upload body.
	MaxUploadBytes int64 `mapstructure:"max_upload_bytes" validate:"gt=0"`
}

// AuthConfig defines the two-password authentication gate
type AuthConfig struct {
	// ViewPassword grants read-only browsing; EditPassword grants mutations.
	// Values may be plaintext or bcrypt hashes ($2a$/$2b$ prefix).
	ViewPassword string `mapstructure:"view_password" validate:"required"`
	EditPassword string `mapstructure:"edit_password" validate:"required"`

	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=16"`

	// SessionTTLHours bounds how long an issued session token is honored.
	SessionTTLHours int `mapstructure:"session_ttl_hours" validate:"gt=0"`
}

// ShareConfig defines share-store persistence
type ShareConfig struct {
	// Backend selects the share store: "json" (single document, default)
	// or "sqlite".
	Backend string `mapstructure:"backend" validate:"oneof=json sqlite"`

	// File is the JSON store path. Defaults to <data_dir>/shared_links.json.
	File string `mapstructure:"file"`
}

// MetricsConfig defines metrics exposure
type MetricsConfig struct {
	Enable bool   `mapstructure:"enable"`
	Path   string `mapstructure:"path"`
}

// Load loads configuration from flags, config file and environment
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if err := bindFlags(cmd, v); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	if configFile, _ := cmd.Flags().GetString("config"); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("AUDIODROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDerived(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks structural constraints on a config
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.Auth.ViewPassword == cfg.Auth.EditPassword {
		return fmt.Errorf("view_password and edit_password must differ")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("log_level", "info")
	v.SetDefault("public_url", "http://localhost:8080")

	v.SetDefault("enable_tls", false)

	v.SetDefault("storage.root", "")
	v.SetDefault("storage.max_upload_bytes", int64(500*1024*1024))

	// Registered empty so env vars bind; validation rejects blanks, so
	// there are still no usable default credentials.
	v.SetDefault("auth.view_password", "")
	v.SetDefault("auth.edit_password", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.session_ttl_hours", 24)

	v.SetDefault("share.backend", "json")
	v.SetDefault("share.file", "")

	v.SetDefault("metrics.enable", true)
	v.SetDefault("metrics.path", "/metrics")
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	flags := map[string]string{
		"listen":     "listen",
		"data-dir":   "data_dir",
		"log-level":  "log_level",
		"public-url": "public_url",
	}
	for flag, key := range flags {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return err
			}
		}
	}
	return nil
}

// applyDerived fills paths that default relative to data_dir
func applyDerived(cfg *Config) {
	if cfg.DataDir != "" {
		if abs, err := filepath.Abs(cfg.DataDir); err == nil {
			cfg.DataDir = abs
		}
	}
	if cfg.Storage.Root == "" {
		cfg.Storage.Root = filepath.Join(cfg.DataDir, "uploads")
	}
	if cfg.Share.File == "" {
		cfg.Share.File = filepath.Join(cfg.DataDir, "shared_links.json")
	}
	// Tests and first runs need the data dir to exist before anything else.
	_ = os.MkdirAll(cfg.DataDir, 0755)
}
