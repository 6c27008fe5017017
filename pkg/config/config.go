package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getmockd/apidiag/pkg/apilog"
	"github.com/getmockd/apidiag/pkg/httpclient"
	"github.com/getmockd/apidiag/pkg/kvstore"
	"github.com/getmockd/apidiag/pkg/redact"
	"github.com/getmockd/apidiag/pkg/viewer"
)

// AppDir is the directory name used under the user config directory.
const AppDir = "apidiag"

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "APIDIAG_"

// Config is the complete apidiag configuration.
type Config struct {
	// Enabled is the capture flag used on first run, before any flag has
	// been persisted.
	Enabled bool `json:"enabled" yaml:"enabled" env:"ENABLED"`

	// MaxLogs bounds the number of retained entries.
	MaxLogs int `json:"maxLogs" yaml:"maxLogs" env:"MAX_LOGS"`

	// MaxBodyBytes truncates captured bodies; 0 keeps them whole.
	MaxBodyBytes int `json:"maxBodyBytes" yaml:"maxBodyBytes" env:"MAX_BODY_BYTES"`

	Storage StorageConfig `json:"storage" yaml:"storage" envPrefix:"STORAGE_"`
	Log     LogConfig     `json:"log" yaml:"log" envPrefix:"LOG_"`
	Viewer  ViewerConfig  `json:"viewer" yaml:"viewer" envPrefix:"VIEWER_"`
	Retry   RetryConfig   `json:"retry" yaml:"retry" envPrefix:"RETRY_"`
	Redact  redact.Config `json:"redact" yaml:"redact" envPrefix:"REDACT_"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver" env:"DRIVER"`
	Path   string `json:"path" yaml:"path" env:"PATH"`
}

// LogConfig controls operational logging.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"LEVEL"`
	Format string `json:"format" yaml:"format" env:"FORMAT"`
}

// ViewerConfig controls the viewer API.
type ViewerConfig struct {
	Addr string `json:"addr" yaml:"addr" env:"ADDR"`
}

// RetryConfig controls the reference HTTP client.
type RetryConfig struct {
	MaxRetries      int           `json:"maxRetries" yaml:"maxRetries" env:"MAX_RETRIES"`
	InitialInterval time.Duration `json:"initialInterval" yaml:"initialInterval" env:"INITIAL_INTERVAL"`
	MaxInterval     time.Duration `json:"maxInterval" yaml:"maxInterval" env:"MAX_INTERVAL"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Enabled:      false,
		MaxLogs:      apilog.DefaultMaxLogs,
		MaxBodyBytes: apilog.DefaultMaxBodyBytes,
		Storage: StorageConfig{
			Driver: kvstore.DriverFile,
			Path:   DefaultStoragePath(kvstore.DriverFile),
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "text",
		},
		Viewer: ViewerConfig{
			Addr: viewer.DefaultAddr,
		},
		Retry: RetryConfig{
			MaxRetries:      httpclient.DefaultMaxRetries,
			InitialInterval: httpclient.DefaultInitialInterval,
			MaxInterval:     httpclient.DefaultMaxInterval,
		},
	}
}

// Dir returns the apidiag directory under the user config directory, or
// the working directory when none is available.
func Dir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(base, AppDir)
}

// DefaultConfigPath is the config file looked up when no path is given.
func DefaultConfigPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

// DefaultStoragePath returns the default backend location for driver.
func DefaultStoragePath(driver string) string {
	switch driver {
	case kvstore.DriverSQLite:
		return filepath.Join(Dir(), "logs.db")
	case kvstore.DriverFile:
		return filepath.Join(Dir(), "logs.json")
	default:
		return ""
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxLogs <= 0 {
		return &ConfigError{Field: "maxLogs", Message: "must be greater than 0"}
	}
	if c.MaxBodyBytes < 0 {
		return &ConfigError{Field: "maxBodyBytes", Message: "must not be negative"}
	}

	switch c.Storage.Driver {
	case kvstore.DriverMemory:
	case kvstore.DriverFile, kvstore.DriverSQLite:
		if strings.TrimSpace(c.Storage.Path) == "" {
			return &ConfigError{Field: "storage.path", Message: "is required for driver " + c.Storage.Driver}
		}
	default:
		return &ConfigError{Field: "storage.driver", Message: "must be one of: memory, file, sqlite"}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return &ConfigError{Field: "log.level", Message: "must be one of: debug, info, warn, error"}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return &ConfigError{Field: "log.format", Message: "must be one of: text, json"}
	}

	if c.Retry.MaxRetries < 0 || c.Retry.MaxRetries > 10 {
		return &ConfigError{Field: "retry.maxRetries", Message: "must be between 0 and 10"}
	}
	if c.Retry.InitialInterval <= 0 {
		return &ConfigError{Field: "retry.initialInterval", Message: "must be positive"}
	}
	if c.Retry.MaxInterval < c.Retry.InitialInterval {
		return &ConfigError{Field: "retry.maxInterval", Message: "must not be less than retry.initialInterval"}
	}
	return nil
}

// ConfigError describes an invalid configuration file or value.
type ConfigError struct {
	Path    string
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Path != "" && e.Field != "":
		return fmt.Sprintf("config %s: %s: %s", e.Path, e.Field, e.Message)
	case e.Path != "":
		return fmt.Sprintf("config %s: %s", e.Path, e.Message)
	default:
		return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
	}
}
