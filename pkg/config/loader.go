package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Load builds the configuration from defaults, the YAML file at path and
// the environment, then validates it.
//
// An empty path loads DefaultConfigPath if it exists. A non-empty path must
// exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	file := path
	if file == "" {
		file = DefaultConfigPath()
		if _, err := os.Stat(file); err != nil {
			file = ""
		}
	}
	if file != "" {
		if err := loadFile(cfg, file); err != nil {
			return nil, err
		}
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	// A driver switch without a path gets that driver's default location.
	if cfg.Storage.Path == DefaultStoragePath(Default().Storage.Driver) && cfg.Storage.Driver != Default().Storage.Driver {
		cfg.Storage.Path = DefaultStoragePath(cfg.Storage.Driver)
	}

	if err := cfg.Validate(); err != nil {
		var cfgErr *ConfigError
		if errors.As(err, &cfgErr) && file != "" {
			cfgErr.Path = file
		}
		return nil, err
	}
	return cfg, nil
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &ConfigError{Path: path, Message: "file not found"}
		}
		return fmt.Errorf("read config: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return &ConfigError{Path: path, Message: err.Error()}
	}
	return nil
}

// ApplyEnv overlays APIDIAG_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// YAML renders cfg as YAML.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
