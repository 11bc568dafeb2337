// Package config loads the application configuration from a YAML file and
// fills in defaults. Flags override file values at the app layer.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names accepted by the configuration.
const (
	BackendScoped  = "scoped"
	BackendLibrary = "library"
)

type UploadConfig struct {
	Endpoint string        `yaml:"endpoint"`
	AutoSend bool          `yaml:"auto_send"`
	Timeout  time.Duration `yaml:"timeout"`
}

type TimeoutConfig struct {
	SingleFile time.Duration `yaml:"single_file"`
	MultiFile  time.Duration `yaml:"multi_file"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Config struct {
	Backend    string        `yaml:"backend"`
	MediaDirs  []string      `yaml:"media_dirs"`
	PrivateDir string        `yaml:"private_dir"`
	CatalogDir string        `yaml:"catalog_dir"`
	DeviceID   string        `yaml:"device_id"`
	GPXTrack   string        `yaml:"gpx_track"`
	Upload     UploadConfig  `yaml:"upload"`
	Timeouts   TimeoutConfig `yaml:"timeouts"`
	Log        LogConfig     `yaml:"log"`
}

// Default returns the configuration used when no file is present: scoped
// backend, auto-send off.
func Default() Config {
	return Config{
		Backend: BackendScoped,
		Upload: UploadConfig{
			AutoSend: false,
			Timeout:  30 * time.Second,
		},
		Timeouts: TimeoutConfig{
			SingleFile: 10 * time.Second,
			MultiFile:  30 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML configuration file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate normalizes the configuration and rejects unusable combinations.
func (c *Config) Validate() error {
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.PrivateDir = strings.TrimSpace(c.PrivateDir)
	c.CatalogDir = strings.TrimSpace(c.CatalogDir)
	c.Upload.Endpoint = strings.TrimSpace(c.Upload.Endpoint)

	switch c.Backend {
	case "":
		c.Backend = BackendScoped
	case BackendScoped, BackendLibrary:
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendScoped, BackendLibrary)
	}

	if c.Backend == BackendLibrary && c.CatalogDir == "" {
		return fmt.Errorf("catalog directory is required for the %s backend", BackendLibrary)
	}
	if c.Timeouts.SingleFile <= 0 {
		c.Timeouts.SingleFile = 10 * time.Second
	}
	if c.Timeouts.MultiFile <= 0 {
		c.Timeouts.MultiFile = 30 * time.Second
	}
	if c.Upload.Timeout <= 0 {
		c.Upload.Timeout = 30 * time.Second
	}
	if c.Upload.AutoSend && c.Upload.Endpoint == "" {
		return fmt.Errorf("upload endpoint is required when auto_send is enabled")
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	return nil
}
