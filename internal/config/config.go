// Package config loads the opendeck configuration file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Sync   SyncConfig   `yaml:"sync"`
	Log    LogConfig    `yaml:"log"`
}

type EngineConfig struct {
	// URL of an already-running engine. Empty means spawn one.
	URL   string `yaml:"url"`
	Token string `yaml:"token"`

	// Path to the engine binary; empty resolves from sidecar dirs and $PATH.
	Path     string `yaml:"path"`
	Hostname string `yaml:"hostname"`
	Port     int    `yaml:"port"` // 0 picks a free port
}

type SyncConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval"`
}

type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Hostname: "127.0.0.1",
		},
		Sync: SyncConfig{
			FlushInterval: 16 * time.Millisecond,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; everything then comes from Default.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultPath returns the conventional config location under the user config
// directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "opendeck.yaml"
	}
	return filepath.Join(dir, "opendeck", "config.yaml")
}
