// Package config loads a host binary's bootstrap configuration: the
// Unix socket path to listen on or dial, logging level and directory,
// and a debug flag. Adapted from the teacher's internal/config.Config,
// trimmed to this scope — the GOX-specific Cells/Pool/BaseDir
// pipeline-topology fields are removed, since the pub/sub cell topology
// they configure is out of scope here.
//
// Called by: cmd/ipcrpcd
// Calls: gopkg.in/yaml.v3
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is a host binary's bootstrap configuration.
type Config struct {
	AppName string `yaml:"app_name"`
	Debug   bool   `yaml:"debug"`

	Socket SocketConfig `yaml:"socket"`
	Log    LogConfig    `yaml:"log"`
}

// SocketConfig names the Unix domain socket a host binary listens on
// (server role) or dials (client role).
type SocketConfig struct {
	Path string `yaml:"path"`
}

// LogConfig configures the structured logger (see the logging package).
type LogConfig struct {
	Level string `yaml:"level"`
	Dir   string `yaml:"dir"`
}

// Load reads and parses a YAML config file at filename, defaulting the
// socket path and log level when they are unset. Other fields keep
// their zero values.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", filename, err)
	}

	if cfg.Socket.Path == "" {
		cfg.Socket.Path = "/tmp/ipcrpc.sock"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return &cfg, nil
}
