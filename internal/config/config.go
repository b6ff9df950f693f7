// Package config loads and validates the pipescope configuration.
//
// DESIGN: All configuration comes from YAML files and is validated up front.
// The observer section becomes an immutable snapshot once the observer is
// constructed; changing it requires rebuilding the observer.
//
// FILES:
//   - config.go:        Root Config struct, Load(), Validate(), env expansion
//   - observability.go: ObservabilityConfig (capture flags, budgets, timeouts)
//   - monitoring.go:    Logging and telemetry settings
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for pipescope.
type Config struct {
	Server     ServerConfig        `yaml:"server"`     // HTTP/websocket ingest server
	Store      StoreConfig         `yaml:"store"`      // Run summary store
	Observer   ObservabilityConfig `yaml:"observer"`   // Frame observer settings
	Monitoring MonitoringConfig    `yaml:"monitoring"` // Logging and telemetry
}

// ServerConfig contains the ingest/summary server settings.
type ServerConfig struct {
	Port         int           `yaml:"port"`          // Port to listen on
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Max time to read a request
	WriteTimeout time.Duration `yaml:"write_timeout"` // Max time to write a response
}

// StoreConfig contains run store settings.
type StoreConfig struct {
	Path string `yaml:"path"` // SQLite database path; empty disables persistence
}

// expandEnvWithDefaults expands environment variables with support for
// default values. Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// Load reads configuration from a YAML file.
// Returns an error if the file doesn't exist or is invalid.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config file path is required")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes.
// Supports ${VAR:-default} env var expansion, env overrides, and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// This lets session harnesses redirect telemetry without editing config files.
func (c *Config) applyEnvOverrides() {
	if envPath := os.Getenv("PIPESCOPE_TELEMETRY_LOG"); envPath != "" {
		c.Monitoring.TelemetryPath = envPath
		c.Monitoring.TelemetryEnabled = true
	}

	if envPath := os.Getenv("PIPESCOPE_RUN_DB"); envPath != "" {
		c.Store.Path = envPath
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout == 0 {
		return fmt.Errorf("server.read_timeout is required")
	}
	if c.Server.WriteTimeout == 0 {
		return fmt.Errorf("server.write_timeout is required")
	}

	if err := c.Observer.Validate(); err != nil {
		return err
	}

	return c.Monitoring.Validate()
}
