// Monitoring configuration - logging and telemetry settings.
//
// DESIGN: Separates logging (zerolog, for operators) from telemetry (JSONL
// files, for analytics). Telemetry paths can be overridden via environment
// variables, see applyEnvOverrides in config.go.
package config

import "fmt"

// MonitoringConfig contains all monitoring settings.
type MonitoringConfig struct {
	// Logging settings
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // json, console, auto
	LogOutput string `yaml:"log_output"` // stdout, stderr, or file path

	// Telemetry settings
	TelemetryEnabled bool   `yaml:"telemetry_enabled"` // Enable JSONL telemetry
	TelemetryPath    string `yaml:"telemetry_path"`    // Path to telemetry JSONL file
	LogToStdout      bool   `yaml:"log_to_stdout"`     // Also log telemetry events via zerolog

	// Alert thresholds
	SlowDecodeThresholdMs int64 `yaml:"slow_decode_threshold_ms"` // Warn when a decode task exceeds this; 0 = default
}

// Validate checks the monitoring settings.
func (c MonitoringConfig) Validate() error {
	switch c.LogFormat {
	case "", "json", "console", "auto":
	default:
		return fmt.Errorf("invalid monitoring.log_format: %q (must be json, console or auto)", c.LogFormat)
	}
	if c.TelemetryEnabled && c.TelemetryPath == "" && !c.LogToStdout {
		return fmt.Errorf("monitoring.telemetry_enabled requires telemetry_path or log_to_stdout")
	}
	if c.SlowDecodeThresholdMs < 0 {
		return fmt.Errorf("monitoring.slow_decode_threshold_ms must be >= 0, got %d", c.SlowDecodeThresholdMs)
	}
	return nil
}
