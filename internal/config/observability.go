// Observer configuration - capture flags and background-work budgets.
//
// DESIGN: ObservabilityConfig is a value type treated as an immutable
// snapshot: the observer copies it at construction and never re-reads the
// source. Re-creating the observer is the only way to change behavior
// mid-process, which keeps the hot path free of config synchronization.
package config

import (
	"fmt"
	"time"
)

// ObservabilityConfig controls what the frame observer captures and how much
// background work it may queue.
type ObservabilityConfig struct {
	Enabled             bool `yaml:"enabled"`               // Master switch
	EnableBinaryLogging bool `yaml:"enable_binary_logging"` // Serialize+decode payloads in background
	EnableAudioCapture  bool `yaml:"enable_audio_capture"`  // Include audio frames in capture
	EnableTextCapture   bool `yaml:"enable_text_capture"`   // Include text/transcript/LLM frames
	EnableTimingMetrics bool `yaml:"enable_timing_metrics"` // Maintain inter-frame latency stats
	TruncateTextAt      int  `yaml:"truncate_text_at"`      // Max chars of text shown per log line

	QueueSize     int           `yaml:"queue_size"`     // Background decode queue capacity
	Workers       int           `yaml:"workers"`        // Background worker count
	DecodeTimeout time.Duration `yaml:"decode_timeout"` // Per-task serialize+decode budget
	DrainTimeout  time.Duration `yaml:"drain_timeout"`  // Max wait for in-flight tasks on reset
}

// DefaultObservability returns the default observer settings: everything on
// except raw audio capture.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:             true,
		EnableBinaryLogging: true,
		EnableAudioCapture:  false,
		EnableTextCapture:   true,
		EnableTimingMetrics: true,
		TruncateTextAt:      80,
		QueueSize:           256,
		Workers:             2,
		DecodeTimeout:       2 * time.Second,
		DrainTimeout:        3 * time.Second,
	}
}

// Validate rejects configurations the observer must not be constructed with.
func (c ObservabilityConfig) Validate() error {
	if c.TruncateTextAt < 1 {
		return fmt.Errorf("observer.truncate_text_at must be >= 1, got %d", c.TruncateTextAt)
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("observer.queue_size must be >= 1, got %d", c.QueueSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("observer.workers must be >= 1, got %d", c.Workers)
	}
	if c.DecodeTimeout <= 0 {
		return fmt.Errorf("observer.decode_timeout must be positive, got %s", c.DecodeTimeout)
	}
	if c.DrainTimeout <= 0 {
		return fmt.Errorf("observer.drain_timeout must be positive, got %s", c.DrainTimeout)
	}
	return nil
}
