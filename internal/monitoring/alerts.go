// Package monitoring - alerts.go flags anomalies in the observation path.
//
// DESIGN: AlertManager logs notable events at appropriate levels:
//   - FlagSerializeFailure: Warn when the host serializer fails for a frame
//   - FlagQueueOverflow:    Warn when the decode queue drops a task
//   - FlagSlowDecode:       Warn when a decode task exceeds the threshold
//   - FlagPanic:            Error on panics recovered at the task boundary
package monitoring

import "time"

// DefaultSlowDecodeThreshold applies when the config leaves the threshold 0.
const DefaultSlowDecodeThreshold = 500 * time.Millisecond

// AlertManager flags anomalies and errors.
type AlertManager struct {
	logger              *Logger
	slowDecodeThreshold time.Duration
}

// NewAlertManager creates a new alert manager.
func NewAlertManager(logger *Logger, slowDecodeThreshold time.Duration) *AlertManager {
	if slowDecodeThreshold == 0 {
		slowDecodeThreshold = DefaultSlowDecodeThreshold
	}
	return &AlertManager{logger: logger, slowDecodeThreshold: slowDecodeThreshold}
}

// FlagSerializeFailure logs a host-serializer failure. The frame stays
// counted; only its decode summary is lost.
func (am *AlertManager) FlagSerializeFailure(frameType, direction string, err error) {
	am.logger.Warn().
		Str("frame_type", frameType).
		Str("direction", direction).
		Err(err).
		Msg("serialize_failed")
}

// FlagQueueOverflow logs a dropped background task.
func (am *AlertManager) FlagQueueOverflow(frameType string, dropped int64) {
	am.logger.Warn().
		Str("frame_type", frameType).
		Int64("dropped_total", dropped).
		Msg("decode_queue_overflow")
}

// FlagSlowDecode logs when a decode task exceeds the threshold.
func (am *AlertManager) FlagSlowDecode(frameType string, took time.Duration) {
	if took < am.slowDecodeThreshold {
		return
	}
	am.logger.Warn().
		Str("frame_type", frameType).
		Dur("took", took).
		Msg("slow_decode")
}

// FlagPanic logs a panic recovered at a background-task boundary.
func (am *AlertManager) FlagPanic(frameType string, panicValue interface{}) {
	am.logger.Error().
		Str("frame_type", frameType).
		Interface("panic", panicValue).
		Msg("panic_recovered")
}
