// Package monitoring - types.go defines shared event types.
//
// DESIGN: These types are used by the observer, the telemetry tracker and
// the frame logger. Defined here ONCE to avoid duplication and circular
// imports: the observer builds events, monitoring renders and records them.
package monitoring

import (
	"time"

	"github.com/voxlab/pipescope/internal/stats"
)

// FrameEvent captures one observed frame for trace logging and telemetry.
// All pipeline-specific values are already rendered to plain strings so the
// event can be logged, JSONL-appended or streamed without further lookups.
type FrameEvent struct {
	Timestamp   time.Time `json:"timestamp"`              // the frame's own observation time
	ElapsedSec  float64   `json:"elapsed_sec"`            // seconds since session start
	Direction   string    `json:"direction"`              // downstream, upstream, control
	Glyph       string    `json:"-"`                      // display arrow for the direction
	Category    string    `json:"category"`               // text, transcription, audio, control, other
	Tag         string    `json:"tag"`                    // short frame tag (STT, LLM, ...)
	FrameType   string    `json:"frame_type"`             // full frame type key
	Source      string    `json:"source"`                 // shortened source node name
	Destination string    `json:"destination"`            // shortened destination node name
	LatencyMs   float64   `json:"latency_ms"`             // gap to previous frame on this channel, <0 when unknown
	Content     string    `json:"content,omitempty"`      // truncated text or audio summary
	WireBytes   int       `json:"wire_bytes,omitempty"`   // serialized payload size
	WireSummary string    `json:"wire_summary,omitempty"` // decoded payload summary
	Decodable   bool      `json:"decodable,omitempty"`    // whether the payload decoded
}

// RunSummaryEvent is the end-of-run (or reset) statistics record.
type RunSummaryEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"run_id,omitempty"`
	Stats     stats.Snapshot `json:"stats"`
}

// TelemetryConfig contains telemetry configuration.
type TelemetryConfig struct {
	Enabled     bool   // master switch
	LogPath     string // JSONL file path; empty disables file output
	LogToStdout bool   // also emit events through zerolog
}
