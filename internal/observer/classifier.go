// Package observer - classifier.go decides what a frame is and whether it is
// worth capturing.
//
// DESIGN: Classification keys off the frame type tag only, never the payload:
// the gating must cost a map lookup, because it runs on the synchronous
// notification path for every frame. Capture gating is evaluated BEFORE any
// serialize/decode work is scheduled.
package observer

import (
	"github.com/voxlab/pipescope/internal/config"
	"github.com/voxlab/pipescope/internal/frames"
)

// Category is the logical class of a frame.
type Category string

const (
	CategoryText          Category = "text"
	CategoryTranscription Category = "transcription"
	CategoryAudio         Category = "audio"
	CategoryControl       Category = "control"
	CategoryOther         Category = "other"
)

var categories = map[frames.Type]Category{
	frames.TypeText:              CategoryText,
	frames.TypeLLMText:           CategoryText,
	frames.TypeTranscription:     CategoryTranscription,
	frames.TypeInterimTranscript: CategoryTranscription,
	frames.TypeInputAudioRaw:     CategoryAudio,
	frames.TypeOutputAudioRaw:    CategoryAudio,
	frames.TypeStart:             CategoryControl,
	frames.TypeEnd:               CategoryControl,
	frames.TypeCancel:            CategoryControl,
}

// Classify returns the frame's logical category, determined by its type tag.
func Classify(f *frames.Frame) Category {
	if cat, ok := categories[f.Type]; ok {
		return cat
	}
	return CategoryOther
}

// IsCapturable reports whether decode/log work may be scheduled for the
// frame under the given configuration. Counting is unconditional and happens
// regardless of this result.
func IsCapturable(f *frames.Frame, cfg config.ObservabilityConfig) bool {
	if !cfg.Enabled {
		return false
	}
	switch Classify(f) {
	case CategoryAudio:
		return cfg.EnableAudioCapture
	case CategoryText, CategoryTranscription:
		return cfg.EnableTextCapture
	default:
		// Control and event frames are always counted; verbose capture only
		// when binary logging is on.
		return cfg.EnableBinaryLogging
	}
}

// DirectionGlyph returns the display arrow for a direction. Pure mapping,
// display only.
func DirectionGlyph(d frames.Direction) string {
	switch d {
	case frames.DirectionDownstream:
		return ">>"
	case frames.DirectionUpstream:
		return "<<"
	default:
		return "--"
	}
}
