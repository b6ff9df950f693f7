// Package frames defines the frame model shared by the observer and the
// ingest surface.
//
// DESIGN: A Frame is one unit of data crossing the observed pipeline. The
// observer only ever reads frames - it never mutates or delays them. The
// pipeline that owns the frames supplies the direction alongside each
// notification; it is never inferred from content.
//
// FILES:
//   - frames.go: Frame, Type, Direction, field accessors
//   - tags.go:   Type -> short display tag table
//   - wire.go:   Serializer interface and the protobuf wire codec
package frames

import (
	"encoding/json"
	"unicode/utf8"
)

// Type is the stable key identifying a frame's logical type. It is used as
// the key for counters and latency buckets, so it must be deterministic and
// shared across all observers in a process.
type Type string

// Known frame types. The set mirrors the frame taxonomy of voice-agent
// pipelines: speech events, transcription, LLM text, raw audio, TTS markers
// and pipeline control signals.
const (
	TypeUserStartedSpeaking Type = "UserStartedSpeakingFrame"
	TypeUserStoppedSpeaking Type = "UserStoppedSpeakingFrame"
	TypeBotStartedSpeaking  Type = "BotStartedSpeakingFrame"
	TypeBotStoppedSpeaking  Type = "BotStoppedSpeakingFrame"
	TypeTranscription       Type = "TranscriptionFrame"
	TypeInterimTranscript   Type = "InterimTranscriptionFrame"
	TypeLLMText             Type = "LLMTextFrame"
	TypeText                Type = "TextFrame"
	TypeInputAudioRaw       Type = "InputAudioRawFrame"
	TypeOutputAudioRaw      Type = "OutputAudioRawFrame"
	TypeTTSStarted          Type = "TTSStartedFrame"
	TypeTTSStopped          Type = "TTSStoppedFrame"
	TypeLLMResponseStart    Type = "LLMFullResponseStartFrame"
	TypeLLMResponseEnd      Type = "LLMFullResponseEndFrame"
	TypeStart               Type = "StartFrame"
	TypeEnd                 Type = "EndFrame"
	TypeCancel              Type = "CancelFrame"
	TypeTransportMessage    Type = "OutputTransportMessageFrame"
)

// Direction is the frame's flow relative to the pipeline.
type Direction int

const (
	DirectionDownstream Direction = iota // toward the output stage
	DirectionUpstream                    // toward the input/capture stage
	DirectionControl                     // pipeline control metadata
)

// String returns the direction label used in stats breakdowns and logs.
func (d Direction) String() string {
	switch d {
	case DirectionDownstream:
		return "downstream"
	case DirectionUpstream:
		return "upstream"
	default:
		return "control"
	}
}

// Well-known field names within Frame.Fields.
const (
	FieldText        = "text"
	FieldAudio       = "audio"
	FieldSampleRate  = "sample_rate"
	FieldNumChannels = "num_channels"
	FieldMessage     = "message"
	FieldUserID      = "user_id"
	FieldTimestamp   = "timestamp"
)

// Frame is one unit of pipeline data as seen by the observer. Frames are
// immutable from the observer's perspective: nothing in this repository
// writes to a Frame after construction.
type Frame struct {
	ID          uint64         // pipeline-assigned identity, 0 if unknown
	Type        Type           // logical type key
	Source      string         // originating node name, display only
	Destination string         // receiving node name, display only
	Fields      map[string]any // named field values (text, numeric, blob, nested)
	Payload     []byte         // optional pre-serialized wire representation
}

// Text returns the frame's text field, or "" when absent.
func (f *Frame) Text() string {
	s, _ := f.Fields[FieldText].(string)
	return s
}

// Audio returns the frame's raw audio bytes, or nil when absent.
func (f *Frame) Audio() []byte {
	b, _ := f.Fields[FieldAudio].([]byte)
	return b
}

// SampleRate returns the audio sample rate in Hz, or 0 when absent.
func (f *Frame) SampleRate() int {
	return intField(f.Fields[FieldSampleRate])
}

// NumChannels returns the audio channel count, or 0 when absent.
func (f *Frame) NumChannels() int {
	return intField(f.Fields[FieldNumChannels])
}

// Message returns the frame's structured message payload as raw JSON, or nil
// when absent. Both json.RawMessage and plain string values are accepted.
func (f *Frame) Message() json.RawMessage {
	switch v := f.Fields[FieldMessage].(type) {
	case json.RawMessage:
		return v
	case []byte:
		return v
	case string:
		return json.RawMessage(v)
	default:
		return nil
	}
}

// UserID returns the transcription user ID, or "" when absent.
func (f *Frame) UserID() string {
	s, _ := f.Fields[FieldUserID].(string)
	return s
}

func intField(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint32:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

// TruncateRunes shortens s to at most limit characters, appending a marker
// when content was dropped. Counting is rune-based so multi-byte text is
// never cut mid-character.
func TruncateRunes(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
