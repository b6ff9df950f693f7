package frames

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Wire schema for serialized frames. The envelope is a protobuf message with
// a oneof of the four content-bearing variants; event/control frames have no
// wire form. Field numbers are fixed by the wire format and must not change.
const (
	// Envelope oneof field numbers.
	WireText          protowire.Number = 1
	WireAudio         protowire.Number = 2
	WireTranscription protowire.Number = 3
	WireMessage       protowire.Number = 4

	// Common sub-message fields (text, audio, transcription variants).
	WireFieldID   protowire.Number = 1
	WireFieldName protowire.Number = 2

	// Text and transcription variants.
	WireFieldText      protowire.Number = 3
	WireFieldUserID    protowire.Number = 4
	WireFieldTimestamp protowire.Number = 5

	// Audio variant.
	WireFieldAudio       protowire.Number = 3
	WireFieldSampleRate  protowire.Number = 4
	WireFieldNumChannels protowire.Number = 5

	// Message variant.
	WireFieldData protowire.Number = 1
)

// ErrUnsupportedType reports a frame type with no wire representation.
// Event and control frames (speaking markers, START/END, TTS markers) are
// in-process signals only.
var ErrUnsupportedType = errors.New("frame type has no wire representation")

// Serializer converts a frame to its opaque wire bytes. Implementations may
// be slow; the observer only ever calls Serialize from background tasks and
// passes a context bounded by the per-task decode timeout.
type Serializer interface {
	Serialize(ctx context.Context, f *Frame) ([]byte, error)
}

// WireSerializer encodes frames into the protobuf envelope above. If the
// frame already carries pre-serialized Payload bytes (frames ingested from a
// remote pipeline), those are returned as-is.
type WireSerializer struct{}

// NewWireSerializer returns a serializer for the frame wire schema.
func NewWireSerializer() *WireSerializer { return &WireSerializer{} }

// Serialize implements Serializer.
func (s *WireSerializer) Serialize(ctx context.Context, f *Frame) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.Payload) > 0 {
		return f.Payload, nil
	}

	switch f.Type {
	case TypeText, TypeLLMText:
		return appendEnvelope(WireText, s.appendTextVariant(nil, f)), nil
	case TypeTranscription, TypeInterimTranscript:
		body := s.appendTextVariant(nil, f)
		if uid := f.UserID(); uid != "" {
			body = protowire.AppendTag(body, WireFieldUserID, protowire.BytesType)
			body = protowire.AppendString(body, uid)
		}
		if ts, ok := f.Fields[FieldTimestamp].(string); ok && ts != "" {
			body = protowire.AppendTag(body, WireFieldTimestamp, protowire.BytesType)
			body = protowire.AppendString(body, ts)
		}
		return appendEnvelope(WireTranscription, body), nil
	case TypeInputAudioRaw, TypeOutputAudioRaw:
		return appendEnvelope(WireAudio, s.appendAudioVariant(nil, f)), nil
	case TypeTransportMessage:
		msg := f.Message()
		if msg == nil {
			return nil, fmt.Errorf("%w: %s without message field", ErrUnsupportedType, f.Type)
		}
		var body []byte
		body = protowire.AppendTag(body, WireFieldData, protowire.BytesType)
		body = protowire.AppendBytes(body, msg)
		return appendEnvelope(WireMessage, body), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, f.Type)
	}
}

func (s *WireSerializer) appendTextVariant(body []byte, f *Frame) []byte {
	if f.ID != 0 {
		body = protowire.AppendTag(body, WireFieldID, protowire.VarintType)
		body = protowire.AppendVarint(body, f.ID)
	}
	body = protowire.AppendTag(body, WireFieldName, protowire.BytesType)
	body = protowire.AppendString(body, string(f.Type))
	body = protowire.AppendTag(body, WireFieldText, protowire.BytesType)
	body = protowire.AppendString(body, f.Text())
	return body
}

func (s *WireSerializer) appendAudioVariant(body []byte, f *Frame) []byte {
	if f.ID != 0 {
		body = protowire.AppendTag(body, WireFieldID, protowire.VarintType)
		body = protowire.AppendVarint(body, f.ID)
	}
	body = protowire.AppendTag(body, WireFieldName, protowire.BytesType)
	body = protowire.AppendString(body, string(f.Type))
	body = protowire.AppendTag(body, WireFieldAudio, protowire.BytesType)
	body = protowire.AppendBytes(body, f.Audio())
	body = protowire.AppendTag(body, WireFieldSampleRate, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(f.SampleRate()))
	body = protowire.AppendTag(body, WireFieldNumChannels, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(f.NumChannels()))
	return body
}

func appendEnvelope(num protowire.Number, body []byte) []byte {
	var out []byte
	out = protowire.AppendTag(out, num, protowire.BytesType)
	out = protowire.AppendBytes(out, body)
	return out
}
