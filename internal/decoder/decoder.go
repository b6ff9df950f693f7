// Package decoder turns opaque serialized frame bytes into human-readable
// summaries for trace logging.
//
// DESIGN: Decoding is best-effort and diagnostic, never used for control
// decisions. Decode never fails: unknown type tags and malformed bytes
// produce a MessageLog with Decodable=false while still recording the raw
// byte size, because decode failure must never discard size statistics.
//
// Dispatch is a lookup table keyed by frame type: each known tag maps to the
// wire variant it is allowed to carry and a decode function for that
// variant's fields. Anything else hits the default "undecodable" branch.
//
// The decoder is pure: same tag and bytes always produce the same summary.
package decoder

import (
	"fmt"
	"strconv"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/voxlab/pipescope/internal/frames"
)

// Field is one decoded name/value pair. Values are already rendered for
// display (text truncated, audio reduced to a size summary).
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// MessageLog is the result of a decode attempt. When Decodable is false,
// Fields is empty and ByteSize still carries the raw payload size.
type MessageLog struct {
	TypeName  string  `json:"type_name"`
	Fields    []Field `json:"decoded_fields"`
	ByteSize  int     `json:"byte_size"`
	Decodable bool    `json:"decodable"`
}

// String renders the log in a single-line form for trace output.
func (ml MessageLog) String() string {
	var b strings.Builder
	b.WriteString(ml.TypeName)
	if !ml.Decodable {
		fmt.Fprintf(&b, "{undecodable, %dB}", ml.ByteSize)
		return b.String()
	}
	b.WriteByte('{')
	for i, f := range ml.Fields {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	b.WriteByte('}')
	return b.String()
}

// variantDecoder decodes one wire variant's sub-message fields.
type variantDecoder func(d *Decoder, body []byte) ([]Field, bool)

// variantSpec binds a frame type to its expected envelope variant.
type variantSpec struct {
	num    protowire.Number
	decode variantDecoder
}

// Decoder decodes serialized frame payloads against the known wire schema.
type Decoder struct {
	truncateAt int
	registry   map[frames.Type]variantSpec
}

// New creates a decoder. truncateAt bounds the characters of text content
// shown per decoded field and must be at least 1.
func New(truncateAt int) (*Decoder, error) {
	if truncateAt < 1 {
		return nil, fmt.Errorf("truncate_text_at must be >= 1, got %d", truncateAt)
	}

	d := &Decoder{truncateAt: truncateAt}
	d.registry = map[frames.Type]variantSpec{
		frames.TypeText:              {frames.WireText, (*Decoder).decodeText},
		frames.TypeLLMText:           {frames.WireText, (*Decoder).decodeText},
		frames.TypeTranscription:     {frames.WireTranscription, (*Decoder).decodeTranscription},
		frames.TypeInterimTranscript: {frames.WireTranscription, (*Decoder).decodeTranscription},
		frames.TypeInputAudioRaw:     {frames.WireAudio, (*Decoder).decodeAudio},
		frames.TypeOutputAudioRaw:    {frames.WireAudio, (*Decoder).decodeAudio},
		frames.TypeTransportMessage:  {frames.WireMessage, (*Decoder).decodeMessage},
	}
	return d, nil
}

// Decode attempts a structural decode of raw against the schema for typeTag.
// It never returns an error and never panics; unsupported tags and malformed
// bytes yield Decodable=false with ByteSize=len(raw).
func (d *Decoder) Decode(typeTag frames.Type, raw []byte) MessageLog {
	ml := MessageLog{TypeName: string(typeTag), ByteSize: len(raw)}

	spec, ok := d.registry[typeTag]
	if !ok {
		return ml
	}
	num, body, ok := parseEnvelope(raw)
	if !ok || num != spec.num {
		return ml
	}
	fields, ok := spec.decode(d, body)
	if !ok {
		return ml
	}
	ml.Fields = fields
	ml.Decodable = true
	return ml
}

// parseEnvelope extracts the single oneof variant from the envelope message.
// Returns ok=false when the bytes are not a well-formed envelope.
func parseEnvelope(raw []byte) (protowire.Number, []byte, bool) {
	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return 0, nil, false
		}
		raw = raw[n:]

		if typ == protowire.BytesType {
			body, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return 0, nil, false
			}
			return num, body, true
		}

		// Skip non-variant fields (future envelope metadata).
		n = protowire.ConsumeFieldValue(num, typ, raw)
		if n < 0 {
			return 0, nil, false
		}
		raw = raw[n:]
	}
	return 0, nil, false
}

// wireField is one parsed sub-message field.
type wireField struct {
	num    protowire.Number
	varint uint64
	bytes  []byte
	isStr  bool
}

// parseFields walks a sub-message and returns its fields in wire order.
func parseFields(body []byte) ([]wireField, bool) {
	var out []wireField
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return nil, false
		}
		body = body[n:]

		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(body)
			if n < 0 {
				return nil, false
			}
			out = append(out, wireField{num: num, varint: v})
			body = body[n:]
		case protowire.BytesType:
			b, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return nil, false
			}
			out = append(out, wireField{num: num, bytes: b, isStr: true})
			body = body[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, body)
			if n < 0 {
				return nil, false
			}
			body = body[n:]
		}
	}
	return out, true
}

func (d *Decoder) decodeText(body []byte) ([]Field, bool) {
	parsed, ok := parseFields(body)
	if !ok {
		return nil, false
	}
	var out []Field
	for _, f := range parsed {
		switch f.num {
		case frames.WireFieldID:
			if !f.isStr {
				out = append(out, Field{"id", strconv.FormatUint(f.varint, 10)})
			}
		case frames.WireFieldName:
			out = append(out, Field{"name", string(f.bytes)})
		case frames.WireFieldText:
			out = append(out, Field{"text", quoted(string(f.bytes), d.truncateAt)})
		}
	}
	return out, true
}

func (d *Decoder) decodeTranscription(body []byte) ([]Field, bool) {
	parsed, ok := parseFields(body)
	if !ok {
		return nil, false
	}
	var out []Field
	for _, f := range parsed {
		switch f.num {
		case frames.WireFieldID:
			if !f.isStr {
				out = append(out, Field{"id", strconv.FormatUint(f.varint, 10)})
			}
		case frames.WireFieldName:
			out = append(out, Field{"name", string(f.bytes)})
		case frames.WireFieldText:
			out = append(out, Field{"text", quoted(string(f.bytes), d.truncateAt)})
		case frames.WireFieldUserID:
			if len(f.bytes) > 0 {
				out = append(out, Field{"user_id", string(f.bytes)})
			}
		case frames.WireFieldTimestamp:
			if len(f.bytes) > 0 {
				out = append(out, Field{"timestamp", string(f.bytes)})
			}
		}
	}
	return out, true
}

// decodeAudio summarizes the audio variant. Raw audio bytes never appear in
// the output, only their size and format.
func (d *Decoder) decodeAudio(body []byte) ([]Field, bool) {
	parsed, ok := parseFields(body)
	if !ok {
		return nil, false
	}
	var out []Field
	for _, f := range parsed {
		switch f.num {
		case frames.WireFieldID:
			if !f.isStr {
				out = append(out, Field{"id", strconv.FormatUint(f.varint, 10)})
			}
		case frames.WireFieldName:
			out = append(out, Field{"name", string(f.bytes)})
		case frames.WireFieldAudio:
			out = append(out, Field{"byte_count", strconv.Itoa(len(f.bytes))})
		case frames.WireFieldSampleRate:
			if !f.isStr {
				out = append(out, Field{"sample_rate", strconv.FormatUint(f.varint, 10)})
			}
		case frames.WireFieldNumChannels:
			if !f.isStr {
				out = append(out, Field{"channels", strconv.FormatUint(f.varint, 10)})
			}
		}
	}
	return out, true
}

func (d *Decoder) decodeMessage(body []byte) ([]Field, bool) {
	parsed, ok := parseFields(body)
	if !ok {
		return nil, false
	}
	var out []Field
	for _, f := range parsed {
		if f.num == frames.WireFieldData && f.isStr {
			out = append(out, Field{"data", summarizeJSON(string(f.bytes), d.truncateAt)})
		}
	}
	return out, true
}

func quoted(s string, limit int) string {
	return `"` + frames.TruncateRunes(s, limit) + `"`
}
