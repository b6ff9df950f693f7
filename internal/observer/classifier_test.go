package observer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voxlab/pipescope/internal/config"
	"github.com/voxlab/pipescope/internal/frames"
	"github.com/voxlab/pipescope/internal/observer"
)

// =============================================================================
// CLASSIFICATION
// =============================================================================

func TestClassify(t *testing.T) {
	cases := []struct {
		ft   frames.Type
		want observer.Category
	}{
		{frames.TypeText, observer.CategoryText},
		{frames.TypeLLMText, observer.CategoryText},
		{frames.TypeTranscription, observer.CategoryTranscription},
		{frames.TypeInterimTranscript, observer.CategoryTranscription},
		{frames.TypeInputAudioRaw, observer.CategoryAudio},
		{frames.TypeOutputAudioRaw, observer.CategoryAudio},
		{frames.TypeStart, observer.CategoryControl},
		{frames.TypeEnd, observer.CategoryControl},
		{frames.TypeCancel, observer.CategoryControl},
		{frames.Type("SomethingNovelFrame"), observer.CategoryOther},
	}
	for _, tc := range cases {
		got := observer.Classify(&frames.Frame{Type: tc.ft})
		assert.Equal(t, tc.want, got, tc.ft)
	}
}

// =============================================================================
// CAPTURE GATING
// =============================================================================

func TestIsCapturable_MasterSwitch(t *testing.T) {
	cfg := config.DefaultObservability()
	cfg.Enabled = false

	for _, ft := range []frames.Type{
		frames.TypeText,
		frames.TypeTranscription,
		frames.TypeInputAudioRaw,
		frames.TypeStart,
	} {
		assert.False(t, observer.IsCapturable(&frames.Frame{Type: ft}, cfg), ft)
	}
}

func TestIsCapturable_PerCategoryFlags(t *testing.T) {
	cases := []struct {
		name  string
		ft    frames.Type
		tweak func(*config.ObservabilityConfig)
		want  bool
	}{
		{"audio off by default", frames.TypeInputAudioRaw, nil, false},
		{"audio on when enabled", frames.TypeOutputAudioRaw,
			func(c *config.ObservabilityConfig) { c.EnableAudioCapture = true }, true},
		{"text on by default", frames.TypeText, nil, true},
		{"transcription follows text flag", frames.TypeTranscription,
			func(c *config.ObservabilityConfig) { c.EnableTextCapture = false }, false},
		{"control follows binary logging", frames.TypeStart, nil, true},
		{"control gated off", frames.TypeEnd,
			func(c *config.ObservabilityConfig) { c.EnableBinaryLogging = false }, false},
		{"unknown type follows binary logging", frames.Type("CustomFrame"), nil, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultObservability()
			if tc.tweak != nil {
				tc.tweak(&cfg)
			}
			got := observer.IsCapturable(&frames.Frame{Type: tc.ft}, cfg)
			assert.Equal(t, tc.want, got)
		})
	}
}

// =============================================================================
// DISPLAY GLYPHS
// =============================================================================

func TestDirectionGlyph(t *testing.T) {
	assert.Equal(t, ">>", observer.DirectionGlyph(frames.DirectionDownstream))
	assert.Equal(t, "<<", observer.DirectionGlyph(frames.DirectionUpstream))
	assert.Equal(t, "--", observer.DirectionGlyph(frames.DirectionControl))
}
