package observer_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlab/pipescope/internal/config"
	"github.com/voxlab/pipescope/internal/frames"
	"github.com/voxlab/pipescope/internal/observer"
)

// stubSerializer wraps the real wire serializer with call recording and an
// optional block, standing in for a host pipeline's serializer.
type stubSerializer struct {
	mu        sync.Mutex
	calls     []frames.Type
	release   chan struct{} // when non-nil, Serialize blocks until closed
	ignoreCtx bool          // simulate a serializer that never checks ctx
}

func (s *stubSerializer) Serialize(ctx context.Context, f *frames.Frame) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, f.Type)
	s.mu.Unlock()

	if s.release != nil {
		if s.ignoreCtx {
			<-s.release
		} else {
			select {
			case <-s.release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return frames.NewWireSerializer().Serialize(ctx, f)
}

func (s *stubSerializer) called(ft frames.Type) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.calls {
		if c == ft {
			return true
		}
	}
	return false
}

func transcript(text string) *frames.Frame {
	return &frames.Frame{
		Type:        frames.TypeTranscription,
		Source:      "stt",
		Destination: "llm",
		Fields:      map[string]any{frames.FieldText: text},
	}
}

func audioFrame(n int) *frames.Frame {
	return &frames.Frame{
		Type: frames.TypeInputAudioRaw,
		Fields: map[string]any{
			frames.FieldAudio:      make([]byte, n),
			frames.FieldSampleRate: 16000,
		},
	}
}

func newObserver(t *testing.T, cfg config.ObservabilityConfig, ser frames.Serializer) *observer.Observer {
	t.Helper()
	obs, err := observer.New(cfg, ser, nil)
	require.NoError(t, err)
	return obs
}

// =============================================================================
// CONSTRUCTION / LIFECYCLE
// =============================================================================

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultObservability()
	cfg.Workers = 0

	_, err := observer.New(cfg, &stubSerializer{}, nil)
	assert.Error(t, err)
}

func TestObserver_IgnoresFramesBeforeAttach(t *testing.T) {
	obs := newObserver(t, config.DefaultObservability(), &stubSerializer{})

	obs.OnFrame(transcript("hi"), frames.DirectionDownstream, time.Now())
	assert.Empty(t, obs.FrameCounts())
}

func TestObserver_CloseReturnsToIdle(t *testing.T) {
	obs := newObserver(t, config.DefaultObservability(), &stubSerializer{})
	obs.Attach()
	obs.OnFrame(transcript("hi"), frames.DirectionDownstream, time.Now())
	require.Eventually(t, func() bool {
		return obs.Summary().PayloadTotals.TotalFrames == 1
	}, 2*time.Second, 10*time.Millisecond)
	obs.Close()

	before := obs.FrameCounts()
	obs.OnFrame(transcript("after close"), frames.DirectionDownstream, time.Now())
	assert.Equal(t, before, obs.FrameCounts())

	// Close is safe to repeat and the observer can be re-attached.
	obs.Close()
	obs.Attach()
	obs.OnFrame(transcript("again"), frames.DirectionDownstream, time.Now())
	assert.Equal(t, before["TranscriptionFrame"]+1, obs.FrameCounts()["TranscriptionFrame"])

	// Background capture resumes on a fresh run context, not the one the
	// earlier Close cancelled.
	assert.Eventually(t, func() bool {
		return obs.Summary().PayloadTotals.TotalFrames == 2
	}, 2*time.Second, 10*time.Millisecond)
	obs.Close()
}

// =============================================================================
// COUNTING AND LATENCY
// =============================================================================

func TestObserver_CountsEvenWhenCaptureDisabled(t *testing.T) {
	cfg := config.DefaultObservability()
	cfg.Enabled = false
	ser := &stubSerializer{}

	obs := newObserver(t, cfg, ser)
	obs.Attach()
	defer obs.Close()

	obs.OnFrame(transcript("one"), frames.DirectionDownstream, time.Now())
	obs.OnFrame(audioFrame(320), frames.DirectionDownstream, time.Now())

	counts := obs.FrameCounts()
	assert.Equal(t, int64(1), counts["TranscriptionFrame"])
	assert.Equal(t, int64(1), counts["InputAudioRawFrame"])
	assert.Empty(t, ser.calls)
}

func TestObserver_InterFrameLatency(t *testing.T) {
	obs := newObserver(t, config.DefaultObservability(), &stubSerializer{})
	obs.Attach()
	defer obs.Close()

	base := time.Now()
	obs.OnFrame(transcript("a"), frames.DirectionDownstream, base)
	obs.OnFrame(transcript("b"), frames.DirectionDownstream, base.Add(50*time.Millisecond))
	obs.OnFrame(transcript("c"), frames.DirectionDownstream, base.Add(120*time.Millisecond))

	assert.Equal(t, int64(3), obs.FrameCounts()["TranscriptionFrame"])

	ls := obs.LatencyStats()["TranscriptionFrame"]
	assert.Equal(t, int64(2), ls.Count) // first frame has no reference
	assert.Equal(t, 50.0, ls.MinMs)
	assert.Equal(t, 70.0, ls.MaxMs)
	assert.Equal(t, 60.0, ls.AvgMs)
}

func TestObserver_LatencyReferenceIsPerDirection(t *testing.T) {
	obs := newObserver(t, config.DefaultObservability(), &stubSerializer{})
	obs.Attach()
	defer obs.Close()

	base := time.Now()
	obs.OnFrame(transcript("down"), frames.DirectionDownstream, base)
	// First upstream frame: no upstream reference yet, no sample recorded.
	obs.OnFrame(transcript("up"), frames.DirectionUpstream, base.Add(10*time.Millisecond))
	obs.OnFrame(transcript("down again"), frames.DirectionDownstream, base.Add(30*time.Millisecond))

	ls := obs.LatencyStats()["TranscriptionFrame"]
	assert.Equal(t, int64(1), ls.Count)
	assert.Equal(t, 30.0, ls.MinMs)
}

func TestObserver_LatencyClampsClockSkew(t *testing.T) {
	obs := newObserver(t, config.DefaultObservability(), &stubSerializer{})
	obs.Attach()
	defer obs.Close()

	// Ingested timestamps come from a remote clock and can run backwards.
	base := time.Now()
	obs.OnFrame(transcript("a"), frames.DirectionDownstream, base)
	obs.OnFrame(transcript("b"), frames.DirectionDownstream, base.Add(-20*time.Millisecond))

	ls := obs.LatencyStats()["TranscriptionFrame"]
	assert.Equal(t, int64(1), ls.Count, "a skewed gap is still a sample")
	assert.Equal(t, 0.0, ls.MinMs)
	assert.Equal(t, 0.0, ls.MaxMs)
}

func TestObserver_TimingMetricsCanBeDisabled(t *testing.T) {
	cfg := config.DefaultObservability()
	cfg.EnableTimingMetrics = false

	obs := newObserver(t, cfg, &stubSerializer{})
	obs.Attach()
	defer obs.Close()

	base := time.Now()
	obs.OnFrame(transcript("a"), frames.DirectionDownstream, base)
	obs.OnFrame(transcript("b"), frames.DirectionDownstream, base.Add(40*time.Millisecond))

	assert.Empty(t, obs.LatencyStats())
	assert.Equal(t, int64(2), obs.FrameCounts()["TranscriptionFrame"])
}

// =============================================================================
// BACKGROUND CAPTURE
// =============================================================================

func TestObserver_CommitsPayloadBytesInBackground(t *testing.T) {
	obs := newObserver(t, config.DefaultObservability(), &stubSerializer{})
	obs.Attach()
	defer obs.Close()

	obs.OnFrame(transcript("hello there"), frames.DirectionDownstream, time.Now())

	assert.Eventually(t, func() bool {
		return obs.Summary().PayloadTotals.TotalBytes > 0
	}, 2*time.Second, 10*time.Millisecond)

	totals := obs.Summary().PayloadTotals
	assert.Equal(t, int64(1), totals.TotalFrames)
	assert.Equal(t, totals.TotalBytes, totals.ByDirection["downstream"])
}

func TestObserver_AudioCaptureGating(t *testing.T) {
	ser := &stubSerializer{}
	obs := newObserver(t, config.DefaultObservability(), ser) // audio capture off
	obs.Attach()
	defer obs.Close()

	obs.OnFrame(audioFrame(320), frames.DirectionDownstream, time.Now())
	obs.OnFrame(transcript("spoken"), frames.DirectionDownstream, time.Now())

	require.Eventually(t, func() bool {
		return ser.called(frames.TypeTranscription)
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, ser.called(frames.TypeInputAudioRaw))
	// The audio frame is still counted.
	assert.Equal(t, int64(1), obs.FrameCounts()["InputAudioRawFrame"])
}

func TestObserver_OnFrameNeverBlocks(t *testing.T) {
	cfg := config.DefaultObservability()
	cfg.QueueSize = 1
	cfg.Workers = 1

	release := make(chan struct{})
	ser := &stubSerializer{release: release}
	obs := newObserver(t, cfg, ser)
	obs.Attach()
	defer func() {
		close(release)
		obs.Close()
	}()

	start := time.Now()
	for i := 0; i < 100; i++ {
		obs.OnFrame(transcript("flood"), frames.DirectionDownstream, time.Now())
	}
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 500*time.Millisecond, "notification path must not wait on the queue")
	assert.Equal(t, int64(100), obs.FrameCounts()["TranscriptionFrame"])
	assert.Positive(t, obs.Summary().DroppedTasks)
}

// =============================================================================
// RESET
// =============================================================================

func TestObserver_ResetZeroesState(t *testing.T) {
	obs := newObserver(t, config.DefaultObservability(), &stubSerializer{})
	obs.Attach()
	defer obs.Close()

	base := time.Now()
	obs.OnFrame(transcript("a"), frames.DirectionDownstream, base)
	obs.OnFrame(transcript("b"), frames.DirectionDownstream, base.Add(20*time.Millisecond))
	require.NotEmpty(t, obs.FrameCounts())

	obs.Reset()
	obs.Reset() // idempotent

	s := obs.Summary()
	assert.Empty(t, s.FrameCounts)
	assert.Empty(t, s.LatencyStats)
	assert.Equal(t, int64(0), s.PayloadTotals.TotalBytes)
	assert.Equal(t, int64(0), s.DroppedTasks)

	// The latency reference is gone too: the next frame starts a fresh pair.
	obs.OnFrame(transcript("c"), frames.DirectionDownstream, base.Add(40*time.Millisecond))
	assert.Equal(t, int64(1), obs.FrameCounts()["TranscriptionFrame"])
	assert.Empty(t, obs.LatencyStats())
}

func TestObserver_ResetIsBounded(t *testing.T) {
	cfg := config.DefaultObservability()
	cfg.DrainTimeout = 200 * time.Millisecond

	release := make(chan struct{})
	ser := &stubSerializer{release: release, ignoreCtx: true}
	obs := newObserver(t, cfg, ser)
	obs.Attach()
	defer func() {
		close(release)
		obs.Close()
	}()

	obs.OnFrame(transcript("stuck"), frames.DirectionDownstream, time.Now())
	require.Eventually(t, func() bool {
		return ser.called(frames.TypeTranscription)
	}, 2*time.Second, 10*time.Millisecond)

	start := time.Now()
	obs.Reset()
	assert.Less(t, time.Since(start), 2*time.Second, "reset must abandon a wedged task")

	// The abandoned task's results never land in the new run.
	obs.OnFrame(transcript("fresh"), frames.DirectionDownstream, time.Now())
	assert.Equal(t, int64(1), obs.FrameCounts()["TranscriptionFrame"])
}

func TestObserver_NilFrameIsIgnored(t *testing.T) {
	obs := newObserver(t, config.DefaultObservability(), &stubSerializer{})
	obs.Attach()
	defer obs.Close()

	obs.OnFrame(nil, frames.DirectionDownstream, time.Now())
	assert.Empty(t, obs.FrameCounts())
}
