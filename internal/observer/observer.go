// Package observer taps frames flowing through a realtime pipeline without
// slowing it down.
//
// DESIGN: OnFrame is the synchronous notification hook the host pipeline
// calls once per frame. It must return fast, so it only classifies the
// frame, updates O(1) counters and - when the frame qualifies for capture -
// enqueues a background task for the expensive serialize+decode+log work.
// Nothing from the background path can propagate back to the caller: the
// queue is bounded and enqueue never blocks (overflow drops the task and
// bumps a counter).
//
// Lifecycle: Idle (constructed) -> Active (attached, Attach) -> Draining
// (Reset/Close in progress) -> Idle or back to Active. Draining cancels
// in-flight tasks through the run context and waits with a bounded timeout;
// a task that refuses to finish is abandoned and its late results are
// discarded via a run epoch check, never applied to a newer run's stats.
//
// FILES:
//   - observer.go:   Observer, lifecycle, OnFrame, read surface
//   - classifier.go: frame categories and capture gating
//   - worker.go:     background worker pool and task processing
package observer

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxlab/pipescope/internal/config"
	"github.com/voxlab/pipescope/internal/decoder"
	"github.com/voxlab/pipescope/internal/frames"
	"github.com/voxlab/pipescope/internal/monitoring"
	"github.com/voxlab/pipescope/internal/stats"
)

// State is the observer lifecycle state.
type State int

const (
	StateIdle State = iota
	StateActive
	StateDraining
)

// Summary is the combined statistics snapshot exposed to callers.
type Summary struct {
	FrameCounts   map[string]int64             `json:"frame_counts"`
	LatencyStats  map[string]stats.LatencyStat `json:"latency_stats"`
	PayloadTotals stats.PayloadTotals          `json:"payload_totals"`
	DroppedTasks  int64                        `json:"dropped_tasks,omitempty"`
}

// Observer watches every frame crossing a pipeline and keeps running
// statistics. One observer per pipeline run; the config snapshot is
// immutable for the observer's lifetime.
type Observer struct {
	cfg        config.ObservabilityConfig
	serializer frames.Serializer
	tracker    *stats.Tracker
	dec        *decoder.Decoder
	logger     *monitoring.Logger
	flog       *monitoring.FrameLogger
	alerts     *monitoring.AlertManager
	telemetry  *monitoring.Tracker

	mu           sync.Mutex
	state        State
	epoch        uint64
	runCtx       context.Context
	runCancel    context.CancelFunc
	lastSeen     map[frames.Direction]time.Time
	sessionStart time.Time

	jobs     chan task
	stopChan chan struct{}
	wg       sync.WaitGroup // worker goroutines
	inflight sync.WaitGroup // queued + running tasks
	dropped  atomic.Int64

	slowDecodeThreshold time.Duration
}

// Option configures optional observer collaborators.
type Option func(*Observer)

// WithTelemetry attaches a JSONL telemetry tracker.
func WithTelemetry(t *monitoring.Tracker) Option {
	return func(o *Observer) { o.telemetry = t }
}

// WithSlowDecodeThreshold overrides the slow-decode alert threshold.
func WithSlowDecodeThreshold(d time.Duration) Option {
	return func(o *Observer) { o.slowDecodeThreshold = d }
}

// New creates an observer in the Idle state. The configuration is validated
// here; an observer can never exist in an invalid state.
func New(cfg config.ObservabilityConfig, serializer frames.Serializer, logger *monitoring.Logger, opts ...Option) (*Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dec, err := decoder.New(cfg.TruncateTextAt)
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = monitoring.New(monitoring.LoggerConfig{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Observer{
		cfg:          cfg,
		serializer:   serializer,
		tracker:      stats.NewTracker(),
		dec:          dec,
		logger:       logger,
		flog:         monitoring.NewFrameLogger(logger),
		runCtx:       ctx,
		runCancel:    cancel,
		lastSeen:     make(map[frames.Direction]time.Time),
		sessionStart: time.Now(),
		jobs:         make(chan task, cfg.QueueSize),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.alerts = monitoring.NewAlertManager(logger, o.slowDecodeThreshold)
	return o, nil
}

// Attach transitions the observer to Active and starts the background
// workers. Attaching an already-active observer is a no-op.
func (o *Observer) Attach() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state != StateIdle {
		return
	}
	o.state = StateActive
	o.sessionStart = time.Now()
	// A previous Close cancelled the run context; every attach starts a
	// fresh run so background tasks are not born cancelled.
	o.runCancel()
	o.runCtx, o.runCancel = context.WithCancel(context.Background())
	o.stopChan = make(chan struct{})
	for i := 0; i < o.cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker(i)
	}
}

// OnFrame is the frame-arrival notification. It never blocks, never fails
// and never touches the frame: classify, count, update the latency
// reference, and conditionally hand off to the background pool.
//
// The latency reference is per direction: "time since the previous frame
// crossed this same directional channel". The reference is updated for every
// frame regardless of configuration so latency numbers stay meaningful if
// capture settings differ between observers.
func (o *Observer) OnFrame(f *frames.Frame, dir frames.Direction, observedAt time.Time) {
	if f == nil {
		return
	}

	o.mu.Lock()
	if o.state == StateIdle {
		o.mu.Unlock()
		return
	}

	o.tracker.RecordSeen(string(f.Type))

	latencyMs := -1.0
	last, hasRef := o.lastSeen[dir]
	o.lastSeen[dir] = observedAt

	if hasRef && o.cfg.EnableTimingMetrics {
		// The gap can be negative when a remote clock skews backwards;
		// the tracker clamps it rather than dropping the sample.
		latencyMs = float64(observedAt.Sub(last)) / float64(time.Millisecond)
		o.tracker.RecordLatency(string(f.Type), latencyMs)
	}

	capturable := o.state == StateActive && IsCapturable(f, o.cfg)
	epoch := o.epoch
	ctx := o.runCtx
	elapsed := observedAt.Sub(o.sessionStart)
	o.mu.Unlock()

	if !capturable {
		return
	}

	t := task{
		frame:      f,
		direction:  dir,
		observedAt: observedAt,
		elapsed:    elapsed,
		latencyMs:  latencyMs,
		epoch:      epoch,
		ctx:        ctx,
	}
	o.inflight.Add(1)
	select {
	case o.jobs <- t:
	default:
		o.inflight.Done()
		o.alerts.FlagQueueOverflow(string(f.Type), o.dropped.Add(1))
	}
}

// FrameCounts returns the number of frames observed per type.
func (o *Observer) FrameCounts() map[string]int64 {
	return o.tracker.FrameCounts()
}

// LatencyStats returns derived inter-frame latency aggregates per type.
func (o *Observer) LatencyStats() map[string]stats.LatencyStat {
	return o.tracker.LatencyStats()
}

// Summary returns an immutable snapshot of all tracked statistics.
func (o *Observer) Summary() Summary {
	snap := o.tracker.Snapshot()
	return Summary{
		FrameCounts:   snap.FrameCounts,
		LatencyStats:  snap.Latency,
		PayloadTotals: snap.Payload,
		DroppedTasks:  o.dropped.Load(),
	}
}

// PrintSummary formats and emits the session summary through the logger.
func (o *Observer) PrintSummary() {
	s := o.Summary()

	o.logger.Info().Msg("==== session summary ====")

	type countEntry struct {
		name  string
		count int64
	}
	entries := make([]countEntry, 0, len(s.FrameCounts))
	for name, count := range s.FrameCounts {
		entries = append(entries, countEntry{name, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].name < entries[j].name
	})
	for _, e := range entries {
		o.logger.Info().Int64("count", e.count).Msg("frames: " + e.name)
	}

	types := make([]string, 0, len(s.LatencyStats))
	for name := range s.LatencyStats {
		types = append(types, name)
	}
	sort.Strings(types)
	for _, name := range types {
		ls := s.LatencyStats[name]
		o.logger.Info().
			Float64("avg_ms", ls.AvgMs).
			Float64("min_ms", ls.MinMs).
			Float64("max_ms", ls.MaxMs).
			Int64("count", ls.Count).
			Msg("latency: " + name)
	}

	o.logger.Info().
		Int64("total_bytes", s.PayloadTotals.TotalBytes).
		Int64("frames", s.PayloadTotals.TotalFrames).
		Int64("dropped_tasks", s.DroppedTasks).
		Msg("payload totals")
}

// Reset zeroes all tracked state and cancels in-flight background tasks.
// It returns only after outstanding work has completed or the bounded drain
// wait expired; abandoned tasks cannot mutate state afterwards. Safe to call
// repeatedly.
func (o *Observer) Reset() {
	if o.telemetry != nil {
		snap := o.tracker.Snapshot()
		o.telemetry.RecordRunSummary(&monitoring.RunSummaryEvent{
			Timestamp: time.Now(),
			Stats:     snap,
		})
	}

	wasActive := o.beginDrain()
	o.awaitDrain()

	o.mu.Lock()
	o.tracker.Reset()
	o.lastSeen = make(map[frames.Direction]time.Time)
	o.sessionStart = time.Now()
	o.dropped.Store(0)
	if wasActive {
		o.state = StateActive
		o.runCtx, o.runCancel = context.WithCancel(context.Background())
	}
	o.mu.Unlock()
}

// Close drains outstanding work, stops the workers and returns the observer
// to Idle. The observer may be re-attached afterwards.
func (o *Observer) Close() {
	o.mu.Lock()
	if o.state == StateIdle {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	o.beginDrain()
	o.awaitDrain()

	close(o.stopChan)
	o.wg.Wait()

	o.mu.Lock()
	o.state = StateIdle
	o.mu.Unlock()
}

// beginDrain moves to Draining, invalidates the current epoch, cancels the
// run context and flushes queued tasks. Returns whether the observer was
// Active. No new tasks can be enqueued until the drain completes.
func (o *Observer) beginDrain() bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	wasActive := o.state == StateActive
	if o.state == StateIdle {
		return false
	}
	o.state = StateDraining
	o.epoch++
	o.runCancel()

flush:
	for {
		select {
		case <-o.jobs:
			o.inflight.Done()
		default:
			break flush
		}
	}
	return wasActive
}

// awaitDrain waits for in-flight tasks with a bounded timeout. A task that
// refuses to finish is abandoned; the epoch check keeps its late results out.
func (o *Observer) awaitDrain() {
	done := make(chan struct{})
	go func() {
		o.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(o.cfg.DrainTimeout):
		o.logger.Warn().
			Dur("timeout", o.cfg.DrainTimeout).
			Msg("drain timed out, abandoning background tasks")
	}
}

// epochCurrent reports whether the task's epoch is still the live run.
func (o *Observer) epochCurrent(epoch uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return epoch == o.epoch
}
