// Package observer - worker.go runs the background decode pool.
//
// DESIGN: A fixed pool of workers consumes tasks from the bounded queue.
// Everything expensive lives here: host serialization, wire decode, line
// formatting, telemetry. Each task carries the run context and epoch from
// enqueue time; a cancelled or abandoned task checks the epoch before every
// externally visible effect, so a drained run can never be mutated late.
package observer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voxlab/pipescope/internal/frames"
	"github.com/voxlab/pipescope/internal/monitoring"
)

// task is one scheduled serialize+decode+log unit.
type task struct {
	frame      *frames.Frame
	direction  frames.Direction
	observedAt time.Time
	elapsed    time.Duration
	latencyMs  float64
	epoch      uint64
	ctx        context.Context
}

func (o *Observer) worker(id int) {
	defer o.wg.Done()
	for {
		select {
		case <-o.stopChan:
			return
		case t := <-o.jobs:
			o.process(t)
		}
	}
}

// process performs the expensive half of frame observation. All failures are
// terminal to this task only; nothing propagates to the notification path.
func (o *Observer) process(t task) {
	defer o.inflight.Done()
	start := time.Now()

	ev := &monitoring.FrameEvent{
		Timestamp:   t.observedAt,
		ElapsedSec:  t.elapsed.Seconds(),
		Direction:   t.direction.String(),
		Glyph:       DirectionGlyph(t.direction),
		Category:    string(Classify(t.frame)),
		Tag:         t.frame.Type.Tag(),
		FrameType:   string(t.frame.Type),
		Source:      monitoring.ShortenNodeName(t.frame.Source),
		Destination: monitoring.ShortenNodeName(t.frame.Destination),
		LatencyMs:   t.latencyMs,
		Content:     o.extractContent(t.frame),
	}

	if o.cfg.EnableBinaryLogging {
		raw, err := o.serializeTask(t)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// Cancelled during drain or over the decode budget: discard
			// cleanly, no partial stat update.
			return
		case errors.Is(err, frames.ErrUnsupportedType):
			// Event/control frames have no wire form. Normal, not an error.
		case err != nil:
			o.alerts.FlagSerializeFailure(string(t.frame.Type), t.direction.String(), err)
		case len(raw) > 0:
			ml := o.dec.Decode(t.frame.Type, raw)
			ev.WireBytes = ml.ByteSize
			ev.WireSummary = ml.String()
			ev.Decodable = ml.Decodable
			o.commitPayload(t, ml.ByteSize)
		}
	}

	// A stale task may have done wasted work, but it must not log into the
	// new run's stream.
	if !o.epochCurrent(t.epoch) {
		return
	}

	o.flog.LogFrame(ev)
	if o.telemetry != nil {
		o.telemetry.RecordFrame(ev)
	}
	o.alerts.FlagSlowDecode(string(t.frame.Type), time.Since(start))
}

// serializeTask invokes the host-supplied serializer inside the per-task
// budget, recovering panics at the task boundary.
func (o *Observer) serializeTask(t task) (raw []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			o.alerts.FlagPanic(string(t.frame.Type), r)
			raw = nil
			err = fmt.Errorf("serializer panic: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(t.ctx, o.cfg.DecodeTimeout)
	defer cancel()
	return o.serializer.Serialize(ctx, t.frame)
}

// commitPayload records the payload size unless the task's run was drained.
func (o *Observer) commitPayload(t task, n int) {
	if !o.epochCurrent(t.epoch) {
		return
	}
	o.tracker.RecordPayloadBytes(t.direction.String(), n)
}

// extractContent pulls displayable content straight from the frame fields.
// This is the cheap content path; the wire summary comes from the decoder.
func (o *Observer) extractContent(f *frames.Frame) string {
	if text := f.Text(); text != "" {
		return `"` + frames.TruncateRunes(text, o.cfg.TruncateTextAt) + `"`
	}

	if audio := f.Audio(); len(audio) > 0 {
		return fmt.Sprintf("[%.1fKB @ %dHz]", float64(len(audio))/1024, f.SampleRate())
	}

	if msg := f.Message(); msg != nil {
		return o.dec.SummarizeMessage(msg)
	}

	return ""
}
