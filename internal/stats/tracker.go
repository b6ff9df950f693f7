// Package stats maintains the observer's running statistics.
//
// DESIGN: One mutex guards all mutation. The tracker is written from two call
// sites - the synchronous frame-notification path (counts, latency) and
// background decode completions (payload bytes) - and both must interleave
// arbitrarily without a reader ever seeing a torn update. Snapshot() returns
// deep copies only; no internal map or struct is ever aliased out.
//
// Latency aggregates store {count, min, max, sum}; the average is derived at
// snapshot time so it can never drift from the stored fields.
package stats

import "sync"

// latencyAgg is the internal per-type latency aggregate.
type latencyAgg struct {
	count int64
	min   float64
	max   float64
	sum   float64
}

// LatencyStat is the exported per-type latency aggregate. AvgMs is derived
// from Sum/Count and holds Min <= Avg <= Max whenever Count >= 1.
type LatencyStat struct {
	Count int64   `json:"count"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
}

// PayloadTotals reports serialized payload byte totals.
type PayloadTotals struct {
	TotalBytes  int64            `json:"total_bytes"`
	TotalFrames int64            `json:"total_frames"`
	ByDirection map[string]int64 `json:"by_direction"`
}

// Snapshot is an immutable copy of all tracked state.
type Snapshot struct {
	FrameCounts map[string]int64       `json:"frame_counts"`
	Latency     map[string]LatencyStat `json:"latency_stats"`
	Payload     PayloadTotals          `json:"payload_totals"`
}

// Tracker maintains frame-type counters, per-type latency aggregates and
// payload byte totals. Pure data structure, no I/O. Safe for concurrent use.
type Tracker struct {
	mu          sync.Mutex
	counts      map[string]int64
	latencies   map[string]*latencyAgg
	bytesTotal  int64
	framesTotal int64
	bytesByDir  map[string]int64
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		counts:     make(map[string]int64),
		latencies:  make(map[string]*latencyAgg),
		bytesByDir: make(map[string]int64),
	}
}

// RecordSeen increments the counter for the frame type. O(1), never fails.
func (t *Tracker) RecordSeen(typeKey string) {
	t.mu.Lock()
	t.counts[typeKey]++
	t.mu.Unlock()
}

// RecordLatency folds one inter-frame gap into the aggregate for the type.
// Negative values are clamped to zero rather than corrupting the minimum.
func (t *Tracker) RecordLatency(typeKey string, elapsedMs float64) {
	if elapsedMs < 0 {
		elapsedMs = 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	agg, ok := t.latencies[typeKey]
	if !ok {
		t.latencies[typeKey] = &latencyAgg{count: 1, min: elapsedMs, max: elapsedMs, sum: elapsedMs}
		return
	}
	agg.count++
	agg.sum += elapsedMs
	if elapsedMs < agg.min {
		agg.min = elapsedMs
	}
	if elapsedMs > agg.max {
		agg.max = elapsedMs
	}
}

// RecordPayloadBytes adds a serialized payload's size to the running total
// and the per-direction breakdown.
func (t *Tracker) RecordPayloadBytes(direction string, n int) {
	t.mu.Lock()
	t.bytesTotal += int64(n)
	t.framesTotal++
	t.bytesByDir[direction] += int64(n)
	t.mu.Unlock()
}

// FrameCounts returns a copy of the per-type counters.
func (t *Tracker) FrameCounts() map[string]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return copyCounts(t.counts)
}

// LatencyStats returns derived latency aggregates for every tracked type.
func (t *Tracker) LatencyStats() map[string]LatencyStat {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latencyStatsLocked()
}

// Snapshot returns an immutable copy of all counters, latency tables and
// byte totals. Callers may read it while the tracker is concurrently updated.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Snapshot{
		FrameCounts: copyCounts(t.counts),
		Latency:     t.latencyStatsLocked(),
		Payload: PayloadTotals{
			TotalBytes:  t.bytesTotal,
			TotalFrames: t.framesTotal,
			ByDirection: copyCounts(t.bytesByDir),
		},
	}
}

// Reset clears everything to empty. Idempotent.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.counts = make(map[string]int64)
	t.latencies = make(map[string]*latencyAgg)
	t.bytesTotal = 0
	t.framesTotal = 0
	t.bytesByDir = make(map[string]int64)
	t.mu.Unlock()
}

func (t *Tracker) latencyStatsLocked() map[string]LatencyStat {
	out := make(map[string]LatencyStat, len(t.latencies))
	for key, agg := range t.latencies {
		if agg.count == 0 {
			continue
		}
		out[key] = LatencyStat{
			Count: agg.count,
			MinMs: agg.min,
			MaxMs: agg.max,
			AvgMs: agg.sum / float64(agg.count),
		}
	}
	return out
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
