package tonal

import (
	"github.com/RyanBlaney/sonido-chords/algorithms/common"
)

// DefaultMinSegmentDuration is the shortest run, in seconds, that is committed as a segment.
const DefaultMinSegmentDuration = 0.5

// ChordSegment is a committed span over which one label was reported continuously.
type ChordSegment struct {
	Label             ChordLabel `json:"chord"`
	Start             float64    `json:"start"`
	End               float64    `json:"end"`
	Duration          float64    `json:"duration"`
	AverageConfidence float64    `json:"confidence"`
	FrameCount        int        `json:"frame_count"`
}

// SegmentStats accounts for every run the builder finalized.
type SegmentStats struct {
	CommittedRuns     int     `json:"committed_runs"`
	DiscardedRuns     int     `json:"discarded_runs"`
	CoveredDuration   float64 `json:"covered_duration"`
	DiscardedDuration float64 `json:"discarded_duration"`
}

// SegmentBuilder folds frame matches into committed chord segments.
//
// It is either empty or accumulating a run of one label. A label change (N
// included) finalizes the run: runs shorter than the minimum duration are
// dropped, never merged into a neighbor. Committed segments are never
// revisited. A builder is owned by a single run.
type SegmentBuilder struct {
	minDuration   float64
	frameDuration float64

	accumulating bool
	label        ChordLabel
	start        float64
	samples      []float64

	lastTimestamp float64
	segments      []ChordSegment
	stats         SegmentStats
}

// NewSegmentBuilder creates a builder. frameDuration closes the final run at
// end of stream.
func NewSegmentBuilder(minSegmentDuration, frameDuration float64) *SegmentBuilder {
	return &SegmentBuilder{
		minDuration:   minSegmentDuration,
		frameDuration: frameDuration,
		segments:      make([]ChordSegment, 0),
	}
}

// Push folds one match into the state machine. Matches must arrive in
// increasing timestamp order.
func (b *SegmentBuilder) Push(m FrameMatch) {
	b.lastTimestamp = m.Timestamp

	if !b.accumulating {
		if !m.Label.IsNoChord() {
			b.begin(m)
		}
		return
	}

	if m.Label == b.label {
		b.samples = append(b.samples, m.Confidence)
		return
	}

	b.finalize(m.Timestamp)
	if m.Label.IsNoChord() {
		b.accumulating = false
		return
	}
	b.begin(m)
}

// Finish closes an open run at lastTimestamp + frameDuration and returns all
// committed segments. Calling Finish again is a no-op.
func (b *SegmentBuilder) Finish() []ChordSegment {
	if b.accumulating {
		b.finalize(b.lastTimestamp + b.frameDuration)
		b.accumulating = false
	}
	return b.Segments()
}

// Segments returns a copy of the segments committed so far.
func (b *SegmentBuilder) Segments() []ChordSegment {
	out := make([]ChordSegment, len(b.segments))
	copy(out, b.segments)
	return out
}

// Stats returns run accounting so far.
func (b *SegmentBuilder) Stats() SegmentStats {
	return b.stats
}

func (b *SegmentBuilder) begin(m FrameMatch) {
	b.accumulating = true
	b.label = m.Label
	b.start = m.Timestamp
	b.samples = append(b.samples[:0], m.Confidence)
}

func (b *SegmentBuilder) finalize(end float64) {
	duration := end - b.start
	if duration < b.minDuration {
		b.stats.DiscardedRuns++
		b.stats.DiscardedDuration += duration
		return
	}

	b.segments = append(b.segments, ChordSegment{
		Label:             b.label,
		Start:             b.start,
		End:               end,
		Duration:          duration,
		AverageConfidence: common.Clamp01(common.Mean(b.samples)),
		FrameCount:        len(b.samples),
	})
	b.stats.CommittedRuns++
	b.stats.CoveredDuration += duration
}
