package tonal

import (
	"encoding/json"
	"fmt"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
)

// ChordProgression is the final result of one detection run. It cannot be
// modified after assembly; accessors return copies.
type ChordProgression struct {
	segments          []ChordSegment
	key               Key
	totalDuration     float64
	averageConfidence float64
}

// AssembleOptions chooses how the total duration is reported.
type AssembleOptions struct {
	// TotalDuration, when set, replaces the end time of the last segment
	// (for example with the decoded audio length).
	TotalDuration *float64
}

// AssembleProgression combines committed segments and a key estimate.
func AssembleProgression(segments []ChordSegment, key Key, opts AssembleOptions) *ChordProgression {
	owned := make([]ChordSegment, len(segments))
	copy(owned, segments)

	total := 0.0
	if len(owned) > 0 {
		total = owned[len(owned)-1].End
	}
	if opts.TotalDuration != nil {
		total = *opts.TotalDuration
	}

	confidences := make([]float64, len(owned))
	for i, seg := range owned {
		confidences[i] = seg.AverageConfidence
	}

	return &ChordProgression{
		segments:          owned,
		key:               key,
		totalDuration:     total,
		averageConfidence: common.Clamp01(common.Mean(confidences)),
	}
}

// Segments returns a copy of the ordered segments.
func (p *ChordProgression) Segments() []ChordSegment {
	out := make([]ChordSegment, len(p.segments))
	copy(out, p.segments)
	return out
}

// Key returns the estimated key.
func (p *ChordProgression) Key() Key {
	return p.key
}

// TotalDuration returns the reported duration in seconds.
func (p *ChordProgression) TotalDuration() float64 {
	return p.totalDuration
}

// AverageConfidence is the mean of the segment confidences, 0 without segments.
func (p *ChordProgression) AverageConfidence() float64 {
	return p.averageConfidence
}

// ChordCount returns the number of segments.
func (p *ChordProgression) ChordCount() int {
	return len(p.segments)
}

// CoveredDuration sums the segment durations. It never exceeds the stream
// duration; the shortfall is silence, unreliable frames and dropped short runs.
func (p *ChordProgression) CoveredDuration() float64 {
	total := 0.0
	for _, seg := range p.segments {
		total += seg.Duration
	}
	return total
}

// Transitions lists consecutive chord changes, e.g. "C -> G".
func (p *ChordProgression) Transitions() []string {
	if len(p.segments) < 2 {
		return []string{}
	}
	transitions := make([]string, 0, len(p.segments)-1)
	for i := 1; i < len(p.segments); i++ {
		transitions = append(transitions, fmt.Sprintf("%s -> %s", p.segments[i-1].Label, p.segments[i].Label))
	}
	return transitions
}

type progressionJSON struct {
	Segments          []ChordSegment `json:"chords"`
	Key               string         `json:"key"`
	KeyRoot           int            `json:"key_root"`
	Mode              Mode           `json:"mode"`
	KeyBacking        float64        `json:"key_backing_duration"`
	TotalDuration     float64        `json:"total_duration"`
	AverageConfidence float64        `json:"average_confidence"`
	ChordCount        int            `json:"chord_count"`
}

// MarshalJSON exposes the fields the downstream sink expects.
func (p *ChordProgression) MarshalJSON() ([]byte, error) {
	return json.Marshal(progressionJSON{
		Segments:          p.segments,
		Key:               p.key.Name(),
		KeyRoot:           p.key.Root,
		Mode:              p.key.Mode,
		KeyBacking:        p.key.BackingDuration,
		TotalDuration:     p.totalDuration,
		AverageConfidence: p.averageConfidence,
		ChordCount:        len(p.segments),
	})
}

// UnmarshalJSON restores a progression written by MarshalJSON.
func (p *ChordProgression) UnmarshalJSON(data []byte) error {
	var raw progressionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Segments == nil {
		raw.Segments = []ChordSegment{}
	}
	*p = ChordProgression{
		segments:          raw.Segments,
		key:               Key{Root: raw.KeyRoot, Mode: raw.Mode, BackingDuration: raw.KeyBacking},
		totalDuration:     raw.TotalDuration,
		averageConfidence: raw.AverageConfidence,
	}
	return nil
}
