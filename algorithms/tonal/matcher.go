package tonal

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
)

// DefaultConfidenceThreshold is the score below which a frame is labeled N.
const DefaultConfidenceThreshold = 0.3

// ErrInvalidFrame is returned for frames that do not carry exactly 12 finite,
// non-negative energies or that have an invalid timestamp.
var ErrInvalidFrame = errors.New("invalid pitch-class frame")

// PitchClassFrame is one hop of pitch-class energies produced by an acoustic front-end.
type PitchClassFrame struct {
	Timestamp float64   `json:"timestamp"` // seconds
	Energies  []float64 `json:"energies"`  // 12 bins, C..B
}

// Validate checks dimensionality, sign and finiteness.
func (f PitchClassFrame) Validate() error {
	if math.IsNaN(f.Timestamp) || math.IsInf(f.Timestamp, 0) || f.Timestamp < 0 {
		return fmt.Errorf("%w: timestamp %v", ErrInvalidFrame, f.Timestamp)
	}
	if len(f.Energies) != PitchClasses {
		return fmt.Errorf("%w: %d energies at %.4fs, want %d", ErrInvalidFrame, len(f.Energies), f.Timestamp, PitchClasses)
	}
	for i, e := range f.Energies {
		if math.IsNaN(e) || math.IsInf(e, 0) || e < 0 {
			return fmt.Errorf("%w: bin %s energy %v at %.4fs", ErrInvalidFrame, NoteName(i), e, f.Timestamp)
		}
	}
	return nil
}

// IsSilent reports whether the frame carries no energy at all.
func (f PitchClassFrame) IsSilent() bool {
	return common.Sum(f.Energies) == 0
}

// FrameMatch is the classification of one frame.
type FrameMatch struct {
	Timestamp  float64    `json:"timestamp"`
	Label      ChordLabel `json:"label"`
	Confidence float64    `json:"confidence"`
}

// ScoringFunc scores an L1-normalized frame against a template vector.
type ScoringFunc func(frame, template []float64) float64

// Scoring function names accepted by ScoringByName.
const (
	ScoringDot    = "dot"
	ScoringCosine = "cosine"
)

// DotProductScore is the plain dot product of frame and template.
func DotProductScore(frame, template []float64) float64 {
	return common.Dot(frame, template)
}

// CosineScore is the cosine similarity of frame and template.
func CosineScore(frame, template []float64) float64 {
	return common.CosineSimilarity(frame, template)
}

// ScoringByName resolves "dot" (default) or "cosine".
func ScoringByName(name string) (ScoringFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ScoringDot:
		return DotProductScore, nil
	case ScoringCosine:
		return CosineScore, nil
	default:
		return nil, fmt.Errorf("unknown scoring function %q (want %q or %q)", name, ScoringDot, ScoringCosine)
	}
}

// FrameMatcher classifies single frames against a template bank. It keeps no
// state between calls.
type FrameMatcher struct {
	bank      *TemplateBank
	threshold float64
	score     ScoringFunc
}

// NewFrameMatcher creates a matcher. A nil score uses DotProductScore.
func NewFrameMatcher(bank *TemplateBank, threshold float64, score ScoringFunc) *FrameMatcher {
	if score == nil {
		score = DotProductScore
	}
	return &FrameMatcher{
		bank:      bank,
		threshold: threshold,
		score:     score,
	}
}

// Threshold returns the confidence threshold τ.
func (m *FrameMatcher) Threshold() float64 {
	return m.threshold
}

// Match returns the best label for frame. A silent frame yields N with
// confidence 0. A winning score below the threshold yields N with the raw
// score as confidence.
func (m *FrameMatcher) Match(frame PitchClassFrame) (FrameMatch, error) {
	if err := frame.Validate(); err != nil {
		return FrameMatch{}, err
	}

	if frame.IsSilent() {
		return FrameMatch{Timestamp: frame.Timestamp, Label: NoChord, Confidence: 0.0}, nil
	}

	normalized := common.L1Normalize(frame.Energies)

	best := -1
	bestScore := math.Inf(-1)
	for i := range m.bank.templates {
		tmpl := &m.bank.templates[i]
		score := m.score(normalized, tmpl.Vector[:])
		if best < 0 || score > bestScore || (score == bestScore && preferTemplate(tmpl, &m.bank.templates[best])) {
			best = i
			bestScore = score
		}
	}

	winner := m.bank.templates[best]
	match := FrameMatch{
		Timestamp:  frame.Timestamp,
		Label:      winner.Label(),
		Confidence: common.Clamp01(bestScore),
	}
	// NaN scores never pass the threshold
	if !(bestScore >= m.threshold) {
		match.Label = NoChord
	}
	return match, nil
}

// preferTemplate breaks exact score ties: fewer intervals, then smaller root,
// then earlier quality table position.
func preferTemplate(candidate, incumbent *ChordTemplate) bool {
	if candidate.Intervals != incumbent.Intervals {
		return candidate.Intervals < incumbent.Intervals
	}
	if candidate.Root != incumbent.Root {
		return candidate.Root < incumbent.Root
	}
	return candidate.order < incumbent.order
}
