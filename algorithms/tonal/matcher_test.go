package tonal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMatcher(t *testing.T, table QualityTable) *FrameMatcher {
	t.Helper()
	bank, err := NewTemplateBank(table, TemplateOptions{})
	require.NoError(t, err)
	return NewFrameMatcher(bank, DefaultConfidenceThreshold, nil)
}

func energies(bins ...int) []float64 {
	out := make([]float64, PitchClasses)
	for _, b := range bins {
		out[b] = 1
	}
	return out
}

func TestMatchCMajorTriad(t *testing.T) {
	matcher := newTestMatcher(t, MinimalQualities())

	match, err := matcher.Match(PitchClassFrame{Timestamp: 1.5, Energies: []float64{1, 0, 0, 0, 1, 0, 0, 1, 0, 0, 0, 0}})
	require.NoError(t, err)

	assert.Equal(t, ChordLabel{Root: 0, Quality: QualityMajor}, match.Label)
	assert.InDelta(t, 1.0, match.Confidence, 1e-12)
	assert.Equal(t, 1.5, match.Timestamp)
}

func TestMatchScaleInvariant(t *testing.T) {
	matcher := newTestMatcher(t, MinimalQualities())

	quiet, err := matcher.Match(PitchClassFrame{Energies: []float64{0, 0, 0, 0, 0.1, 0, 0, 0.1, 0, 0, 0, 0.1}})
	require.NoError(t, err)
	loud, err := matcher.Match(PitchClassFrame{Energies: []float64{0, 0, 0, 0, 90, 0, 0, 90, 0, 0, 0, 90}})
	require.NoError(t, err)

	assert.Equal(t, "Em", quiet.Label.String())
	assert.Equal(t, quiet.Label, loud.Label)
	assert.InDelta(t, quiet.Confidence, loud.Confidence, 1e-12)
}

func TestMatchSilentFrame(t *testing.T) {
	matcher := newTestMatcher(t, MinimalQualities())

	match, err := matcher.Match(PitchClassFrame{Timestamp: 3, Energies: make([]float64, PitchClasses)})
	require.NoError(t, err)
	assert.True(t, match.Label.IsNoChord())
	assert.Equal(t, 0.0, match.Confidence)
}

func TestMatchBelowThresholdKeepsRawScore(t *testing.T) {
	matcher := newTestMatcher(t, MinimalQualities())

	// Flat chroma: every triad scores 3/12.
	flat := make([]float64, PitchClasses)
	for i := range flat {
		flat[i] = 1
	}
	match, err := matcher.Match(PitchClassFrame{Energies: flat})
	require.NoError(t, err)
	assert.True(t, match.Label.IsNoChord())
	assert.InDelta(t, 0.25, match.Confidence, 1e-12)
}

func TestMatchRejectsInvalidFrames(t *testing.T) {
	matcher := newTestMatcher(t, MinimalQualities())

	negative := energies(0, 4, 7)
	negative[2] = -0.1
	nan := energies(0, 4, 7)
	nan[5] = math.NaN()

	tests := []struct {
		name  string
		frame PitchClassFrame
	}{
		{name: "too few bins", frame: PitchClassFrame{Energies: []float64{1, 0, 0}}},
		{name: "too many bins", frame: PitchClassFrame{Energies: make([]float64, 24)}},
		{name: "negative energy", frame: PitchClassFrame{Energies: negative}},
		{name: "nan energy", frame: PitchClassFrame{Energies: nan}},
		{name: "negative timestamp", frame: PitchClassFrame{Timestamp: -1, Energies: energies(0, 4, 7)}},
		{name: "infinite timestamp", frame: PitchClassFrame{Timestamp: math.Inf(1), Energies: energies(0, 4, 7)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := matcher.Match(tt.frame)
			assert.ErrorIs(t, err, ErrInvalidFrame)
		})
	}
}

func TestMatchTieBreaks(t *testing.T) {
	tests := []struct {
		name   string
		table  QualityTable
		energy []float64
		want   string
	}{
		// C, E, G and A: C major and A minor both score 0.75.
		{name: "smaller root wins", table: MinimalQualities(), energy: energies(0, 4, 7, 9), want: "C"},
		// C, E, G: C, C7 and Cmaj7 all score 1.0.
		{name: "fewer intervals wins", table: ExtendedQualities(), energy: energies(0, 4, 7), want: "C"},
		// Augmented triads are symmetric: Caug, Eaug and G#aug tie.
		{name: "symmetric chord picks smallest root", table: ExtendedQualities(), energy: energies(0, 4, 8), want: "Caug"},
		// C and G only: C major and C minor tie at the same root and size.
		{name: "quality table order wins", table: MinimalQualities(), energy: energies(0, 7), want: "C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matcher := newTestMatcher(t, tt.table)
			match, err := matcher.Match(PitchClassFrame{Energies: tt.energy})
			require.NoError(t, err)
			assert.Equal(t, tt.want, match.Label.String())
		})
	}
}

func TestMatchDoesNotDependOnPreviousFrame(t *testing.T) {
	matcher := newTestMatcher(t, MinimalQualities())

	_, err := matcher.Match(PitchClassFrame{Energies: energies(9, 0, 4)}) // Am
	require.NoError(t, err)
	match, err := matcher.Match(PitchClassFrame{Timestamp: 0.1, Energies: energies(0, 4, 7, 9)})
	require.NoError(t, err)
	assert.Equal(t, "C", match.Label.String())
}

func TestCosineScoring(t *testing.T) {
	bank, err := NewTemplateBank(MinimalQualities(), TemplateOptions{})
	require.NoError(t, err)
	score, err := ScoringByName("cosine")
	require.NoError(t, err)
	matcher := NewFrameMatcher(bank, DefaultConfidenceThreshold, score)

	match, err := matcher.Match(PitchClassFrame{Energies: energies(7, 11, 2)})
	require.NoError(t, err)
	assert.Equal(t, "G", match.Label.String())
	assert.InDelta(t, 1.0, match.Confidence, 1e-9)

	_, err = ScoringByName("euclid")
	assert.Error(t, err)
}

func TestMatchExtremeFiniteEnergies(t *testing.T) {
	matcher := newTestMatcher(t, MinimalQualities())
	dMajor := ChordLabel{Root: 2, Quality: QualityMajor}

	for name, level := range map[string]float64{
		"near max":  1e308,
		"subnormal": 5e-324,
	} {
		t.Run(name, func(t *testing.T) {
			frame := make([]float64, PitchClasses)
			for _, bin := range []int{2, 6, 9} {
				frame[bin] = level
			}
			match, err := matcher.Match(PitchClassFrame{Energies: frame})
			require.NoError(t, err)
			assert.Equal(t, dMajor, match.Label)
			assert.InDelta(t, 1.0, match.Confidence, 1e-12)
		})
	}
}

func TestMatchNaNScoreBecomesNoChord(t *testing.T) {
	bank, err := NewTemplateBank(MinimalQualities(), TemplateOptions{})
	require.NoError(t, err)
	nanScore := func(frame, template []float64) float64 { return math.NaN() }
	matcher := NewFrameMatcher(bank, DefaultConfidenceThreshold, nanScore)

	match, err := matcher.Match(PitchClassFrame{Energies: energies(0, 4, 7)})
	require.NoError(t, err)
	assert.True(t, match.Label.IsNoChord())
	assert.Equal(t, 0.0, match.Confidence)
}
