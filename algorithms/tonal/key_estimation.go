package tonal

import (
	"fmt"
	"sort"
	"strings"

	"github.com/RyanBlaney/sonido-chords/algorithms/common"
)

// Mode is the major/minor mode of a key.
type Mode string

const (
	ModeMajor Mode = "major"
	ModeMinor Mode = "minor"
)

// Key is a global tonal center.
type Key struct {
	Root int  `json:"root"`
	Mode Mode `json:"mode"`
	// BackingDuration is the chord time, in seconds, supporting the estimate.
	// It is zero for the default key.
	BackingDuration float64 `json:"backing_duration"`
}

// DefaultKey is C major with no backing duration, returned when nothing was detected.
func DefaultKey() Key {
	return Key{Root: 0, Mode: ModeMajor}
}

// Name returns the sharp-spelled tonic.
func (k Key) Name() string {
	return NoteName(k.Root)
}

// String renders "C major", "A minor".
func (k Key) String() string {
	return fmt.Sprintf("%s %s", k.Name(), k.Mode)
}

// KeyEstimator derives a global key from committed segments.
type KeyEstimator interface {
	EstimateKey(segments []ChordSegment) Key
}

// Key estimation method names accepted by KeyEstimatorByName.
const (
	KeyMethodDuration = "duration"
	KeyMethodProfile  = "profile"
)

// KeyEstimatorByName resolves "duration" (default) or "profile". The quality
// table supplies chord tones for the profile method.
func KeyEstimatorByName(name string, qualities QualityTable) (KeyEstimator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", KeyMethodDuration:
		return DurationKeyEstimator{}, nil
	case KeyMethodProfile:
		return NewProfileKeyEstimator(qualities), nil
	default:
		return nil, fmt.Errorf("unknown key method %q (want %q or %q)", name, KeyMethodDuration, KeyMethodProfile)
	}
}

// rootsByName lists pitch classes in lexicographic order of their sharp names,
// which is the tie-break order for key roots.
var rootsByName = func() []int {
	roots := make([]int, PitchClasses)
	for i := range roots {
		roots[i] = i
	}
	sort.Slice(roots, func(i, j int) bool {
		return NoteName(roots[i]) < NoteName(roots[j])
	})
	return roots
}()

// DurationKeyEstimator picks the root with the most chord time and votes the
// mode by minor versus non-minor chord time.
type DurationKeyEstimator struct{}

// EstimateKey implements KeyEstimator. BackingDuration is the chord time on
// the chosen root.
func (DurationKeyEstimator) EstimateKey(segments []ChordSegment) Key {
	var durationByRoot [PitchClasses]float64
	minorDuration, majorDuration := 0.0, 0.0
	counted := 0

	for _, seg := range segments {
		if seg.Label.IsNoChord() {
			continue
		}
		counted++
		durationByRoot[seg.Label.Root] += seg.Duration
		if seg.Label.Quality.IsMinor() {
			minorDuration += seg.Duration
		} else {
			majorDuration += seg.Duration
		}
	}

	if counted == 0 {
		return DefaultKey()
	}

	keyRoot := rootsByName[0]
	for _, root := range rootsByName[1:] {
		if durationByRoot[root] > durationByRoot[keyRoot] {
			keyRoot = root
		}
	}

	mode := ModeMajor
	if minorDuration > majorDuration {
		mode = ModeMinor
	}

	return Key{Root: keyRoot, Mode: mode, BackingDuration: durationByRoot[keyRoot]}
}

// Krumhansl-Kessler probe-tone profiles, indexed by semitones above the tonic.
var (
	krumhanslMajor = []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	krumhanslMinor = []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// ProfileKeyEstimator correlates a duration-weighted chord-tone histogram with
// the Krumhansl-Kessler major and minor profiles in all 24 keys.
type ProfileKeyEstimator struct {
	intervals map[Quality][]int
}

// NewProfileKeyEstimator creates an estimator that spells chords with qualities.
// Qualities missing from the table contribute only their root.
func NewProfileKeyEstimator(qualities QualityTable) *ProfileKeyEstimator {
	intervals := make(map[Quality][]int, len(qualities))
	for _, def := range qualities {
		intervals[def.Quality] = append([]int(nil), def.Intervals...)
	}
	return &ProfileKeyEstimator{intervals: intervals}
}

// EstimateKey implements KeyEstimator. BackingDuration is the total chord time.
// Ties prefer major, then the lexicographically smaller tonic name.
func (p *ProfileKeyEstimator) EstimateKey(segments []ChordSegment) Key {
	histogram := make([]float64, PitchClasses)
	total := 0.0

	for _, seg := range segments {
		if seg.Label.IsNoChord() {
			continue
		}
		total += seg.Duration

		offsets, ok := p.intervals[seg.Label.Quality]
		if !ok {
			offsets = []int{0}
		}
		seen := make(map[int]bool, len(offsets))
		for _, offset := range offsets {
			pc := (seg.Label.Root + offset) % PitchClasses
			if seen[pc] {
				continue
			}
			seen[pc] = true
			histogram[pc] += seg.Duration
		}
	}

	if total == 0 {
		return DefaultKey()
	}

	best := DefaultKey()
	bestCorr := -2.0
	rotated := make([]float64, PitchClasses)

	for _, mode := range []Mode{ModeMajor, ModeMinor} {
		profile := krumhanslMajor
		if mode == ModeMinor {
			profile = krumhanslMinor
		}
		for _, tonic := range rootsByName {
			for pc := range PitchClasses {
				rotated[pc] = profile[(pc-tonic+PitchClasses)%PitchClasses]
			}
			corr := common.Correlation(histogram, rotated)
			if corr > bestCorr {
				bestCorr = corr
				best = Key{Root: tonic, Mode: mode}
			}
		}
	}

	best.BackingDuration = total
	return best
}
