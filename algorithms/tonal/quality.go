package tonal

import (
	"fmt"
	"strings"
)

// Quality identifies the interval structure of a chord independent of its root.
type Quality string

const (
	QualityMajor Quality = "maj"
	QualityMinor Quality = "min"
	QualityDom7  Quality = "7"
	QualityMaj7  Quality = "maj7"
	QualityMin7  Quality = "min7"
	QualityDim   Quality = "dim"
	QualityAug   Quality = "aug"
	QualitySus2  Quality = "sus2"
	QualitySus4  Quality = "sus4"
)

// Names of the built-in quality sets accepted by QualitySetByName.
const (
	QualitySetMinimal  = "minimal"
	QualitySetExtended = "extended"
)

// chord-sheet suffix appended to the root name
var qualitySuffixes = map[Quality]string{
	QualityMajor: "",
	QualityMinor: "m",
	QualityDom7:  "7",
	QualityMaj7:  "maj7",
	QualityMin7:  "m7",
	QualityDim:   "dim",
	QualityAug:   "aug",
	QualitySus2:  "sus2",
	QualitySus4:  "sus4",
}

// Suffix returns the chord-sheet suffix for q ("" for major, "m" for minor, ...).
// Qualities outside the built-in set render as their own name.
func (q Quality) Suffix() string {
	if s, ok := qualitySuffixes[q]; ok {
		return s
	}
	return string(q)
}

// IsMinor reports whether q votes for the minor mode during key estimation.
func (q Quality) IsMinor() bool {
	return q == QualityMinor || q == QualityMin7
}

// QualityDef maps a quality to its semitone offsets from the root.
type QualityDef struct {
	Quality   Quality `json:"quality" toml:"quality"`
	Intervals []int   `json:"intervals" toml:"intervals"`
}

// QualityTable is an ordered list of quality definitions. Its order is the
// secondary order of the template bank.
type QualityTable []QualityDef

// MinimalQualities returns the major/minor triad table.
func MinimalQualities() QualityTable {
	return QualityTable{
		{Quality: QualityMajor, Intervals: []int{0, 4, 7}},
		{Quality: QualityMinor, Intervals: []int{0, 3, 7}},
	}
}

// ExtendedQualities returns triads plus sevenths, diminished, augmented and suspended chords.
func ExtendedQualities() QualityTable {
	return QualityTable{
		{Quality: QualityMajor, Intervals: []int{0, 4, 7}},
		{Quality: QualityMinor, Intervals: []int{0, 3, 7}},
		{Quality: QualityDom7, Intervals: []int{0, 4, 7, 10}},
		{Quality: QualityMaj7, Intervals: []int{0, 4, 7, 11}},
		{Quality: QualityMin7, Intervals: []int{0, 3, 7, 10}},
		{Quality: QualityDim, Intervals: []int{0, 3, 6}},
		{Quality: QualityAug, Intervals: []int{0, 4, 8}},
		{Quality: QualitySus2, Intervals: []int{0, 2, 7}},
		{Quality: QualitySus4, Intervals: []int{0, 5, 7}},
	}
}

// QualitySetByName resolves "minimal" or "extended".
func QualitySetByName(name string) (QualityTable, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", QualitySetMinimal:
		return MinimalQualities(), nil
	case QualitySetExtended:
		return ExtendedQualities(), nil
	default:
		return nil, fmt.Errorf("unknown quality set %q (want %q or %q)", name, QualitySetMinimal, QualitySetExtended)
	}
}

// Validate rejects empty tables, duplicate qualities, empty interval sets and
// offsets outside one octave.
func (t QualityTable) Validate() error {
	if len(t) == 0 {
		return fmt.Errorf("%w: quality table is empty", ErrInvalidTemplate)
	}
	seen := make(map[Quality]bool, len(t))
	for _, def := range t {
		if def.Quality == "" {
			return fmt.Errorf("%w: quality name is empty", ErrInvalidTemplate)
		}
		if seen[def.Quality] {
			return fmt.Errorf("%w: duplicate quality %q", ErrInvalidTemplate, def.Quality)
		}
		seen[def.Quality] = true

		if len(def.Intervals) == 0 {
			return fmt.Errorf("%w: quality %q has no intervals", ErrInvalidTemplate, def.Quality)
		}
		for _, interval := range def.Intervals {
			if interval < 0 || interval >= PitchClasses {
				return fmt.Errorf("%w: quality %q has interval %d outside 0-%d", ErrInvalidTemplate, def.Quality, interval, PitchClasses-1)
			}
		}
	}
	return nil
}

func (t QualityTable) bySuffix() map[string]Quality {
	out := make(map[string]Quality, len(t))
	for _, def := range t {
		out[def.Quality.Suffix()] = def.Quality
	}
	return out
}
