package tonal

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NoChordSymbol is the sheet symbol of the no-chord label.
const NoChordSymbol = "N"

// ChordLabel is either a (root, quality) pair or the no-chord sentinel.
// The zero value is NoChord.
type ChordLabel struct {
	Root    int
	Quality Quality
}

// NoChord is the sentinel label for silence and unreliable frames.
var NoChord = ChordLabel{}

// NewChordLabel builds a label for root (taken mod 12) and quality.
func NewChordLabel(root int, quality Quality) ChordLabel {
	return ChordLabel{Root: ((root % PitchClasses) + PitchClasses) % PitchClasses, Quality: quality}
}

// IsNoChord reports whether l is the no-chord sentinel.
func (l ChordLabel) IsNoChord() bool {
	return l.Quality == ""
}

// RootName returns the sharp-spelled root, or "N".
func (l ChordLabel) RootName() string {
	if l.IsNoChord() {
		return NoChordSymbol
	}
	return NoteName(l.Root)
}

// String renders the chord-sheet symbol: C, Cm, G7, Fmaj7, Bdim, N.
func (l ChordLabel) String() string {
	if l.IsNoChord() {
		return NoChordSymbol
	}
	return NoteName(l.Root) + l.Quality.Suffix()
}

// MarshalJSON encodes the label as its chord-sheet symbol.
func (l ChordLabel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// UnmarshalJSON decodes a chord-sheet symbol.
func (l *ChordLabel) UnmarshalJSON(data []byte) error {
	var symbol string
	if err := json.Unmarshal(data, &symbol); err != nil {
		return err
	}
	parsed, err := ParseChordLabel(symbol)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseChordLabel parses symbols produced by String as well as flat roots
// ("Bb", "Ebm7"). Suffixes are resolved against the extended quality set.
func ParseChordLabel(symbol string) (ChordLabel, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == NoChordSymbol {
		return NoChord, nil
	}

	rootName, suffix := splitRoot(symbol)
	root, err := ParseNoteName(rootName)
	if err != nil {
		return NoChord, fmt.Errorf("parse chord %q: %w", symbol, err)
	}

	quality, ok := ExtendedQualities().bySuffix()[suffix]
	if !ok {
		return NoChord, fmt.Errorf("parse chord %q: unknown quality suffix %q", symbol, suffix)
	}
	return NewChordLabel(root, quality), nil
}
