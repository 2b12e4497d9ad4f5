package tonal

import (
	"fmt"
	"strings"
)

// PitchClasses is the number of equal-tempered pitch classes in an octave.
const PitchClasses = 12

var noteNames = [PitchClasses]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatNames = map[string]int{
	"Db": 1, "Eb": 3, "Fb": 4, "Gb": 6, "Ab": 8, "Bb": 10, "Cb": 11,
	"E#": 5, "B#": 0,
}

// NoteName returns the sharp spelling of a pitch class (0=C, 1=C#, ..., 11=B).
func NoteName(pitchClass int) string {
	return noteNames[((pitchClass%PitchClasses)+PitchClasses)%PitchClasses]
}

// NoteNames returns the 12 sharp-spelled pitch class names in index order.
func NoteNames() []string {
	names := make([]string, PitchClasses)
	copy(names, noteNames[:])
	return names
}

// ParseNoteName accepts sharp or flat spellings ("C#", "Db") and returns the pitch class.
func ParseNoteName(name string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("empty note name")
	}
	normalized := strings.ToUpper(name[:1]) + name[1:]
	for i, n := range noteNames {
		if n == normalized {
			return i, nil
		}
	}
	if pc, ok := flatNames[normalized]; ok {
		return pc, nil
	}
	return 0, fmt.Errorf("unknown note name %q", name)
}

// splitRoot splits a chord or key symbol into its root spelling and the remainder.
func splitRoot(symbol string) (string, string) {
	if symbol == "" {
		return "", ""
	}
	end := 1
	if len(symbol) > 1 && (symbol[1] == '#' || symbol[1] == 'b') {
		end = 2
	}
	return symbol[:end], symbol[end:]
}
