package tonal

// Scale degrees by semitone distance from the tonic. Minor keys number against
// the natural minor scale, so the minor third, sixth and seventh are plain degrees.
var (
	majorDegrees = [PitchClasses]string{"1", "b2", "2", "b3", "3", "4", "b5", "5", "b6", "6", "b7", "7"}
	minorDegrees = [PitchClasses]string{"1", "b2", "2", "3", "#3", "4", "b5", "5", "6", "#6", "7", "#7"}
)

var nashvilleSuffixes = map[Quality]string{
	QualityMajor: "",
	QualityMinor: "m",
	QualityDom7:  "7",
	QualityMaj7:  "maj7",
	QualityMin7:  "m7",
	QualityDim:   "°",
	QualityAug:   "+",
	QualitySus2:  "sus2",
	QualitySus4:  "sus4",
}

// NashvilleNumber writes label as a scale degree of key, e.g. "5", "6m", "4maj7".
// The no-chord label stays "N".
func NashvilleNumber(label ChordLabel, key Key) string {
	if label.IsNoChord() {
		return NoChordSymbol
	}

	interval := ((label.Root-key.Root)%PitchClasses + PitchClasses) % PitchClasses
	degree := majorDegrees[interval]
	if key.Mode == ModeMinor {
		degree = minorDegrees[interval]
	}

	suffix, ok := nashvilleSuffixes[label.Quality]
	if !ok {
		suffix = label.Quality.Suffix()
	}
	return degree + suffix
}

// NashvilleNumbers converts every segment of p against its own key.
func NashvilleNumbers(p *ChordProgression) []string {
	numbers := make([]string, 0, len(p.segments))
	for _, seg := range p.segments {
		numbers = append(numbers, NashvilleNumber(seg.Label, p.key))
	}
	return numbers
}
