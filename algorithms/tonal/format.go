package tonal

import (
	"fmt"
	"strings"
)

// FormatTimestamp renders seconds as mm:ss, truncating fractions.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	return fmt.Sprintf("%02d:%02d", whole/60, whole%60)
}

// FormatProgression renders a plain-text chord sheet:
//
//	Key: C major
//
//	00:00 - C        (confidence: 80%, duration: 2.3s)
func FormatProgression(p *ChordProgression) string {
	return formatSheet(p, func(seg ChordSegment) string { return seg.Label.String() })
}

// FormatNashville renders the same sheet with Nashville numbers instead of chord names.
func FormatNashville(p *ChordProgression) string {
	return formatSheet(p, func(seg ChordSegment) string { return NashvilleNumber(seg.Label, p.key) })
}

func formatSheet(p *ChordProgression, name func(ChordSegment) string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Key: %s\n\n", p.key)

	lines := make([]string, 0, len(p.segments))
	for _, seg := range p.segments {
		lines = append(lines, fmt.Sprintf("%s - %-8s (confidence: %.0f%%, duration: %.1fs)",
			FormatTimestamp(seg.Start), name(seg), seg.AverageConfidence*100, seg.Duration))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}
