package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
)

const (
	formatText      = "text"
	formatTable     = "table"
	formatJSON      = "json"
	formatNashville = "nashville"
)

func parseOutputFormat(value string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(value)); f {
	case "", formatText:
		return formatText, nil
	case formatTable, formatJSON, formatNashville:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, table, json or nashville)", value)
	}
}

// progressionOutput is the JSON form of a detection printed by the CLI.
type progressionOutput struct {
	RunID       string                  `json:"run_id,omitempty"`
	Source      string                  `json:"source"`
	InputFormat string                  `json:"input_format"`
	Progression *tonal.ChordProgression `json:"progression"`
	Nashville   []string                `json:"nashville"`
	Stats       *tonal.RunStats         `json:"stats,omitempty"`
	Outcome     string                  `json:"outcome,omitempty"`
}

func writeProgression(cmd *cobra.Command, format string, out progressionOutput) error {
	p := out.Progression
	w := cmd.OutOrStdout()

	switch format {
	case formatJSON:
		out.Nashville = tonal.NashvilleNumbers(p)
		if out.Stats != nil {
			out.Outcome = out.Stats.Outcome()
		}
		return writeJSON(cmd, out)
	case formatNashville:
		fmt.Fprintln(w, tonal.FormatNashville(p))
	case formatTable:
		fmt.Fprintln(w, progressionTable(p))
		fmt.Fprintf(w, "Key: %s  Chords: %d  Duration: %.1fs  Average confidence: %.0f%%\n",
			p.Key(), p.ChordCount(), p.TotalDuration(), p.AverageConfidence()*100)
	default:
		fmt.Fprintln(w, tonal.FormatProgression(p))
	}

	if out.Stats != nil && p.ChordCount() == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "No chords detected (%s)\n", strings.ReplaceAll(out.Stats.Outcome(), "_", " "))
	}
	return nil
}

func progressionTable(p *tonal.ChordProgression) string {
	segments := p.Segments()
	numbers := tonal.NashvilleNumbers(p)

	rows := make([][]string, 0, len(segments))
	for i, seg := range segments {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			tonal.FormatTimestamp(seg.Start),
			seg.Label.String(),
			numbers[i],
			fmt.Sprintf("%.1fs", seg.Duration),
			fmt.Sprintf("%.0f%%", seg.AverageConfidence*100),
		})
	}
	return renderTable(
		[]string{"#", "Start", "Chord", "Nashville", "Duration", "Confidence"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
	)
}
