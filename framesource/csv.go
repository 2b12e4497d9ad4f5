package framesource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
)

// ReadCSV reads rows of "timestamp,C,C#,...,B". A first row whose timestamp
// column is not a number is treated as a header. Blank lines and lines
// starting with '#' are skipped.
func ReadCSV(r io.Reader) ([]tonal.PitchClassFrame, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	frames := make([]tonal.PitchClassFrame, 0)
	for row := 1; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if row == 1 {
			if _, err := strconv.ParseFloat(strings.TrimSpace(record[0]), 64); err != nil {
				continue
			}
		}
		if len(record) != tonal.PitchClasses+1 {
			return nil, fmt.Errorf("record %d: %w: %d columns, want %d", row, tonal.ErrInvalidFrame, len(record), tonal.PitchClasses+1)
		}

		values := make([]float64, len(record))
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, fmt.Errorf("record %d column %d: %w", row, i+1, err)
			}
			values[i] = v
		}
		frames = append(frames, tonal.PitchClassFrame{Timestamp: values[0], Energies: values[1:]})
	}
	return frames, nil
}

// WriteCSV writes frames with a header row, the inverse of ReadCSV.
func WriteCSV(w io.Writer, frames []tonal.PitchClassFrame) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(append([]string{"timestamp"}, tonal.NoteNames()...)); err != nil {
		return err
	}
	for _, frame := range frames {
		record := make([]string, 0, len(frame.Energies)+1)
		record = append(record, strconv.FormatFloat(frame.Timestamp, 'g', -1, 64))
		for _, e := range frame.Energies {
			record = append(record, strconv.FormatFloat(e, 'g', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
