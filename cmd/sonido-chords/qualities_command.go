package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
)

func newQualitiesCommand() *cobra.Command {
	var setName string
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "qualities",
		Short:       "List the chord qualities of a quality set",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := tonal.QualitySetByName(setName)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, table)
			}

			rows := make([][]string, 0, len(table))
			for _, def := range table {
				notes := make([]string, len(def.Intervals))
				offsets := make([]string, len(def.Intervals))
				for i, interval := range def.Intervals {
					notes[i] = tonal.NoteName(interval)
					offsets[i] = fmt.Sprintf("%d", interval)
				}
				rows = append(rows, []string{
					string(def.Quality),
					"C" + def.Quality.Suffix(),
					strings.Join(offsets, " "),
					strings.Join(notes, " "),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Quality", "Example", "Intervals", "Notes on C"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().StringVar(&setName, "set", tonal.QualitySetExtended, "Quality set: minimal or extended")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	return cmd
}
