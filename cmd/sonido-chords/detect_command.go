package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-chords/algorithms/tonal"
	"github.com/RyanBlaney/sonido-chords/config"
	"github.com/RyanBlaney/sonido-chords/framesource"
	"github.com/RyanBlaney/sonido-chords/store"
)

type detectOptions struct {
	outputFormat  string
	inputFormat   string
	threshold     float64
	minDuration   float64
	qualities     string
	keyMethod     string
	scoring       string
	totalDuration string
	save          bool
}

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var opts detectOptions

	cmd := &cobra.Command{
		Use:   "detect <input>",
		Short: "Detect the chord progression of a frame dump, MIDI file or audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			outputFormat, err := parseOutputFormat(opts.outputFormat)
			if err != nil {
				return err
			}
			inputFormat, err := framesource.ParseFormat(opts.inputFormat)
			if err != nil {
				return err
			}
			params, err := detectParams(cmd, cfg, opts)
			if err != nil {
				return err
			}

			path := args[0]
			input, err := framesource.Open(cmd.Context(), path, inputFormat, cfg.FrameSourceOptions())
			if err != nil {
				return err
			}
			params.FrameDuration = input.FrameDuration
			params.MediaDuration = input.Duration

			detector, err := tonal.NewChordDetectorWithParams(params)
			if err != nil {
				return err
			}
			detect := func(runCtx context.Context) (*tonal.DetectionResult, error) {
				return detector.Detect(runCtx, input.Source)
			}

			out := progressionOutput{Source: path, InputFormat: string(input.Format)}
			var result *tonal.DetectionResult
			if opts.save {
				err = ctx.withStore(cmd.Context(), func(s *store.Store) error {
					run, res, trackErr := s.Track(cmd.Context(), path, string(input.Format), &params, detect)
					if run != nil {
						out.RunID = run.ID
						fmt.Fprintf(cmd.ErrOrStderr(), "Run %s %s\n", run.ID, run.Status)
					}
					result = res
					return trackErr
				})
			} else {
				result, err = detect(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("detect %s: %w", path, err)
			}

			out.Progression = result.Progression
			out.Stats = &result.Stats
			return writeProgression(cmd, outputFormat, out)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.outputFormat, "format", "f", formatText, "Output format: text, table, json or nashville")
	flags.StringVar(&opts.inputFormat, "input-format", string(framesource.FormatAuto), "Input format: auto, json, csv, midi or audio")
	flags.Float64Var(&opts.threshold, "threshold", tonal.DefaultConfidenceThreshold, "Minimum match score; weaker frames become N")
	flags.Float64Var(&opts.minDuration, "min-duration", tonal.DefaultMinSegmentDuration, "Minimum segment duration in seconds")
	flags.StringVar(&opts.qualities, "qualities", tonal.QualitySetMinimal, "Chord quality set: minimal or extended")
	flags.StringVar(&opts.keyMethod, "key-method", tonal.KeyMethodDuration, "Key estimation: duration or profile")
	flags.StringVar(&opts.scoring, "scoring", tonal.ScoringDot, "Template scoring: dot or cosine")
	flags.StringVar(&opts.totalDuration, "total-duration", tonal.TotalDurationLastSegment, "Total duration policy: last_segment, stream or media")
	flags.BoolVar(&opts.save, "save", false, "Record the run in the run store")
	return cmd
}

// detectParams starts from the configuration and applies only the flags the user set.
func detectParams(cmd *cobra.Command, cfg *config.Config, opts detectOptions) (tonal.ChordDetectionParams, error) {
	params, err := cfg.DetectionParams()
	if err != nil {
		return params, err
	}

	flags := cmd.Flags()
	if flags.Changed("threshold") {
		params.ConfidenceThreshold = opts.threshold
	}
	if flags.Changed("min-duration") {
		params.MinSegmentDuration = opts.minDuration
	}
	if flags.Changed("qualities") {
		qualities, err := tonal.QualitySetByName(opts.qualities)
		if err != nil {
			return params, err
		}
		params.Qualities = qualities
	}
	if flags.Changed("key-method") {
		params.KeyMethod = strings.ToLower(strings.TrimSpace(opts.keyMethod))
	}
	if flags.Changed("scoring") {
		params.Scoring = strings.ToLower(strings.TrimSpace(opts.scoring))
	}
	if flags.Changed("total-duration") {
		params.TotalDuration = strings.ToLower(strings.TrimSpace(opts.totalDuration))
	}
	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}
